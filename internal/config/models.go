package config

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// ProviderConfig holds the settings shared by every model provider
type ProviderConfig struct {
	APIKey      string
	ModelName   string
	Region      string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	ListenAddress string
	CORSOrigins   []string
}

// SMTPConfig represents the SMTP ingestion configuration
type SMTPConfig struct {
	Enabled         bool
	ListenAddress   string
	Domain          string
	MaxMessageBytes int
}

// StoreConfig represents the mailbox store configuration
type StoreConfig struct {
	SQLitePath   string
	SeedDemoData bool
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetProvider returns the configuration for the given provider section
func (c *Config) GetProvider(section string) ProviderConfig {
	modelKey := section + ".model_name"
	if section == "bedrock" {
		modelKey = section + ".model_id"
	}
	return ProviderConfig{
		APIKey:      c.GetString(section + ".api_key"),
		ModelName:   c.GetString(modelKey),
		Region:      c.GetString(section + ".region"),
		MaxTokens:   c.GetInt(section + ".max_tokens"),
		Temperature: float32(c.GetFloat64(section + ".temperature")),
		TopP:        float32(c.GetFloat64(section + ".top_p")),
		MaxBodySize: c.GetInt(section + ".max_body_size"),
	}
}

// GetServer returns the HTTP server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress: c.GetString("server.listen_address"),
		CORSOrigins:   c.GetStringSlice("server.cors_origins"),
	}
}

// GetSMTP returns the SMTP ingestion configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Enabled:         c.GetBool("smtp.enabled"),
		ListenAddress:   c.GetString("smtp.listen_address"),
		Domain:          c.GetString("smtp.domain"),
		MaxMessageBytes: c.GetInt("smtp.max_message_bytes"),
	}
}

// GetStore returns the mailbox store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		SQLitePath:   c.GetString("store.sqlite_path"),
		SeedDemoData: c.GetBool("store.seed_demo_data"),
	}
}
