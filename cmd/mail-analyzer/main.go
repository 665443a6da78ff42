package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/core"
	"github.com/guardianmail/guardianmail/internal/di"
	"github.com/guardianmail/guardianmail/internal/logging"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		// The container logger may not exist if construction failed
		logger, lerr := logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
		if lerr == nil {
			logger.Fatal("Analysis failed", zap.Error(err))
		}
		fmt.Printf("Analysis failed: %v\n", err)
		os.Exit(1)
	}
}

func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	model core.ModelClient,
	analyzer *core.Analyzer,
	pipeline *core.BodyPipeline,
) error {
	defer logger.Sync()

	// Read email from file or stdin
	var emailReader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file %s: %w", flags.InputFile, err)
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	// Parse email
	msg, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		return fmt.Errorf("failed to parse email: %w", err)
	}

	from := msg.Header.Get("From")
	subject := msg.Header.Get("Subject")

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		return fmt.Errorf("failed to read email body: %w", err)
	}
	body := string(bodyBytes)

	sender := core.Sender{Address: from}
	if addr, err := mail.ParseAddress(from); err == nil {
		sender.Name = addr.Name
		sender.Address = addr.Address
	}

	email := &core.Email{
		ID:      "cli",
		From:    sender,
		Subject: subject,
		Body:    body,
		Status:  core.StatusInbox,
		Risk:    core.RiskUnclassified,
	}

	sensitivity := core.Sensitivity(flags.Sensitivity)

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", from)
	fmt.Printf("Subject: %s\n", subject)
	fmt.Printf("Body length: %d bytes\n", len(body))
	fmt.Printf("\n")

	fmt.Printf("=== Analysis ===\n")
	fmt.Printf("Provider: %s\n", flags.Provider)
	fmt.Printf("Sensitivity: %d\n", flags.Sensitivity)

	startTime := time.Now()

	level, result, err := analyzer.ClassifyEmail(context.Background(), email, sensitivity, 0)
	if err != nil {
		return fmt.Errorf("failed to classify email: %w", err)
	}
	duration := time.Since(startTime)

	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Risk level: %s\n", level)
	fmt.Printf("Phishing score: %.4f\n", result.PhishingScore)
	if len(result.RiskFactors) > 0 {
		fmt.Printf("Risk factors: %s\n", strings.Join(result.RiskFactors, "; "))
	}
	fmt.Printf("Justification: %s\n", result.Justification)
	fmt.Printf("Model used: %s\n", result.ModelUsed)
	fmt.Printf("Processing time: %v\n", duration)

	if flags.AnnotateLinks {
		annotated, risks, err := pipeline.AnnotatedBody(context.Background(), body)
		if err != nil {
			return fmt.Errorf("failed to annotate body: %w", err)
		}

		fmt.Printf("\n=== Links ===\n")
		for url, risk := range risks {
			fmt.Printf("%s: %s (%.4f) %s\n", url, risk.Level, risk.Score, risk.Justification)
		}

		fmt.Printf("\n=== Annotated Body ===\n")
		fmt.Println(annotated)
	}

	// Close any resources that need closing
	if closer, ok := model.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close model client", zap.Error(err))
		}
	}

	return nil
}
