package smtpin

import (
	"bytes"
	"context"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/core"
)

// Server accepts messages over SMTP and files them into the mailbox as
// unread, unclassified inbox emails. It is a delivery endpoint only; no
// analysis happens on the SMTP path.
type Server struct {
	mailbox         core.Mailbox
	logger          *zap.Logger
	listenAddr      string
	domain          string
	maxMessageBytes int64
	server          *smtp.Server
}

// NewServer creates a new SMTP ingestion server.
func NewServer(mailbox core.Mailbox, logger *zap.Logger, listenAddr string, domain string, maxMessageBytes int64) *Server {
	if domain == "" {
		domain = "localhost"
	}
	if maxMessageBytes <= 0 {
		maxMessageBytes = 10 * 1024 * 1024 // 10MB
	}
	return &Server{
		mailbox:         mailbox,
		logger:          logger,
		listenAddr:      listenAddr,
		domain:          domain,
		maxMessageBytes: maxMessageBytes,
	}
}

// Start starts the SMTP server.
func (s *Server) Start() error {
	s.server = smtp.NewServer(&backend{ingest: s})

	s.server.Addr = s.listenAddr
	s.server.Domain = s.domain
	s.server.ReadTimeout = 30 * time.Second
	s.server.WriteTimeout = 30 * time.Second
	s.server.MaxMessageBytes = s.maxMessageBytes
	s.server.MaxRecipients = 50
	s.server.AllowInsecureAuth = true

	s.logger.Info("SMTP ingestion starting", zap.String("address", s.listenAddr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				s.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP server.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// backend implements the go-smtp Backend interface
type backend struct {
	ingest *Server
}

// NewSession creates a new SMTP session
func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{
		ingest:     b.ingest,
		recipients: make([]string, 0),
	}, nil
}

// session implements the go-smtp Session interface
type session struct {
	ingest     *Server
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *session) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for ingestion)
func (s *session) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data reads the message and saves it to the mailbox.
func (s *session) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.ingest.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		s.ingest.logger.Error("Failed to parse email message", zap.Error(err))
		return err
	}

	body, err := extractBodyFromMessage(msg)
	if err != nil {
		s.ingest.logger.Error("Failed to extract message body", zap.Error(err))
		return err
	}

	subject, err := decodeEncodedHeader(msg.Header.Get("Subject"))
	if err != nil {
		subject = msg.Header.Get("Subject")
	}

	sender := core.Sender{Address: s.sender}
	if from := msg.Header.Get("From"); from != "" {
		if addr, err := mail.ParseAddress(from); err == nil {
			sender.Name = addr.Name
			sender.Address = addr.Address
		}
	}
	if sender.Name == "" {
		sender.Name = sender.Address
	}

	date := time.Now()
	if parsed, err := msg.Header.Date(); err == nil {
		date = parsed
	}

	email := &core.Email{
		ID:      uuid.NewString(),
		From:    sender,
		Subject: subject,
		Body:    body,
		Snippet: snippet(body),
		Date:    date,
		Unread:  true,
		Status:  core.StatusInbox,
		Risk:    core.RiskUnclassified,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.ingest.mailbox.Save(ctx, email); err != nil {
		s.ingest.logger.Error("Failed to save incoming email",
			zap.Error(err),
			zap.String("sender", sender.Address))
		return err
	}

	s.ingest.logger.Info("Accepted incoming email",
		zap.String("email_id", email.ID),
		zap.String("sender_domain", sender.Domain()),
		zap.String("subject", subject))

	return nil
}

// Logout handles SMTP logout (not needed for ingestion)
func (s *session) Logout() error {
	return nil
}

// snippet derives a short plain-text preview from an HTML body.
func snippet(body string) string {
	text := stripTags(body)
	text = strings.Join(strings.Fields(text), " ")
	const max = 120
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && text[cut] >= 0x80 && text[cut] < 0xC0 {
		cut--
	}
	return text[:cut] + "..."
}

func stripTags(body string) string {
	var b strings.Builder
	inTag := false
	for _, r := range body {
		switch {
		case r == '<':
			inTag = true
			b.WriteByte(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
