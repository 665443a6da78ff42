package store

import (
	"time"

	"github.com/guardianmail/guardianmail/internal/core"
)

// EmailRecord is the persisted shape of a mailbox message.
type EmailRecord struct {
	ID          string `gorm:"primaryKey"`
	FromName    string
	FromAddress string
	Subject     string
	Body        string
	Snippet     string
	Date        time.Time
	Unread      bool
	Starred     bool
	Status      string `gorm:"index"`
	Risk        string `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides the gorm default.
func (EmailRecord) TableName() string {
	return "emails"
}

// SettingsRecord is the single-row settings table. RiskEpoch increments on
// every sensitivity change and scopes all in-flight classifications.
type SettingsRecord struct {
	ID          uint `gorm:"primaryKey"`
	Sensitivity int
	ReplyTone   string
	RiskEpoch   int64
	UpdatedAt   time.Time
}

// TableName overrides the gorm default.
func (SettingsRecord) TableName() string {
	return "settings"
}

func (r *EmailRecord) toEmail() *core.Email {
	return &core.Email{
		ID:      r.ID,
		From:    core.Sender{Name: r.FromName, Address: r.FromAddress},
		Subject: r.Subject,
		Body:    r.Body,
		Snippet: r.Snippet,
		Date:    r.Date,
		Unread:  r.Unread,
		Starred: r.Starred,
		Status:  core.EmailStatus(r.Status),
		Risk:    core.RiskLevel(r.Risk),
	}
}

func fromEmail(e *core.Email) *EmailRecord {
	return &EmailRecord{
		ID:          e.ID,
		FromName:    e.From.Name,
		FromAddress: e.From.Address,
		Subject:     e.Subject,
		Body:        e.Body,
		Snippet:     e.Snippet,
		Date:        e.Date,
		Unread:      e.Unread,
		Starred:     e.Starred,
		Status:      string(e.Status),
		Risk:        string(e.Risk),
	}
}
