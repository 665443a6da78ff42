package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/guardianmail/guardianmail/internal/core"
)

// seed fills an empty mailbox with the demo messages used by the product
// walkthrough: a couple of ordinary work emails, a marketing blast behind
// a URL shortener, and an obvious credential-phishing attempt.
func (s *Store) seed() error {
	now := time.Now()
	emails := []*core.Email{
		{
			From:    core.Sender{Name: "Alice", Address: "alice@example.com"},
			Subject: "Project discussion",
			Snippet: "Hi team, let's discuss the new project features.",
			Body:    `<p>Hi team,</p><p>Let's discuss the new project features. I have some ideas I'd like to share. You can check the details <a href="https://example.com/project-details">here</a>.</p><p>Best,</p><p>Alice</p>`,
			Date:    now.Add(-2 * time.Hour),
			Unread:  true,
		},
		{
			From:    core.Sender{Name: "Bob", Address: "bob@example.com"},
			Subject: "Lunch today?",
			Snippet: "Hey, are you free for lunch today at 1 PM?",
			Body:    `<p>Hey,</p><p>Are you free for lunch today at 1 PM? I know a great new place. Check it out: <a href="https://example-restaurant.com">The Food Place</a></p><p>Cheers,</p><p>Bob</p>`,
			Date:    now.Add(-3 * time.Hour),
			Unread:  true,
			Starred: true,
		},
		{
			From:    core.Sender{Name: "Marketing @ CoolApp", Address: "marketing@coolapp.com"},
			Subject: "New features in CoolApp!",
			Snippet: "We've just released some amazing new features you'll love.",
			Body:    `<p>Hello!</p><p>We've just released some amazing new features you'll love. <a href="http://bit.ly/coolapp-features">Check them out now!</a></p>`,
			Date:    now.Add(-26 * time.Hour),
		},
		{
			From:    core.Sender{Name: "Bank Security Team", Address: "security@secure-bank-support.com"},
			Subject: "Urgent Action Required: Your Accont is Suspended!",
			Snippet: "We have detected unusual activity on your account.",
			Body: `<p>Dear Valued Customer,</p><p>We have detected unusual activity on your account. For your security, we have temporarily suspended your account.</p>` +
				`<p>To restore access, you must verify your identity immediately. Please click the link below to login and confirm your details.</p>` +
				`<p><a href="http://bit.ly/verify-acct-now">Click here to verify</a></p>` +
				`<p>Failure to do so within 24 hours will result in permanent account closure.</p><p>Thank you,<br>Your Bank Security Team</p>`,
			Date:   now.Add(-5 * time.Hour),
			Unread: true,
		},
		{
			From:    core.Sender{Name: "Project Manager", Address: "pm@your-company.com"},
			Subject: "Weekly Project Update",
			Snippet: "Here is the weekly update for Project Alpha.",
			Body: `<p>Hi Team,</p><p>Here is the weekly update for Project Alpha.</p>` +
				`<p>We have successfully completed the user authentication module and are on track with the project timeline.</p>` +
				`<p>Docs link: <a href="https://your-company.com/docs/project-alpha">https://your-company.com/docs/project-alpha</a></p>` +
				`<p>Let's sync up on Monday to discuss the next phase.</p><p>Best,<br>Project Manager</p>`,
			Date: now.Add(-20 * time.Hour),
		},
	}

	for _, email := range emails {
		email.ID = uuid.NewString()
		email.Status = core.StatusInbox
		email.Risk = core.RiskUnclassified
		if err := s.db.Create(fromEmail(email)).Error; err != nil {
			return fmt.Errorf("failed to seed mailbox: %w", err)
		}
	}
	return nil
}
