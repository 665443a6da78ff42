package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeMailbox keeps emails in memory and enforces the epoch guard the way
// the real store does.
type fakeMailbox struct {
	mu           sync.Mutex
	emails       map[string]*Email
	currentEpoch int64
}

func newFakeMailbox(epoch int64, emails ...*Email) *fakeMailbox {
	m := &fakeMailbox{emails: make(map[string]*Email), currentEpoch: epoch}
	for _, e := range emails {
		cp := *e
		m.emails[e.ID] = &cp
	}
	return m
}

func (m *fakeMailbox) List(ctx context.Context, status EmailStatus) ([]*Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Email
	for _, e := range m.emails {
		if e.Status == status {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *fakeMailbox) Get(ctx context.Context, id string) (*Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[id]
	if !ok {
		return nil, fmt.Errorf("email %s not found", id)
	}
	cp := *e
	return &cp, nil
}

func (m *fakeMailbox) Save(ctx context.Context, email *Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *email
	m.emails[email.ID] = &cp
	return nil
}

func (m *fakeMailbox) SetRead(ctx context.Context, id string, read bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails[id].Unread = !read
	return nil
}

func (m *fakeMailbox) SetStarred(ctx context.Context, id string, starred bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails[id].Starred = starred
	return nil
}

func (m *fakeMailbox) SetStatus(ctx context.Context, id string, status EmailStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails[id].Status = status
	return nil
}

func (m *fakeMailbox) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.emails, id)
	return nil
}

func (m *fakeMailbox) SelectUnclassified(ctx context.Context) ([]*Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Email
	for _, e := range m.emails {
		if e.Status == StatusInbox && e.Risk == RiskUnclassified {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *fakeMailbox) MarkPending(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if e, ok := m.emails[id]; ok && e.Risk == RiskUnclassified {
			e.Risk = RiskPending
		}
	}
	return nil
}

func (m *fakeMailbox) SetRisk(ctx context.Context, id string, level RiskLevel, epoch int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch != m.currentEpoch {
		return ErrStaleEpoch
	}
	if e, ok := m.emails[id]; ok {
		e.Risk = level
	}
	return nil
}

func (m *fakeMailbox) ResetRisk(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.emails {
		e.Risk = RiskUnclassified
	}
	return nil
}

func (m *fakeMailbox) bumpEpoch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentEpoch++
}

func (m *fakeMailbox) risk(id string) RiskLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emails[id].Risk
}

// fakeSettings serves a fixed sensitivity and epoch.
type fakeSettings struct {
	mu          sync.Mutex
	sensitivity Sensitivity
	epoch       int64
	tone        string
}

func (s *fakeSettings) Settings(ctx context.Context) (*UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &UserSettings{Sensitivity: s.sensitivity, ReplyTone: s.tone}, nil
}

func (s *fakeSettings) UpdateSettings(ctx context.Context, settings *UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings.Sensitivity != s.sensitivity {
		s.sensitivity = settings.Sensitivity
		s.epoch++
	}
	s.tone = settings.ReplyTone
	return nil
}

func (s *fakeSettings) Sensitivity(ctx context.Context) (Sensitivity, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sensitivity, s.epoch, nil
}

func (s *fakeSettings) SetSensitivity(ctx context.Context, v Sensitivity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensitivity = v
	s.epoch++
	return s.epoch, nil
}

func inboxEmail(id string) *Email {
	return &Email{
		ID:      id,
		Subject: "subject " + id,
		Body:    fmt.Sprintf("<p>body %s</p>", id),
		Status:  StatusInbox,
		Risk:    RiskUnclassified,
	}
}

func scoreByID(scores map[string]float64) func(req *EmailAnalysisRequest) (*EmailAnalysisResult, error) {
	return func(req *EmailAnalysisRequest) (*EmailAnalysisResult, error) {
		for id, score := range scores {
			if req.Subject == "subject "+id {
				return &EmailAnalysisResult{PhishingScore: score}, nil
			}
		}
		return nil, errors.New("unexpected email")
	}
}

func newTestClassifier(mailbox *fakeMailbox, settings *fakeSettings, model ModelClient, cache RiskCacheRepository) *BulkClassifier {
	analyzer := NewAnalyzer(model, cache, &fakeExtractor{}, zap.NewNop(), cache != nil, time.Hour, time.Second)
	return NewBulkClassifier(mailbox, settings, analyzer, cache, zap.NewNop(), 3)
}

func TestBulkRunClassifiesAll(t *testing.T) {
	mailbox := newFakeMailbox(1,
		inboxEmail("a"),
		inboxEmail("b"),
		inboxEmail("c"),
	)
	settings := &fakeSettings{sensitivity: 50, epoch: 1}
	model := &fakeModel{classifyEmail: scoreByID(map[string]float64{
		"a": 0.9, "b": 0.6, "c": 0.1,
	})}
	classifier := newTestClassifier(mailbox, settings, model, newFakeCache())

	launched, err := classifier.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, launched)

	assert.Equal(t, RiskHigh, mailbox.risk("a"))
	assert.Equal(t, RiskMedium, mailbox.risk("b"))
	assert.Equal(t, RiskLow, mailbox.risk("c"))
}

func TestBulkRunOneFailureDoesNotSpread(t *testing.T) {
	mailbox := newFakeMailbox(1,
		inboxEmail("a"),
		inboxEmail("b"),
		inboxEmail("c"),
		inboxEmail("d"),
		inboxEmail("e"),
		inboxEmail("f"),
	)
	settings := &fakeSettings{sensitivity: 50, epoch: 1}
	model := &fakeModel{classifyEmail: func(req *EmailAnalysisRequest) (*EmailAnalysisResult, error) {
		if req.Subject == "subject d" {
			return nil, errors.New("model unavailable")
		}
		return &EmailAnalysisResult{PhishingScore: 0.2}, nil
	}}
	classifier := newTestClassifier(mailbox, settings, model, newFakeCache())

	launched, err := classifier.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, launched)

	assert.Equal(t, RiskUnknown, mailbox.risk("d"))
	for _, id := range []string{"a", "b", "c", "e", "f"} {
		assert.Equal(t, RiskLow, mailbox.risk(id), "sibling %s must settle normally", id)
	}
}

func TestBulkRunSkipsPendingAndClassified(t *testing.T) {
	mailbox := newFakeMailbox(1,
		inboxEmail("a"),
		&Email{ID: "b", Subject: "subject b", Status: StatusInbox, Risk: RiskPending},
		&Email{ID: "c", Subject: "subject c", Status: StatusInbox, Risk: RiskHigh},
		&Email{ID: "d", Subject: "subject d", Status: StatusTrash, Risk: RiskUnclassified},
	)
	settings := &fakeSettings{sensitivity: 50, epoch: 1}
	model := &fakeModel{classifyEmail: scoreByID(map[string]float64{"a": 0.1})}
	classifier := newTestClassifier(mailbox, settings, model, newFakeCache())

	launched, err := classifier.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, launched)
	assert.Equal(t, 1, model.totalEmailCalls())

	assert.Equal(t, RiskPending, mailbox.risk("b"), "in-flight emails are not re-launched")
	assert.Equal(t, RiskHigh, mailbox.risk("c"))
	assert.Equal(t, RiskUnclassified, mailbox.risk("d"), "trashed emails are not classified")
}

func TestBulkRunEmptyInbox(t *testing.T) {
	mailbox := newFakeMailbox(1)
	settings := &fakeSettings{sensitivity: 50, epoch: 1}
	classifier := newTestClassifier(mailbox, settings, &fakeModel{}, newFakeCache())

	launched, err := classifier.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, launched)
}

func TestBulkRunDropsStaleResults(t *testing.T) {
	mailbox := newFakeMailbox(1, inboxEmail("a"))
	settings := &fakeSettings{sensitivity: 50, epoch: 1}
	model := &fakeModel{classifyEmail: func(req *EmailAnalysisRequest) (*EmailAnalysisResult, error) {
		// The sensitivity changes while the request is in flight.
		mailbox.bumpEpoch()
		return &EmailAnalysisResult{PhishingScore: 0.9}, nil
	}}
	classifier := newTestClassifier(mailbox, settings, model, newFakeCache())

	launched, err := classifier.Run(context.Background())
	require.NoError(t, err, "a stale result is dropped, not surfaced as a failure")
	assert.Equal(t, 1, launched)
	assert.Equal(t, RiskPending, mailbox.risk("a"), "stale result must not overwrite the invalidated state")
}

func TestReclassify(t *testing.T) {
	mailbox := newFakeMailbox(2,
		&Email{ID: "a", Subject: "subject a", Status: StatusInbox, Risk: RiskLow},
		&Email{ID: "b", Subject: "subject b", Status: StatusInbox, Risk: RiskHigh},
	)
	settings := &fakeSettings{sensitivity: 90, epoch: 2}
	cache := newFakeCache()
	require.NoError(t, cache.Set(context.Background(), &RiskEntry{EmailID: "a", Epoch: 1, Level: RiskLow}))

	model := &fakeModel{classifyEmail: scoreByID(map[string]float64{"a": 0.45, "b": 0.9})}
	classifier := newTestClassifier(mailbox, settings, model, cache)

	launched, err := classifier.Reclassify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, launched)

	// At sensitivity 90 a 0.45 score is now flagged.
	assert.Equal(t, RiskMedium, mailbox.risk("a"))
	assert.Equal(t, RiskHigh, mailbox.risk("b"))
	assert.Equal(t, 2, model.totalEmailCalls(), "stale cache entries must not serve the new epoch")
}
