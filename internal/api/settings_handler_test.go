package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/core"
)

// memSettings is an in-memory core.SettingsStore for handler tests.
type memSettings struct {
	mu          sync.Mutex
	sensitivity core.Sensitivity
	tone        string
	epoch       int64
}

func newMemSettings() *memSettings {
	return &memSettings{sensitivity: core.DefaultSensitivity, tone: "professional", epoch: 1}
}

func (s *memSettings) Settings(ctx context.Context) (*core.UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &core.UserSettings{Sensitivity: s.sensitivity, ReplyTone: s.tone}, nil
}

func (s *memSettings) UpdateSettings(ctx context.Context, settings *core.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings.Sensitivity != s.sensitivity {
		s.sensitivity = settings.Sensitivity
		s.epoch++
	}
	s.tone = settings.ReplyTone
	return nil
}

func (s *memSettings) Sensitivity(ctx context.Context) (core.Sensitivity, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sensitivity, s.epoch, nil
}

func (s *memSettings) SetSensitivity(ctx context.Context, v core.Sensitivity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensitivity = v
	s.epoch++
	return s.epoch, nil
}

func (s *memSettings) snapshot() (core.Sensitivity, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sensitivity, s.tone
}

// nopCache satisfies core.RiskCacheRepository without storing anything.
type nopCache struct{}

func (nopCache) Get(ctx context.Context, emailID string, epoch int64) (*core.RiskEntry, error) {
	return nil, context.Canceled
}
func (nopCache) Set(ctx context.Context, entry *core.RiskEntry) error { return nil }
func (nopCache) Invalidate(ctx context.Context, emailID string) error { return nil }
func (nopCache) InvalidateAll(ctx context.Context) error              { return nil }
func (nopCache) Cleanup(ctx context.Context) error                    { return nil }

func newTestClassifier(mailbox core.Mailbox, settings core.SettingsStore, model core.ModelClient) *core.BulkClassifier {
	analyzer := core.NewAnalyzer(model, nopCache{}, stubExtractor{}, zap.NewNop(), false, 0, time.Second)
	return core.NewBulkClassifier(mailbox, settings, analyzer, nopCache{}, zap.NewNop(), 2)
}

type stubExtractor struct{}

func (stubExtractor) ExtractLinks(body string) []string { return nil }

func newSettingsRouter(settings core.SettingsStore, classifier *core.BulkClassifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSettingsHandler(settings, classifier, zap.NewNop())
	r := gin.New()
	r.GET("/api/settings", h.Get)
	r.PUT("/api/settings", h.Update)
	return r
}

func TestSettingsGet(t *testing.T) {
	settings := newMemSettings()
	r := newSettingsRouter(settings, newTestClassifier(newMemMailbox(), settings, &stubModel{}))

	w, env := doRequest(t, r, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, env.Error)

	var got map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, float64(core.DefaultSensitivity), got["sensitivity"])
	assert.Equal(t, "professional", got["reply_tone"])
}

func TestSettingsUpdateTone(t *testing.T) {
	settings := newMemSettings()
	r := newSettingsRouter(settings, newTestClassifier(newMemMailbox(), settings, &stubModel{}))

	w, env := doRequest(t, r, http.MethodPut, "/api/settings", gin.H{"reply_tone": "casual"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, env.Error)

	sensitivity, tone := settings.snapshot()
	assert.Equal(t, core.DefaultSensitivity, sensitivity)
	assert.Equal(t, "casual", tone)
}

func TestSettingsUpdateSensitivity(t *testing.T) {
	settings := newMemSettings()
	mailbox := newMemMailbox(demoEmail("e1"))
	r := newSettingsRouter(settings, newTestClassifier(mailbox, settings, &stubModel{emailScore: 0.5}))

	w, env := doRequest(t, r, http.MethodPut, "/api/settings", gin.H{"sensitivity": 90})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, env.Error)

	var got map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, float64(90), got["sensitivity"])

	sensitivity, _ := settings.snapshot()
	assert.Equal(t, core.Sensitivity(90), sensitivity)
}

func TestSettingsUpdateValidation(t *testing.T) {
	settings := newMemSettings()
	r := newSettingsRouter(settings, newTestClassifier(newMemMailbox(), settings, &stubModel{}))

	w, env := doRequest(t, r, http.MethodPut, "/api/settings", gin.H{"sensitivity": 101})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)

	w, env = doRequest(t, r, http.MethodPut, "/api/settings", gin.H{"sensitivity": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)

	w, env = doRequest(t, r, http.MethodPut, "/api/settings", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)

	sensitivity, _ := settings.snapshot()
	assert.Equal(t, core.DefaultSensitivity, sensitivity, "rejected updates must not land")
}
