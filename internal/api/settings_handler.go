package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/core"
)

// SettingsHandler serves the user settings endpoints.
type SettingsHandler struct {
	settings   core.SettingsStore
	classifier *core.BulkClassifier
	logger     *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settings core.SettingsStore, classifier *core.BulkClassifier, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings:   settings,
		classifier: classifier,
		logger:     logger,
	}
}

type settingsPayload struct {
	Sensitivity *int    `json:"sensitivity,omitempty"`
	ReplyTone   *string `json:"reply_tone,omitempty"`
}

// Get returns the current user settings.
// GET /api/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settings.Settings(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to load settings")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"sensitivity": int(settings.Sensitivity),
		"reply_tone":  settings.ReplyTone,
	})
}

// Update applies partial settings changes. A sensitivity change retires
// every previously computed risk level and kicks off a reclassification
// of the whole inbox.
// PUT /api/settings
func (h *SettingsHandler) Update(c *gin.Context) {
	var req settingsPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Sensitivity == nil && req.ReplyTone == nil {
		fail(c, http.StatusBadRequest, "no settings provided")
		return
	}
	if req.Sensitivity != nil && (*req.Sensitivity < 0 || *req.Sensitivity > 100) {
		fail(c, http.StatusBadRequest, "sensitivity must be between 0 and 100")
		return
	}

	ctx := c.Request.Context()
	current, err := h.settings.Settings(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to load settings")
		return
	}

	updated := *current
	sensitivityChanged := false
	if req.Sensitivity != nil {
		next := core.Sensitivity(*req.Sensitivity)
		sensitivityChanged = next != current.Sensitivity
		updated.Sensitivity = next
	}
	if req.ReplyTone != nil {
		updated.ReplyTone = *req.ReplyTone
	}

	if err := h.settings.UpdateSettings(ctx, &updated); err != nil {
		h.logger.Error("settings update failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to update settings")
		return
	}

	if sensitivityChanged {
		h.logger.Info("sensitivity changed, reclassifying inbox",
			zap.Int("sensitivity", int(updated.Sensitivity)))
		go func() {
			if _, err := h.classifier.Reclassify(context.Background()); err != nil {
				h.logger.Error("reclassification failed", zap.Error(err))
			}
		}()
	}

	ok(c, http.StatusOK, gin.H{
		"sensitivity": int(updated.Sensitivity),
		"reply_tone":  updated.ReplyTone,
	})
}
