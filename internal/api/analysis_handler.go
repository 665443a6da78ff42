package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/core"
)

// AnalysisHandler serves the model-backed operations.
type AnalysisHandler struct {
	mailbox    core.Mailbox
	settings   core.SettingsStore
	classifier *core.BulkClassifier
	model      core.ModelClient
	logger     *zap.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(
	mailbox core.Mailbox,
	settings core.SettingsStore,
	classifier *core.BulkClassifier,
	model core.ModelClient,
	logger *zap.Logger,
) *AnalysisHandler {
	return &AnalysisHandler{
		mailbox:    mailbox,
		settings:   settings,
		classifier: classifier,
		model:      model,
		logger:     logger,
	}
}

// Classify starts a bulk classification pass over the unclassified inbox
// emails. Selected emails turn pending before this returns; results land
// incrementally as each call settles.
// POST /api/classify
func (h *AnalysisHandler) Classify(c *gin.Context) {
	go func() {
		if _, err := h.classifier.Run(context.Background()); err != nil {
			h.logger.Error("bulk classification failed", zap.Error(err))
		}
	}()
	ok(c, http.StatusAccepted, gin.H{"status": "started"})
}

// Summarize generates a summary of one email's body.
// POST /api/emails/:id/summarize
func (h *AnalysisHandler) Summarize(c *gin.Context) {
	email, found := h.load(c)
	if !found {
		return
	}
	if email.Body == "" {
		fail(c, http.StatusBadRequest, "email has no body to summarize")
		return
	}

	result, err := h.model.Summarize(c.Request.Context(), email.Body)
	if err != nil {
		h.logger.Warn("summarization failed", zap.String("email_id", email.ID), zap.Error(err))
		fail(c, http.StatusBadGateway, "Failed to summarize email: "+err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"summary": result.Summary})
}

type replyRequest struct {
	ThreatSignals string `json:"threat_signals"`
}

// DraftReply generates a safe reply to one email, using the configured
// reply tone.
// POST /api/emails/:id/reply
func (h *AnalysisHandler) DraftReply(c *gin.Context) {
	email, found := h.load(c)
	if !found {
		return
	}
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := h.settings.Settings(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to load settings")
		return
	}

	result, err := h.model.DraftReply(c.Request.Context(), &core.ReplyRequest{
		EmailContent:  email.Body,
		ThreatSignals: req.ThreatSignals,
		Tone:          settings.ReplyTone,
	})
	if err != nil {
		h.logger.Warn("reply drafting failed", zap.String("email_id", email.ID), zap.Error(err))
		fail(c, http.StatusBadGateway, "Failed to generate reply: "+err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"safe_reply": result.SafeReply})
}

// Briefing generates a security briefing, optionally tailored to recent
// risk factors passed as repeated "factor" query parameters.
// GET /api/briefing
func (h *AnalysisHandler) Briefing(c *gin.Context) {
	factors := c.QueryArray("factor")

	result, err := h.model.SecurityBriefing(c.Request.Context(), factors)
	if err != nil {
		h.logger.Warn("briefing generation failed", zap.Error(err))
		fail(c, http.StatusBadGateway, "Failed to generate briefing: "+err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"briefing": result.Briefing})
}

func (h *AnalysisHandler) load(c *gin.Context) (*core.Email, bool) {
	id := c.Param("id")
	if id == "" {
		fail(c, http.StatusBadRequest, "missing email id")
		return nil, false
	}
	email, err := h.mailbox.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusNotFound, "email not found")
		return nil, false
	}
	return email, true
}
