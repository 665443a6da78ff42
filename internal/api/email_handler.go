package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/core"
)

// EmailHandler serves mailbox reads and status mutations.
type EmailHandler struct {
	mailbox  core.Mailbox
	pipeline *core.BodyPipeline
	logger   *zap.Logger
}

// NewEmailHandler creates a new EmailHandler.
func NewEmailHandler(mailbox core.Mailbox, pipeline *core.BodyPipeline, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{
		mailbox:  mailbox,
		pipeline: pipeline,
		logger:   logger,
	}
}

// EmailSummary is the list view of a message.
type EmailSummary struct {
	ID       string    `json:"id"`
	FromName string    `json:"from_name"`
	FromAddr string    `json:"from_address"`
	Subject  string    `json:"subject"`
	Snippet  string    `json:"snippet"`
	Date     time.Time `json:"date"`
	Unread   bool      `json:"unread"`
	Starred  bool      `json:"starred"`
	Status   string    `json:"status"`
	Risk     string    `json:"risk"`
}

func toSummary(e *core.Email) EmailSummary {
	return EmailSummary{
		ID:       e.ID,
		FromName: e.From.Name,
		FromAddr: e.From.Address,
		Subject:  e.Subject,
		Snippet:  e.Snippet,
		Date:     e.Date,
		Unread:   e.Unread,
		Starred:  e.Starred,
		Status:   string(e.Status),
		Risk:     string(e.Risk),
	}
}

// EmailDetail is the full view of a message, body annotated with per-link
// risk indicators.
type EmailDetail struct {
	EmailSummary
	Body          string          `json:"body"`
	AnnotatedBody string          `json:"annotated_body"`
	Links         []core.LinkRisk `json:"links"`
}

// List returns the emails with the requested status.
// GET /api/emails?status=inbox
func (h *EmailHandler) List(c *gin.Context) {
	status := core.EmailStatus(c.DefaultQuery("status", string(core.StatusInbox)))
	if status != core.StatusInbox && status != core.StatusTrash {
		fail(c, http.StatusBadRequest, "unknown status: "+string(status))
		return
	}

	emails, err := h.mailbox.List(c.Request.Context(), status)
	if err != nil {
		h.logger.Error("failed to list emails", zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to list emails")
		return
	}

	summaries := make([]EmailSummary, len(emails))
	for i, e := range emails {
		summaries[i] = toSummary(e)
	}
	ok(c, http.StatusOK, summaries)
}

// Get returns one email with its annotated body. Per-link resolution fans
// out here and joins before the response is written.
// GET /api/emails/:id
func (h *EmailHandler) Get(c *gin.Context) {
	email, found := h.load(c)
	if !found {
		return
	}

	annotated, risks, err := h.pipeline.AnnotatedBody(c.Request.Context(), email.Body)
	if err != nil {
		// The un-annotated body is still served; links just carry no
		// indicators.
		annotated = email.Body
	}

	links := make([]core.LinkRisk, 0, len(risks))
	for _, r := range risks {
		links = append(links, r)
	}

	ok(c, http.StatusOK, EmailDetail{
		EmailSummary:  toSummary(email),
		Body:          email.Body,
		AnnotatedBody: annotated,
		Links:         links,
	})
}

type readRequest struct {
	Read bool `json:"read"`
}

// SetRead updates the read flag.
// POST /api/emails/:id/read
func (h *EmailHandler) SetRead(c *gin.Context) {
	email, found := h.load(c)
	if !found {
		return
	}
	var req readRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.mailbox.SetRead(c.Request.Context(), email.ID, req.Read); err != nil {
		fail(c, http.StatusInternalServerError, "failed to update email")
		return
	}
	ok(c, http.StatusOK, gin.H{"id": email.ID, "read": req.Read})
}

type starRequest struct {
	Starred bool `json:"starred"`
}

// SetStarred updates the starred flag.
// POST /api/emails/:id/star
func (h *EmailHandler) SetStarred(c *gin.Context) {
	email, found := h.load(c)
	if !found {
		return
	}
	var req starRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.mailbox.SetStarred(c.Request.Context(), email.ID, req.Starred); err != nil {
		fail(c, http.StatusInternalServerError, "failed to update email")
		return
	}
	ok(c, http.StatusOK, gin.H{"id": email.ID, "starred": req.Starred})
}

// Trash moves an email to the bin.
// POST /api/emails/:id/trash
func (h *EmailHandler) Trash(c *gin.Context) {
	h.setStatus(c, core.StatusTrash)
}

// Restore moves an email back to the inbox.
// POST /api/emails/:id/restore
func (h *EmailHandler) Restore(c *gin.Context) {
	h.setStatus(c, core.StatusInbox)
}

func (h *EmailHandler) setStatus(c *gin.Context, status core.EmailStatus) {
	email, found := h.load(c)
	if !found {
		return
	}
	if err := h.mailbox.SetStatus(c.Request.Context(), email.ID, status); err != nil {
		fail(c, http.StatusInternalServerError, "failed to update email")
		return
	}
	ok(c, http.StatusOK, gin.H{"id": email.ID, "status": string(status)})
}

// Delete permanently removes an email.
// DELETE /api/emails/:id
func (h *EmailHandler) Delete(c *gin.Context) {
	email, found := h.load(c)
	if !found {
		return
	}
	if err := h.mailbox.Delete(c.Request.Context(), email.ID); err != nil {
		fail(c, http.StatusInternalServerError, "failed to delete email")
		return
	}
	ok(c, http.StatusOK, gin.H{"id": email.ID, "deleted": true})
}

func (h *EmailHandler) load(c *gin.Context) (*core.Email, bool) {
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
