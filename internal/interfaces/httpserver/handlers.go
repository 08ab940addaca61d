package httpserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tetkool/concierge/internal/interfaces/adapter"
	"github.com/tetkool/concierge/internal/interfaces/telegram"
	"github.com/tetkool/concierge/internal/utils/platformerrors"
	"github.com/tetkool/concierge/internal/worker"
)

const (
	transportName        = "http"
	telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// MessageService processes a message and returns the reply once it is ready.
type MessageService interface {
	DispatchAndWait(ctx context.Context, msg adapter.Inbound) (string, error)
}

// UpdateHandler accepts Telegram webhook updates.
type UpdateHandler interface {
	HandleUpdate(update telegram.Update) error
}

// CreateMessageRequest is the body of POST /v1/messages.
type CreateMessageRequest struct {
	UserID    string `json:"user_id" binding:"required,max=128"`
	Text      string `json:"text" binding:"required,max=4096"`
	FirstName string `json:"first_name,omitempty" binding:"max=128"`
}

// CreateMessageResponse carries the reply text.
type CreateMessageResponse struct {
	UserID string `json:"user_id"`
	Reply  string `json:"reply"`
}

// MessageHandler exposes the orchestration loop over plain HTTP.
type MessageHandler struct {
	service MessageService
	log     zerolog.Logger
}

func NewMessageHandler(service MessageService, log zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		service: service,
		log:     log.With().Str("handler", "messages").Logger(),
	}
}

// Create handles POST /v1/messages.
func (h *MessageHandler) Create(c *gin.Context) {
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", err)
		return
	}

	reply, err := h.service.DispatchAndWait(c.Request.Context(), adapter.Inbound{
		Transport:   transportName,
		UserID:      req.UserID,
		DisplayName: req.FirstName,
		Text:        req.Text,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, CreateMessageResponse{UserID: req.UserID, Reply: reply})
	case errors.Is(err, adapter.ErrIgnored):
		HandleNewError(c, platformerrors.ErrorTypeValidation, "message has no text", err)
	case errors.Is(err, worker.ErrPoolStopped):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: "service is shutting down"})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		HandleNewError(c, platformerrors.ErrorTypeTimeout, "reply not ready before the request ended", err)
	default:
		h.log.Error().Err(err).Msg("message dispatch failed")
		HandleError(c, err, "failed to process message")
	}
}

// WebhookHandler receives Telegram updates pushed to the webhook URL.
type WebhookHandler struct {
	updates UpdateHandler
	secret  []byte
	log     zerolog.Logger
}

func NewWebhookHandler(updates UpdateHandler, secret string, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		updates: updates,
		secret:  []byte(secret),
		log:     log.With().Str("handler", "telegram-webhook").Logger(),
	}
}

// Receive handles POST /telegram/webhook. Accepted updates are answered with 200
// even when dispatching fails so Telegram does not redeliver them.
func (h *WebhookHandler) Receive(c *gin.Context) {
	if subtle.ConstantTimeCompare([]byte(c.GetHeader(telegramSecretHeader)), h.secret) != 1 {
		HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "invalid webhook secret", nil)
		return
	}

	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid update", err)
		return
	}

	if err := h.updates.HandleUpdate(update); err != nil {
		h.log.Error().Err(err).Int64("update_id", update.UpdateID).Msg("failed to dispatch webhook update")
	}
	c.Status(http.StatusOK)
}
