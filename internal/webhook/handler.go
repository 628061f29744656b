// Package webhook turns GitHub pull request deliveries into review tasks.
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/go-github/v72/github"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prreviewer/internal/metrics"
	"github.com/prreviewer/internal/review"
)

// Delivery outcomes, also used as metric labels.
const (
	OutcomeDispatched       = "dispatched"
	OutcomeIgnored          = "ignored"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeBadRequest       = "bad_request"
	OutcomeDispatchError    = "dispatch_error"
)

const pullRequestEvent = "pull_request"

// reviewActions are the pull_request actions that trigger a review.
var reviewActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
}

// Dispatcher hands a task to whatever runs reviews.
type Dispatcher interface {
	Dispatch(ctx context.Context, task review.Task) error
}

// Handler verifies and routes GitHub webhook deliveries.
type Handler struct {
	secret     []byte
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMetrics records delivery outcomes.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithLogger overrides the global logger.
func WithLogger(l zerolog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates a handler that checks signatures against secret.
func NewHandler(secret string, dispatcher Dispatcher, opts ...HandlerOption) (*Handler, error) {
	if secret == "" {
		return nil, errors.New("webhook secret is required")
	}
	if dispatcher == nil {
		return nil, errors.New("webhook dispatcher is required")
	}
	h := &Handler{
		secret:     []byte(secret),
		dispatcher: dispatcher,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle is the echo handler for POST /webhooks/github.
func (h *Handler) Handle(c echo.Context) error {
	req := c.Request()
	deliveryID := github.DeliveryID(req)
	logger := h.logger.With().Str("delivery_id", deliveryID).Logger()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return h.respond(c, http.StatusBadRequest, OutcomeBadRequest, "Failed to read request body")
	}

	if err := github.ValidateSignature(req.Header.Get(github.SHA256SignatureHeader), body, h.secret); err != nil {
		logger.Warn().Err(err).Msg("Rejected webhook with invalid signature")
		return h.respond(c, http.StatusUnauthorized, OutcomeInvalidSignature, "Invalid signature")
	}

	eventType := github.WebHookType(req)
	if eventType != pullRequestEvent {
		logger.Debug().Str("event", eventType).Msg("Ignoring non pull request event")
		return h.respond(c, http.StatusOK, OutcomeIgnored, "ignored")
	}

	task, ok, err := taskFromPayload(body)
	if err != nil {
		logger.Warn().Err(err).Msg("Malformed pull request payload")
		return h.respond(c, http.StatusBadRequest, OutcomeBadRequest, err.Error())
	}
	if !ok {
		return h.respond(c, http.StatusOK, OutcomeIgnored, "ignored")
	}

	// Detach from the request so enqueueing survives a client disconnect.
	if err := h.dispatcher.Dispatch(context.WithoutCancel(req.Context()), task); err != nil {
		logger.Error().Err(err).Str("dedupe_key", task.DedupeKey()).Msg("Failed to dispatch review")
		return h.respond(c, http.StatusInternalServerError, OutcomeDispatchError, "Failed to dispatch review")
	}

	logger.Info().
		Str("owner", task.Owner).
		Str("repo", task.Repo).
		Int("pr", task.PRNumber).
		Str("head_sha", task.HeadSHA).
		Msg("Dispatched review")
	return h.respond(c, http.StatusOK, OutcomeDispatched, "dispatched")
}

func (h *Handler) respond(c echo.Context, status int, outcome, message string) error {
	h.metrics.ObserveWebhook(outcome)
	return c.String(status, message)
}

// taskFromPayload extracts a review task from a pull_request payload. ok is
// false for actions that do not trigger a review.
func taskFromPayload(body []byte) (review.Task, bool, error) {
	parsed, err := github.ParseWebHook(pullRequestEvent, body)
	if err != nil {
		return review.Task{}, false, errors.New("invalid JSON payload")
	}
	event, isPR := parsed.(*github.PullRequestEvent)
	if !isPR {
		return review.Task{}, false, errors.New("unexpected payload type")
	}
	if !reviewActions[event.GetAction()] {
		return review.Task{}, false, nil
	}

	task := review.Task{
		Owner:    event.GetRepo().GetOwner().GetLogin(),
		Repo:     event.GetRepo().GetName(),
		PRNumber: event.GetPullRequest().GetNumber(),
		HeadSHA:  event.GetPullRequest().GetHead().GetSHA(),
	}
	if err := task.Validate(); err != nil {
		return review.Task{}, false, err
	}
	return task, true, nil
}
