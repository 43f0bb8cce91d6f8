package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"live_server/adapter/out/analytics"
	"live_server/core/domain"
	"live_server/core/port/in"
	"live_server/pkg/apperr"
	"live_server/pkg/response"
)

// =============================================================================
// Session Handler
// =============================================================================

// EventHistory serves persisted engine events.
type EventHistory interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]analytics.EventRow, error)
}

type SessionHandler struct {
	svc     in.SessionService
	history EventHistory
	log     zerolog.Logger
}

// NewSessionHandler builds the handler. history may be nil when no SQL sink
// is configured.
func NewSessionHandler(svc in.SessionService, history EventHistory, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		svc:     svc,
		history: history,
		log:     log.With().Str("handler", "session").Logger(),
	}
}

func (h *SessionHandler) Register(r fiber.Router) {
	r.Post("/sessions", h.Start)
	r.Get("/sessions", h.List)
	r.Get("/sessions/:id", h.Get)
	r.Delete("/sessions/:id", h.End)
	r.Get("/sessions/:id/stats", h.Stats)
	r.Get("/sessions/:id/history", h.History)
}

func (h *SessionHandler) Start(c *fiber.Ctx) error {
	var req in.StartSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperr.BadRequest("invalid request body")
		}
	}
	info, err := h.svc.StartSession(c.UserContext(), &req)
	if err != nil {
		return err
	}
	h.log.Info().Str("session_id", info.ID).Str("title", info.Title).Msg("session started")
	return response.Created(c, info)
}

func (h *SessionHandler) List(c *fiber.Ctx) error {
	sessions, err := h.svc.ListSessions(c.UserContext())
	if err != nil {
		return err
	}
	return response.OKWithMeta(c, sessions, &response.Meta{Total: len(sessions)})
}

func (h *SessionHandler) Get(c *fiber.Ctx) error {
	info, err := h.svc.GetSession(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return response.OK(c, info)
}

func (h *SessionHandler) End(c *fiber.Ctx) error {
	if err := h.svc.EndSession(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return response.NoContent(c)
}

func (h *SessionHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.svc.Stats(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return response.OK(c, stats)
}

// History returns persisted events for a session, newest first. Works for
// ended sessions too.
func (h *SessionHandler) History(c *fiber.Ctx) error {
	if h.history == nil {
		return apperr.New("NOT_CONFIGURED", "event history is not configured", fiber.StatusNotImplemented)
	}
	rows, err := h.history.Recent(c.UserContext(), c.Params("id"), c.QueryInt("limit", 100))
	if err != nil {
		return apperr.InternalWithError(err)
	}
	return response.OKWithMeta(c, rows, &response.Meta{Total: len(rows)})
}

// parseTopics reads a comma-separated list of event types. Unknown names
// are a validation error; an empty list means every topic.
func parseTopics(raw string) ([]domain.EventType, error) {
	if raw == "" {
		return nil, nil
	}
	known := make(map[domain.EventType]bool, len(domain.AllEventTypes))
	for _, t := range domain.AllEventTypes {
		known[t] = true
	}
	var topics []domain.EventType
	for _, part := range strings.Split(raw, ",") {
		t := domain.EventType(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if !known[t] {
			return nil, apperr.Validation("types", "unknown event type "+string(t))
		}
		topics = append(topics, t)
	}
	return topics, nil
}
