package http

import (
	"bufio"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"live_server/core/domain"
	"live_server/core/port/in"
)

// =============================================================================
// SSE Handler - analytics events per session
// =============================================================================

const heartbeatInterval = 15 * time.Second

// EventStreamHandler streams a session's analytics events as Server-Sent
// Events.
type EventStreamHandler struct {
	svc in.SessionService
	log zerolog.Logger
}

func NewEventStreamHandler(svc in.SessionService, log zerolog.Logger) *EventStreamHandler {
	return &EventStreamHandler{
		svc: svc,
		log: log.With().Str("handler", "sse").Logger(),
	}
}

func (h *EventStreamHandler) Register(r fiber.Router) {
	r.Get("/sessions/:id/events", h.Stream)
}

// Stream subscribes before writing headers so an unknown session is a plain
// 404. ?types=fallback,completed narrows the topics.
func (h *EventStreamHandler) Stream(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	topics, err := parseTopics(c.Query("types"))
	if err != nil {
		return err
	}
	sub, err := h.svc.Subscribe(c.UserContext(), sessionID, topics...)
	if err != nil {
		return err
	}

	h.log.Info().Str("session_id", sessionID).Int("topics", len(topics)).Msg("SSE client connected")

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		defer func() {
			sub.Unsubscribe()
			h.log.Info().Str("session_id", sessionID).Msg("SSE client disconnected")
		}()

		w.WriteString("event: connected\n")
		w.WriteString("data: {\"session_id\":\"" + sessionID + "\"}\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case ev, ok := <-sub.C():
				if !ok {
					// bus closed or session ended
					w.WriteString("event: closed\ndata: {}\n\n")
					w.Flush()
					return
				}
				if err := h.writeEvent(w, &ev); err != nil {
					h.log.Debug().Err(err).Msg("client disconnected during write")
					return
				}
				if ev.Type == domain.EventSessionEnded {
					w.WriteString("event: closed\ndata: {}\n\n")
					w.Flush()
					return
				}

			case <-ticker.C:
				w.WriteString(": heartbeat\n\n")
				if err := w.Flush(); err != nil {
					h.log.Debug().Err(err).Msg("client disconnected during heartbeat")
					return
				}
			}
		}
	})
	return nil
}

// writeEvent writes one SSE frame. Events that fail to serialize are
// logged and skipped.
func (h *EventStreamHandler) writeEvent(w *bufio.Writer, ev *domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to serialize event")
		return nil
	}
	w.WriteString("event: ")
	w.WriteString(string(ev.Type))
	w.WriteString("\nid: ")
	w.WriteString(formatID(ev.ID))
	w.WriteString("\ndata: ")
	w.Write(data)
	w.WriteString("\n\n")
	return w.Flush()
}
