package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"live_server/core/domain"
	"live_server/core/port/in"
	"live_server/pkg/apperr"
	"live_server/pkg/response"
)

// maxBatch bounds one batch request.
const maxBatch = 500

// IngestHandler accepts normalized comments from platform bridges.
type IngestHandler struct {
	svc in.SessionService
	log zerolog.Logger
}

func NewIngestHandler(svc in.SessionService, log zerolog.Logger) *IngestHandler {
	return &IngestHandler{svc: svc, log: log.With().Str("handler", "ingest").Logger()}
}

// Register mounts the ingest routes. Auth and rate limiting are applied by
// the caller on r.
func (h *IngestHandler) Register(r fiber.Router) {
	r.Post("/sessions/:id/comments", h.Ingest)
	r.Post("/sessions/:id/comments/batch", h.IngestBatch)
}

// Ingest admits one comment. Capacity rejections are a normal result
// (accepted=false with a reason), not an error.
func (h *IngestHandler) Ingest(c *fiber.Ctx) error {
	var comment domain.Comment
	if err := c.BodyParser(&comment); err != nil {
		return apperr.BadRequest("invalid comment body")
	}
	res, err := h.svc.Ingest(c.UserContext(), c.Params("id"), &comment)
	if err != nil {
		return err
	}
	return response.Accepted(c, res)
}

// BatchItem is one entry of a batch response.
type BatchItem struct {
	Result *in.IngestResult    `json:"result,omitempty"`
	Error  *response.ErrorInfo `json:"error,omitempty"`
}

// IngestBatch admits comments in order. Invalid comments get a per-item
// error; a missing or closed session fails the whole request.
func (h *IngestHandler) IngestBatch(c *fiber.Ctx) error {
	var comments []domain.Comment
	if err := c.BodyParser(&comments); err != nil {
		return apperr.BadRequest("invalid batch body")
	}
	if len(comments) > maxBatch {
		return apperr.Validation("comments", "batch larger than 500")
	}

	sessionID := c.Params("id")
	items := make([]BatchItem, 0, len(comments))
	accepted := 0
	for i := range comments {
		res, err := h.svc.Ingest(c.UserContext(), sessionID, &comments[i])
		if err != nil {
			if apperr.IsCode(err, apperr.CodeValidationFailed) {
				e := apperr.AsAppError(err)
				items = append(items, BatchItem{Error: &response.ErrorInfo{Code: e.Code, Message: e.Message, Details: e.Details}})
				continue
			}
			return err
		}
		if res.Accepted {
			accepted++
		}
		items = append(items, BatchItem{Result: res})
	}

	h.log.Debug().Str("session_id", sessionID).Int("received", len(comments)).Int("accepted", accepted).Msg("batch ingested")
	return response.Accepted(c, fiber.Map{"items": items, "accepted": accepted})
}
