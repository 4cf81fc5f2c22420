package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/testgen-workbench/internal/dto"
	"github.com/noah-isme/testgen-workbench/internal/middleware"
	"github.com/noah-isme/testgen-workbench/internal/models"
	"github.com/noah-isme/testgen-workbench/internal/service"
	"github.com/noah-isme/testgen-workbench/internal/utils"
	"github.com/noah-isme/testgen-workbench/internal/view"
)

// DocumentField is the multipart field carrying the selected document.
const DocumentField = "document"

const sessionLocalKey = "workbench_session"

var errDocumentTooLarge = errors.New("document exceeds upload limit")

// WorkbenchHandler serves the HTML workbench and its JSON and websocket views.
type WorkbenchHandler struct {
	sessions service.SessionStore
	accept   []string
	maxBytes int64
	logger   zerolog.Logger
}

// NewWorkbenchHandler constructs a workbench handler.
func NewWorkbenchHandler(sessions service.SessionStore, accept []string, maxBytes int, logger zerolog.Logger) *WorkbenchHandler {
	return &WorkbenchHandler{
		sessions: sessions,
		accept:   accept,
		maxBytes: int64(maxBytes),
		logger:   logger.With().Str("component", "workbench_handler").Logger(),
	}
}

// Register wires workbench routes. submitGuard runs in front of the submit
// route only and may be nil.
func (h *WorkbenchHandler) Register(router fiber.Router, submitGuard fiber.Handler) {
	if submitGuard == nil {
		submitGuard = func(c *fiber.Ctx) error { return c.Next() }
	}

	router.Get("/", h.create)
	router.Get("/sessions/:id", h.page)
	router.Post("/sessions/:id/file", h.selectFile)
	router.Post("/sessions/:id/submit", submitGuard, h.submit)
	router.Get("/sessions/:id/state", h.state)
	router.Get("/sessions/:id/ws", h.upgrade, websocket.New(h.stream))
}

func (h *WorkbenchHandler) create(c *fiber.Ctx) error {
	session := h.sessions.Create()
	requestLogger(h.logger, c).Info().Str("session_id", session.ID).Msg("workbench session opened")
	return c.Redirect(sessionPath(session.ID), fiber.StatusSeeOther)
}

func (h *WorkbenchHandler) page(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.sessionMissing(c, err)
	}

	page := view.NewPage(session.ID, session.Controller.Snapshot(), h.accept)

	var buf bytes.Buffer
	if err := view.Render(&buf, page); err != nil {
		requestLogger(h.logger, c).Error().Err(err).Str("session_id", session.ID).Msg("failed to render workbench")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to render workbench")
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

func (h *WorkbenchHandler) selectFile(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.sessionMissing(c, err)
	}

	var doc *models.Document
	if header, formErr := c.FormFile(DocumentField); formErr == nil {
		doc, err = h.readDocument(header)
		switch {
		case errors.Is(err, errDocumentTooLarge):
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
		case err != nil:
			requestLogger(h.logger, c).Error().Err(err).Str("session_id", session.ID).Msg("failed to read document")
			return utils.SendError(c, fiber.StatusBadRequest, "unable to read document")
		}
	}

	session.Controller.SelectFile(doc)

	if wantsJSON(c) {
		return utils.SendSuccess(c, "document selected", dto.NewSessionStateResponse(session.ID, session.Controller.Snapshot()))
	}
	return c.Redirect(sessionPath(session.ID), fiber.StatusSeeOther)
}

func (h *WorkbenchHandler) submit(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.sessionMissing(c, err)
	}

	// The dispatch outlives the request; only the correlation id carries over.
	ctx := middleware.ContextWithCorrelation(context.Background(), middleware.GetCorrelationID(c))
	outcome, _ := session.Controller.SubmitAsync(ctx)

	requestLogger(h.logger, c).Info().
		Str("session_id", session.ID).
		Str("outcome", outcome.String()).
		Msg("submit requested")

	if wantsJSON(c) {
		status := fiber.StatusOK
		if outcome == service.SubmitStarted {
			status = fiber.StatusAccepted
		}
		return utils.SendSuccessWithStatus(c, status, "submit "+outcome.String(), dto.SubmitResponse{
			SessionID: session.ID,
			Outcome:   outcome.String(),
		})
	}
	return c.Redirect(sessionPath(session.ID), fiber.StatusSeeOther)
}

func (h *WorkbenchHandler) state(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	}

	return utils.SendSuccess(c, "session state", dto.NewSessionStateResponse(session.ID, session.Controller.Snapshot()))
}

func (h *WorkbenchHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	session, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	}

	c.Locals(sessionLocalKey, session)
	return c.Next()
}

func (h *WorkbenchHandler) stream(conn *websocket.Conn) {
	session, ok := conn.Locals(sessionLocalKey).(*service.WorkbenchSession)
	if !ok {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session missing"))
		_ = conn.Close()
		return
	}

	logger := h.logger.With().
		Str("session_id", session.ID).
		Str("correlation_id", fmt.Sprint(conn.Locals("correlation_id"))).
		Logger()

	updates, cancel := session.Controller.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger.Info().Msg("state stream connected")
	defer logger.Info().Msg("state stream disconnected")

	for {
		select {
		case <-closed:
			return
		case state, open := <-updates:
			if !open {
				return
			}
			if err := conn.WriteJSON(dto.NewSessionStateResponse(session.ID, state)); err != nil {
				logger.Debug().Err(err).Msg("state stream write failed")
				return
			}
		}
	}
}

func (h *WorkbenchHandler) readDocument(header *multipart.FileHeader) (*models.Document, error) {
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		return nil, errDocumentTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return &models.Document{
		Name:        header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}, nil
}

// sessionMissing sends browsers to a fresh session and API clients a 404.
func (h *WorkbenchHandler) sessionMissing(c *fiber.Ctx, err error) error {
	if !errors.Is(err, service.ErrSessionNotFound) {
		requestLogger(h.logger, c).Error().Err(err).Msg("session lookup failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "session lookup failed")
	}
	if wantsJSON(c) {
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

func sessionPath(id string) string {
	return "/sessions/" + id
}

func wantsJSON(c *fiber.Ctx) bool {
	return c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
}
