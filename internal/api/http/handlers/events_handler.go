package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/community-service/internal/dialog"
	"github.com/spec-kit/community-service/pkg/util"
)

// EventsHandler accepts inbound messaging-platform traffic from the
// gateway bridge and feeds it to the dialog dispatcher.
type EventsHandler struct {
	dispatcher *dialog.Dispatcher
}

// NewEventsHandler returns a new handler instance.
func NewEventsHandler(dispatcher *dialog.Dispatcher) *EventsHandler {
	return &EventsHandler{dispatcher: dispatcher}
}

type startRequest struct {
	UserID int64  `json:"user_id"`
	Kind   string `json:"kind"`
}

type textRequest struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

type selectionRequest struct {
	UserID int64  `json:"user_id"`
	Data   string `json:"data"`
}

// Start opens a workflow for a user.
func (h *EventsHandler) Start(c *fiber.Ctx) error {
	var req startRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid request body", nil)
	}
	if req.UserID <= 0 {
		return util.NewValidationError("user_id is required", nil)
	}

	if err := h.dispatcher.StartWorkflow(c.UserContext(), dialog.WorkflowKind(req.Kind), req.UserID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"handled": true})
}

// Text routes a free-form message. Messages starting with "/" are
// treated as commands.
func (h *EventsHandler) Text(c *fiber.Ctx) error {
	var req textRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid request body", nil)
	}
	if req.UserID <= 0 {
		return util.NewValidationError("user_id is required", nil)
	}

	var (
		handled bool
		err     error
	)
	if command, args, ok := splitCommand(req.Text); ok {
		handled, err = h.dispatcher.HandleCommand(c.UserContext(), req.UserID, command, args)
	} else {
		handled, err = h.dispatcher.HandleText(c.UserContext(), req.UserID, req.Text)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"handled": handled})
}

// Selection routes a button selection.
func (h *EventsHandler) Selection(c *fiber.Ctx) error {
	var req selectionRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid request body", nil)
	}
	if req.UserID <= 0 || req.Data == "" {
		return util.NewValidationError("user_id and data are required", nil)
	}

	handled, err := h.dispatcher.HandleSelection(c.UserContext(), req.UserID, req.Data)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"handled": handled})
}

func splitCommand(text string) (string, []string, bool) {
	if !strings.HasPrefix(strings.TrimSpace(text), "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}
