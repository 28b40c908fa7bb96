package handlers

import (
	"github.com/dimitrije/teamjoin/internal/middleware"
	"github.com/dimitrije/teamjoin/internal/sse"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type SSEHandler struct {
	hub   HubInterface
	flows *FlowRegistry
}

func NewSSEHandler(hub HubInterface, flows *FlowRegistry) *SSEHandler {
	return &SSEHandler{
		hub:   hub,
		flows: flows,
	}
}

// Connect streams the transitions of the request's join session. The first
// event carries the current state so a reloaded page can render at once.
func (h *SSEHandler) Connect(c *drift.Context) {
	sessionID := middleware.GetJoinSessionID(c)
	if sessionID == uuid.Nil {
		c.Unauthorized("missing join session")
		return
	}

	flow, ok := h.flows.Get(sessionID)
	if !ok {
		c.NotFound("join session not found")
		return
	}

	sseCtx := c.SSE()

	client := &sse.Client{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Send:      make(chan []byte, 64),
	}

	h.hub.Register(client)
	defer h.hub.Unregister(client)

	if err := sseCtx.SendJSON(map[string]any{
		"type":  "connected",
		"state": stateResponse(flow.Snapshot(), nil),
	}, "system", ""); err != nil {
		return
	}

	done := c.Request.Context().Done()
	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := sseCtx.Send(string(msg), "message", ""); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
