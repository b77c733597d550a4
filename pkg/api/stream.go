package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// writeSSEHeaders opens an SSE response, matching the teacher's
// chat-stream handler framing exactly (pkg/server/server.go).
func writeSSEHeaders(c echo.Context) {
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
}

func writeSSE(c echo.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response(), "data: %s\n\n", data); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}

// subscribe implements spec.md §6's "subscribe" op: a long-lived SSE
// stream of bus events (spec.md §4.12 event types), framed as
// `data: <json>\n\n` per event.
func (s *Server) subscribe(c echo.Context) error {
	events, unsubscribe := s.engine.Subscribe()
	defer unsubscribe()

	writeSSEHeaders(c)
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeSSE(c, ev); err != nil {
				return nil
			}
		}
	}
}

// chatStream implements spec.md §6's "RAG-chat" op. Prompt assembly
// and the provider call live entirely in the injected ChatFunc; this
// handler only owns the streaming transport and event shape.
func (s *Server) chatStream(c echo.Context) error {
	if s.chat == nil {
		return errJSON(c, http.StatusNotImplemented, errMissingParam("chat function not configured"))
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}

	ctx := c.Request().Context()
	events, err := s.chat(ctx, req.Message)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}

	writeSSEHeaders(c)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeSSE(c, ev); err != nil {
				return nil
			}
			if ev.Done || ev.Error != "" {
				return nil
			}
		}
	}
}
