// Package api is SEFS's REST+SSE façade over the control-plane
// surface spec.md §6 describes, grounded on the teacher's
// pkg/server/server.go (echo route registration, JSON error shape,
// and SSE streaming loop). It marshals requests into calls on
// pkg/engine and streams bus events; it does not implement RAG prompt
// assembly or provider SDKs (spec.md §1's explicit non-goal).
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sefs-dev/sefs/pkg/engine"
	"github.com/sefs-dev/sefs/pkg/model"
)

// Engine is the subset of *engine.Engine the API surface drives,
// narrowed so handlers can be tested against a fake.
type Engine interface {
	Status(ctx context.Context) (engine.Status, error)
	ListFiles(ctx context.Context) ([]*model.FileRecord, error)
	ListClusters(ctx context.Context) ([]*model.ClusterRecord, error)
	ListEvents(ctx context.Context, limit int) ([]*model.Event, error)
	SemanticSearch(ctx context.Context, query string, limit int) ([]engine.SearchResult, error)
	Related(ctx context.Context, fileID int64, limit int) ([]engine.SearchResult, error)
	Rescan(ctx context.Context) (int, error)
	SwitchRoot(ctx context.Context, newRoot string) error
	Subscribe() (<-chan model.Broadcast, func())
}

// ChatFunc performs RAG prompt assembly and the provider call; it is
// an injected collaborator because that work is explicitly out of
// scope here (spec.md §1) — this package only owns the streaming
// transport and the {sources, token, done, error} event shape.
type ChatFunc func(ctx context.Context, message string) (<-chan ChatEvent, error)

// ChatEvent is one SSE frame of a RAG-chat response (spec.md §6).
type ChatEvent struct {
	Sources []string `json:"sources,omitempty"`
	Token   string   `json:"token,omitempty"`
	Done    bool     `json:"done,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Server wraps an echo.Echo bound to the control-plane op table.
type Server struct {
	e      *echo.Echo
	engine Engine
	chat   ChatFunc
}

// Opt configures a Server at construction time.
type Opt func(*Server)

// WithChatFunc installs the RAG-chat collaborator.
func WithChatFunc(fn ChatFunc) Opt {
	return func(s *Server) { s.chat = fn }
}

// New builds a Server bound to engine.
func New(engine Engine, opts ...Opt) *Server {
	e := echo.New()
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())

	s := &Server{e: e, engine: engine}
	for _, opt := range opts {
		opt(s)
	}

	group := e.Group("/api")
	group.GET("/status", s.getStatus)
	group.GET("/files", s.listFiles)
	group.GET("/clusters", s.listClusters)
	group.GET("/events", s.listEvents)
	group.GET("/search", s.semanticSearch)
	group.GET("/files/:id/related", s.related)
	group.POST("/rescan", s.rescan)
	group.POST("/root", s.switchRoot)
	group.GET("/subscribe", s.subscribe)
	group.POST("/chat", s.chatStream)

	return s
}

// Start runs the HTTP server on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	go func() {
		<-ctx.Done()
		_ = s.e.Shutdown(context.Background())
	}()
	if err := s.e.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

func errJSON(c echo.Context, status int, err error) error {
	return c.JSON(status, map[string]string{"error": err.Error()})
}
