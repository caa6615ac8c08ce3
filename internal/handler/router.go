package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-scout/backend/internal/handler/chat"
	"github.com/zhouzirui/z-scout/backend/internal/handler/invocation"
	"github.com/zhouzirui/z-scout/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/z-scout/backend/internal/middleware"
	"github.com/zhouzirui/z-scout/backend/internal/service/agent"
)

// Agent is everything the HTTP surface needs from the search agent.
type Agent interface {
	invocation.Invoker
	chat.Service
}

// NewRouter wires HTTP routes to the agent. limiter may be nil to disable
// rate limiting of the invocation endpoints.
func NewRouter(svc Agent, limiter *middlewarePkg.RateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	invocationHandler := invocation.New(svc)
	streamHandler := stream.New(svc)

	invocationHandler.RegisterHealthRoutes(r)

	r.Group(func(limited chi.Router) {
		if limiter != nil {
			limited.Use(limiter.Handler)
		}
		invocationHandler.RegisterRoutes(limited)
		streamHandler.RegisterRoutes(limited)
	})

	r.Route("/api", func(api chi.Router) {
		chat.New(svc).RegisterRoutes(api)

		api.Group(func(ws chi.Router) {
			if limiter != nil {
				ws.Use(limiter.Handler)
			}
			chat.NewWebSocketHandler(svc).RegisterRoutes(ws)
		})
	})

	return r
}

var _ Agent = (*agent.Agent)(nil)
