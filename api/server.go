package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	coachx "github.com/tanpawarit/habit-elevate/agent/agents/coach"
	responderx "github.com/tanpawarit/habit-elevate/agent/agents/responder"
	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
	schedulerx "github.com/tanpawarit/habit-elevate/scheduler"
	voicex "github.com/tanpawarit/habit-elevate/voice"
)

type Config struct {
	Addr               string        `envconfig:"ADDR" default:":8000"`
	ReadHeaderTimeout  time.Duration `envconfig:"READ_HEADER_TIMEOUT" split_words:"true" default:"10s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"15s"`
	AllowedOrigins     []string      `envconfig:"ALLOWED_ORIGINS" split_words:"true" default:"*"`
	DefaultCountryCode string        `envconfig:"DEFAULT_COUNTRY_CODE" split_words:"true" default:"+91"`
}

type ChatStreamer interface {
	Stream(ctx context.Context, req responderx.Request) <-chan responderx.StreamEvent
}

type WebhookHandler interface {
	Handle(ctx context.Context, payload []byte) (voicex.Response, error)
}

type JobScheduler interface {
	Schedule(name string, runAt time.Time, action schedulerx.Action) (string, error)
}

type PlanGenerator interface {
	Generate(ctx context.Context, req coachx.PlanRequest) (coachx.Plan, error)
}

// Deps are the collaborators behind the routes. Planner may be nil, in which case the goal
// plan route answers 503.
type Deps struct {
	Todos     contractx.TodoStore
	Owners    contractx.OwnerDirectory
	Chat      ChatStreamer
	Webhook   WebhookHandler
	Calls     contractx.CallDispatcher
	Scheduler JobScheduler
	Planner   PlanGenerator
}

type Server struct {
	cfg    Config
	deps   Deps
	router chi.Router
	now    func() time.Time
}

func NewServer(cfg Config, deps Deps) (*Server, error) {
	switch {
	case deps.Todos == nil:
		return nil, errors.New("todo store is required")
	case deps.Owners == nil:
		return nil, errors.New("owner directory is required")
	case deps.Chat == nil:
		return nil, errors.New("chat streamer is required")
	case deps.Webhook == nil:
		return nil, errors.New("webhook handler is required")
	case deps.Calls == nil:
		return nil, errors.New("call dispatcher is required")
	case deps.Scheduler == nil:
		return nil, errors.New("job scheduler is required")
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	s := &Server{cfg: cfg, deps: deps, now: time.Now}
	s.setupRoutes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/chat", s.handleChat)

		api.Route("/todos", func(todos chi.Router) {
			todos.Post("/", s.handleCreateTodo)
			todos.Get("/", s.handleListTodos)
			todos.Delete("/completed", s.handleClearCompleted)
			todos.Delete("/completed/clear", s.handleClearCompleted)
			todos.Get("/{todoID}", s.handleGetTodo)
			todos.Put("/{todoID}", s.handleUpdateTodo)
			todos.Patch("/{todoID}/toggle", s.handleToggleTodo)
			todos.Delete("/{todoID}", s.handleDeleteTodo)
		})

		api.Post("/users", s.handleRegisterUser)
		api.Post("/vapi/webhook", s.handleWebhook)
		api.Post("/schedule-call", s.handleScheduleCall)
		api.Post("/generate-goal-plan", s.handleGeneratePlan)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	log.Info().Msg("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
