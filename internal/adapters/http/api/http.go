// Package api exposes the league over HTTP: public read endpoints, admin
// mutations behind basic auth and the operational endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	"github.com/okian/klapi/internal/adapters/http/swagger"
	"github.com/okian/klapi/internal/adapters/repository"
	service "github.com/okian/klapi/internal/app"
	"github.com/okian/klapi/internal/domain/calendar"
	"github.com/okian/klapi/internal/domain/dedupe"
	"github.com/okian/klapi/internal/domain/form"
	"github.com/okian/klapi/internal/domain/model"
	"github.com/okian/klapi/internal/domain/standings"
	"github.com/okian/klapi/pkg/logger"
)

const maxBodyBytes = 1 << 20

// League is what the handlers need from the league service.
type League interface {
	StatsProvider

	Home() service.HomePage
	Standings() []standings.Row
	Players() []model.Player
	Player(id string) (service.PlayerPage, error)
	Events() []model.GrandPrix
	Event(id string) (service.EventPage, error)
	Calendar(year int, month time.Month) []calendar.Cell
	Series() (scores, ranks []form.Point)
	Posts() []model.Post
	Post(id string) (model.Post, error)
	Logs(limit int) []model.LogEntry
	Now() time.Time
	Idempotency() dedupe.Deduper

	AddPlanned(ctx context.Context, date model.Date) (model.GrandPrix, error)
	EditEventDate(ctx context.Context, id string, date model.Date) (model.GrandPrix, error)
	RecordResults(ctx context.Context, date model.Date, rounds model.Rounds) (model.GrandPrix, error)
	RecordResultsFor(ctx context.Context, id string, rounds model.Rounds) (model.GrandPrix, error)
	DeleteEvent(ctx context.Context, id string) error
	AddPlayer(ctx context.Context, name, avatar, bio string) (model.Player, error)
	UpdatePlayer(ctx context.Context, p model.Player) (model.Player, error)
	DeletePlayer(ctx context.Context, id string) error
	AddPost(ctx context.Context, title, body, author string) (model.Post, error)
	DeletePost(ctx context.Context, id string) error
	AddComment(ctx context.Context, postID, nick, text string) (model.Post, error)
}

var _ League = (*service.Service)(nil)

// Server wires HTTP routes for the league.
type Server struct {
	league    League
	admins    map[string]string
	origins   []string
	rateLimit float64
	rateBurst int
	parser    *calendar.Parser
	logger    logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAdmins sets the basic auth table, name to password.
func WithAdmins(admins map[string]string) Option {
	return func(s *Server) {
		s.admins = admins
	}
}

// WithCORSOrigins sets the origins allowed to call the API from a browser.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithAdminRateLimit bounds admin requests per client IP.
func WithAdminRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond > 0 && burst > 0 {
			s.rateLimit, s.rateBurst = perSecond, burst
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server.
func NewServer(league League, opts ...Option) *Server {
	s := &Server{
		league:    league,
		origins:   []string{"*"},
		rateLimit: 5,
		rateBurst: 20,
		parser:    calendar.NewParser(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("http")
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	c := corslib.New(corslib.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders: []string{"Idempotent-Replayed"},
	})
	r.Use(c.Handler)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metricsHandler())
	r.Get("/stats", s.handleStats)
	swagger.Register(ctx, r)

	r.Route("/api", func(r chi.Router) {
		r.Get("/home", s.handleHome)
		r.Get("/standings", s.handleStandings)
		r.Get("/players", s.handlePlayers)
		r.Get("/players/{id}", s.handlePlayer)
		r.Get("/events", s.handleEvents)
		r.Get("/events/{id}", s.handleEvent)
		r.Get("/calendar", s.handleCalendar)
		r.Get("/series", s.handleSeries)
		r.Get("/posts", s.handlePosts)
		r.Get("/posts/{id}", s.handlePost)
		r.Post("/posts/{id}/comments", s.handleAddComment)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RateLimitMiddleware(s.rateLimit, s.rateBurst))
			r.Use(BasicAuthMiddleware(s.admins))
			r.Use(IdempotencyMiddleware(s.league.Idempotency()))

			r.Post("/events/planned", s.handleAddPlanned)
			r.Post("/events/played", s.handleRecordResults)
			r.Put("/events/{id}/results", s.handleRecordResultsFor)
			r.Put("/events/{id}/date", s.handleEditEventDate)
			r.Delete("/events/{id}", s.handleDeleteEvent)
			r.Post("/players", s.handleAddPlayer)
			r.Put("/players/{id}", s.handleUpdatePlayer)
			r.Delete("/players/{id}", s.handleDeletePlayer)
			r.Post("/posts", s.handleAddPost)
			r.Delete("/posts/{id}", s.handleDeletePost)
			r.Get("/logs", s.handleLogs)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", errors.New("no such route"))
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail maps service and backend errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		err = Wrap(op, err)
	}
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, ErrBadRequest), errors.Is(err, calendar.ErrUnrecognizedDate):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrDuplicate):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, repository.ErrUnavailable), errors.Is(err, repository.ErrClosed):
		s.logger.Error(r.Context(), "backend failure", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusBadGateway, "backend_unavailable", err)
	default:
		s.logger.Error(r.Context(), "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}
