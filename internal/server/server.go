// Package server exposes the question-answering pipeline over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"courserag/internal/models"
	"courserag/internal/orchestrator"
	"courserag/internal/session"
	"courserag/internal/store"
)

// Server is the HTTP API. All handlers contain their failures: a broken
// backend yields an error response for that request, never a crash.
type Server struct {
	echo     *echo.Echo
	orch     *orchestrator.Orchestrator
	sessions *session.Store
	store    store.Store
}

type queryRequest struct {
	Query     string `json:"query" validate:"required"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	Answer    string          `json:"answer"`
	Sources   []models.Source `json:"sources"`
	SessionID string          `json:"session_id"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type coursesResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// New creates the server and registers its routes.
func New(orch *orchestrator.Orchestrator, sessions *session.Store, s store.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogMethod: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				slog.Warn("request failed", "method", v.Method, "uri", v.URI, "status", v.Status, "error", v.Error)
			} else {
				slog.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status)
			}
			return nil
		},
	}))

	srv := &Server{echo: e, orch: orch, sessions: sessions, store: s}

	api := e.Group("/api")
	api.POST("/query", srv.handleQuery)
	api.GET("/courses", srv.handleCourses)
	api.POST("/session", srv.handleCreateSession)
	api.DELETE("/session/:id", srv.handleDeleteSession)

	return srv
}

// Start blocks serving on addr until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	slog.Info("http server listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// handleQuery answers one question. A missing session id starts a new
// session; the id is always echoed back so the client can continue it.
func (s *Server) handleQuery(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.sessions.NewID()
	}

	answer := s.orch.Respond(c.Request().Context(), sessionID, req.Query)

	sources := answer.Sources
	if sources == nil {
		sources = []models.Source{}
	}
	return c.JSON(http.StatusOK, queryResponse{
		Answer:    answer.Text,
		Sources:   sources,
		SessionID: sessionID,
	})
}

// handleCourses reports corpus analytics: how many courses are loaded and
// their titles, sorted for stable output.
func (s *Server) handleCourses(c echo.Context) error {
	titles, err := s.store.ListCourseTitles(c.Request().Context())
	if err != nil {
		slog.Error("course listing failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load course statistics")
	}
	sort.Strings(titles)
	return c.JSON(http.StatusOK, coursesResponse{
		TotalCourses: len(titles),
		CourseTitles: titles,
	})
}

func (s *Server) handleCreateSession(c echo.Context) error {
	return c.JSON(http.StatusOK, sessionResponse{SessionID: s.sessions.NewID()})
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	s.sessions.Clear(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
