// Package server exposes the analytics reports over HTTP with bearer auth.
// Reports are computed on demand from the latest stored snapshot, so the API
// and the CLI always agree.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"dealscope/internal/config"
	"dealscope/internal/domain"
	"dealscope/internal/engine"
	"dealscope/internal/repo"
)

// Syncer fetches a fresh snapshot from the CRM. The serve command wires the
// CRM client in; tests substitute a stub.
type Syncer interface {
	Sync(ctx context.Context) (domain.Snapshot, error)
}

// Config for the HTTP API handler.
type Config struct {
	Repo     repo.Repo
	Config   *config.Config
	Syncer   Syncer
	Now      func() time.Time
	BasePath string
	Auth     AuthConfig
	Log      logrus.FieldLogger
}

type apiErrorBody struct {
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"no snapshot in workspace"`
}

// apiError is the error envelope every endpoint returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

func newAPIError(status int, code, message string) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{status: status, Body: apiErrorBody{Code: code, Message: message}}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusBadGateway:
		return "upstream_error"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error())
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "no snapshot"):
		return newAPIError(http.StatusNotFound, "no_snapshot", msg)
	case strings.Contains(lowered, "crm api error"):
		return newAPIError(http.StatusBadGateway, "upstream_error", msg)
	case strings.Contains(lowered, "config"):
		return newAPIError(http.StatusBadRequest, "bad_config", msg)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", msg)
	}
}

// New returns an HTTP handler exposing the reports API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Log))
	hcfg := huma.DefaultConfig("Dealscope API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerReports(group, cfg)
	registerSnapshots(group, cfg)
	registerSync(group, cfg)
	registerEvents(group, cfg)

	return router, nil
}

// loadEngine builds an engine over the latest snapshot for one request.
func loadEngine(ctx context.Context, cfg Config) (engine.Engine, domain.Snapshot, error) {
	snap, err := cfg.Repo.LatestSnapshot(ctx)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return engine.Engine{}, snap, errors.New("no snapshot in workspace")
		}
		return engine.Engine{}, snap, err
	}
	e, err := engine.FromSnapshot(cfg.Config, snap)
	if err != nil {
		return engine.Engine{}, snap, err
	}
	e.Now = cfg.Now
	return e, snap, nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-healthz",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*healthResponse, error) {
		return &healthResponse{Body: healthBody{Status: "ok"}}, nil
	})
}
