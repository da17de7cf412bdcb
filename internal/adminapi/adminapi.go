// Package adminapi exposes a small read-mostly HTTP API over the owner sessions.
package adminapi

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/talkincode/autoaccept/internal/domain"
	"go.uber.org/zap"
)

// SessionProvider is what the API reads and drives.
type SessionProvider interface {
	Sessions() []domain.OwnerSession
	Status(ownerID int64) (domain.OwnerSession, bool)
	Logout(ctx context.Context, ownerID int64) error
}

// Response is the JSON envelope of every endpoint.
type Response struct {
	Code    string      `json:"code"`
	Msg     string      `json:"msg"`
	Data    interface{} `json:"data,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Code: "OK", Msg: "success", Data: data})
}

func fail(c echo.Context, status int, code, msg string, details interface{}) error {
	return c.JSON(status, Response{Code: code, Msg: msg, Details: details})
}

type Server struct {
	e        *echo.Echo
	addr     string
	apiKey   string
	provider SessionProvider
}

// New builds the router. Every /api route requires apiKey as a bearer key;
// an empty apiKey rejects all of them.
func New(host string, port int, apiKey string, provider SessionProvider) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	s := &Server{
		e:        e,
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		apiKey:   apiKey,
		provider: provider,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.e.GET("/healthz", s.healthz)
	api := s.e.Group("/api", middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Validator: s.validKey,
		ErrorHandler: func(err error, c echo.Context) error {
			zap.L().Warn("adminapi: rejected request", zap.String("path", c.Path()), zap.String("remote", c.RealIP()))
			return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid api key", nil)
		},
	}))
	api.GET("/sessions", s.listSessions)
	api.GET("/sessions/:owner", s.getSession)
	api.POST("/sessions/:owner/logout", s.logoutSession)
}

func (s *Server) validKey(key string, _ echo.Context) (bool, error) {
	if s.apiKey == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) == 1, nil
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.e.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("adminapi: shutdown failed", zap.Error(err))
		}
	}()
	zap.L().Info("adminapi: listening", zap.String("addr", s.addr))
	if err := s.e.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "adminapi: serve")
	}
	return nil
}
