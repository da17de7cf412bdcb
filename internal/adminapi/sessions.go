package adminapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (s *Server) healthz(c echo.Context) error {
	sessions := s.provider.Sessions()
	connected := 0
	for _, sess := range sessions {
		if sess.Connected {
			connected++
		}
	}
	return ok(c, map[string]interface{}{
		"status":    "up",
		"sessions":  len(sessions),
		"connected": connected,
	})
}

func (s *Server) listSessions(c echo.Context) error {
	return ok(c, map[string]interface{}{"sessions": s.provider.Sessions()})
}

func (s *Server) getSession(c echo.Context) error {
	ownerID, err := ownerParam(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_OWNER", "owner must be a numeric id", err.Error())
	}
	sess, found := s.provider.Status(ownerID)
	if !found {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "no session for this owner", nil)
	}
	return ok(c, sess)
}

// logoutSession ends the owner's WhatsApp session and deletes its credentials.
func (s *Server) logoutSession(c echo.Context) error {
	ownerID, err := ownerParam(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_OWNER", "owner must be a numeric id", err.Error())
	}
	if err := s.provider.Logout(c.Request().Context(), ownerID); err != nil {
		zap.L().Warn("adminapi: logout failed", zap.Int64("owner_id", ownerID), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "LOGOUT_FAILED", "Failed to log out", err.Error())
	}
	zap.L().Info("adminapi: session logged out", zap.Int64("owner_id", ownerID))
	return ok(c, map[string]interface{}{"logged_out": true})
}

func ownerParam(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("owner"), 10, 64)
}
