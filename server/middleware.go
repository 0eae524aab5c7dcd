package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/existflow/learnportal/internal/logger"
	"github.com/labstack/echo/v4"
)

// requestLogger logs every request and its response
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()

		logger.Debug("HTTP Request",
			logger.F("method", req.Method),
			logger.F("uri", req.RequestURI),
			logger.F("remote", req.RemoteAddr))

		err := next(c)

		res := c.Response()
		duration := time.Since(start)

		logger.Info("HTTP Response",
			logger.F("method", req.Method),
			logger.F("uri", req.URL.Path),
			logger.F("status", res.Status),
			logger.F("size", res.Size),
			logger.F("duration", duration.String()))

		// Query strings may carry codes, keep them off the console
		if !s.cfg.Quiet {
			fmt.Printf("REQUEST: %s %s  status=%d  size=%d  duration=%s\n",
				req.Method, req.URL.Path, res.Status, res.Size, duration)
		}

		return err
	}
}

// optionalAuth attributes the request to a user when a valid bearer token is
// present. Missing or invalid tokens are not rejected.
func (s *Server) optionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if auth == "" || token == auth {
			return next(c)
		}

		claims, err := s.tokens.Verify(token)
		if err != nil {
			logger.Debug("Ignoring invalid bearer token", logger.Err(err))
			return next(c)
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		return next(c)
	}
}

// requireAuth rejects requests without a valid bearer token
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get("Authorization")
		if auth == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authorization required"})
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid authorization format"})
		}

		claims, err := s.tokens.Verify(token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		return next(c)
	}
}

func contextString(c echo.Context, key string) string {
	v, _ := c.Get(key).(string)
	return v
}
