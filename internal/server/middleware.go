package server

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

// cors allows every origin; the API carries no credentials.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Expose-Headers", ModeHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)))
	}
}

// rateLimit rejects requests beyond the configured rate with 429.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.fail(c, "rate_limit", schema.NewError(schema.CodeRateLimited, "Too many analysis requests. Try again shortly.", nil))
			return
		}
		c.Next()
	}
}

// mountStatic serves a built single-page app from StaticDir when it holds an
// index.html. Unknown non-API paths fall back to index.html.
func (s *Server) mountStatic(r *gin.Engine) {
	dir := s.opts.StaticDir
	if dir == "" {
		r.NoRoute(notFound)
		return
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		r.NoRoute(notFound)
		return
	}
	if fi, err := os.Stat(filepath.Join(dir, "assets")); err == nil && fi.IsDir() {
		r.Static("/assets", filepath.Join(dir, "assets"))
	}
	r.NoRoute(func(c *gin.Context) {
		p := c.Request.URL.Path
		if strings.HasPrefix(p, "/api/") || c.Request.Method != http.MethodGet {
			notFound(c)
			return
		}
		candidate := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+p)))
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			c.File(candidate)
			return
		}
		c.File(index)
	})
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
}
