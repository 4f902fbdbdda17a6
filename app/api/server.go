package api

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-cast/app/cfg"
)

// ServerOptions selects optional routes.
type ServerOptions struct {
	APIAccessKey string
	AudioDir     string // Served under /audio when the local storage backend is used
}

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, opts ServerOptions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	setupRoutes(r, handler, opts)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, opts ServerOptions) {
	r.GET("/feeds/:user/:feed", handler.GetFeed)

	if opts.AudioDir != "" {
		r.Static("/audio", opts.AudioDir)
	}

	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	if opts.APIAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(opts.APIAccessKey))
		{
			api.POST("/jobs/run", handler.APIRunJobs)
			api.POST("/jobs/reclaim", handler.APIReclaimJobs)
			api.GET("/jobs", handler.APIListJobs)
			api.POST("/jobs/:id/requeue", handler.APIRequeueJob)
			api.POST("/ingest", handler.APIIngest)
			api.POST("/content", handler.APISubmitContent)
			api.GET("/sources", handler.APIListSources)
		}
		slog.Debug("API endpoints enabled with authentication")
	} else {
		slog.Debug("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"feed":   "/feeds/<user>/<feed>",
			"health": "/health",
			"stats":  "/stats",
		}

		if opts.APIAccessKey != "" {
			endpoints["jobs"] = "/api/jobs (requires X-API-Key header)"
			endpoints["content"] = "/api/content (POST, requires X-API-Key header)"
			endpoints["ingest"] = "/api/ingest (POST, requires X-API-Key header)"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "RSS Cast",
			"version":     cfg.GetVersion(),
			"description": "Newsletters and articles turned into per-user podcast feeds",
			"endpoints":   endpoints,
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// authMiddleware accepts the key in X-API-Key or as a Bearer token.
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	expected := []byte(apiAccessKey)

	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")
		if providedKey == "" {
			if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
				providedKey = token
			}
		}

		switch {
		case providedKey == "":
			rejectRequest(c, "API key required", "Provide API key in X-API-Key header or Authorization: Bearer <key>")
		case subtle.ConstantTimeCompare([]byte(providedKey), expected) != 1:
			rejectRequest(c, "Invalid API key", "The provided API key is not valid")
		default:
			c.Next()
		}
	}
}

func rejectRequest(c *gin.Context, reason, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": reason, "message": message})
}
