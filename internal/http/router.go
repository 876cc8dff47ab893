package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/audiolens-backend/internal/http/handlers"
	httpMW "github.com/yungbote/audiolens-backend/internal/http/middleware"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string

	HealthHandler   *httpH.HealthHandler
	SessionHandler  *httpH.SessionHandler
	CaptionHandler  *httpH.CaptionHandler
	PlaybackHandler *httpH.PlaybackHandler
	RealtimeHandler *httpH.RealtimeHandler
	ArchiveHandler  *httpH.ArchiveHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "audiolens"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Sessions
		if cfg.SessionHandler != nil {
			api.POST("/sessions", cfg.SessionHandler.Create)
			api.GET("/sessions/current", cfg.SessionHandler.Current)
			api.POST("/sessions/current/cancel", cfg.SessionHandler.Cancel)
		}

		// Archive
		if cfg.ArchiveHandler != nil {
			api.GET("/sessions/history", cfg.ArchiveHandler.History)
			api.GET("/sessions/:id/segments", cfg.ArchiveHandler.Segments)
		}

		// Captions
		if cfg.CaptionHandler != nil {
			api.GET("/captions", cfg.CaptionHandler.Lookup)
			api.GET("/captions/segments", cfg.CaptionHandler.Segments)
			api.GET("/captions/export", cfg.CaptionHandler.Export)
		}

		// Playback
		if cfg.PlaybackHandler != nil {
			api.GET("/playback", cfg.PlaybackHandler.State)
			api.POST("/playback/play", cfg.PlaybackHandler.Play)
			api.POST("/playback/pause", cfg.PlaybackHandler.Pause)
			api.POST("/playback/seek", cfg.PlaybackHandler.Seek)
			api.POST("/playback/rewind", cfg.PlaybackHandler.Rewind)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}
	}

	return r
}
