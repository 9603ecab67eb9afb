package http

import (
	"embed"
	"html/template"
	"io/fs"
	stdhttp "net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cfn-softbio/scibot-web/internal/chat"
	"github.com/cfn-softbio/scibot-web/internal/config"
	"github.com/cfn-softbio/scibot-web/internal/metrics"
)

//go:embed web
var webFS embed.FS

// NewServer builds the HTTP server with the chat page, relay, history and
// WebSocket routes. m may be nil, in which case /metrics is not served.
func NewServer(svc *chat.Service, m *metrics.Metrics, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(svc, m, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler mounts the WebSocket endpoint on a plain mux next to the gin
// router. The connection is hijacked outside gin's response writer.
func NewHandler(svc *chat.Service, m *metrics.Metrics, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(svc, cfg, logger))
	mux.Handle("/", NewRouter(svc, m, cfg, logger))
	return mux
}

// NewRouter registers the HTTP routes on a fresh gin engine.
func NewRouter(svc *chat.Service, m *metrics.Metrics, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.AllowedOrigins,
			AllowMethods:  []string{stdhttp.MethodGet, stdhttp.MethodPost, stdhttp.MethodOptions},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", HeaderRequestID},
			ExposeHeaders: []string{HeaderRequestID},
		}))
	}

	router.SetHTMLTemplate(template.Must(template.ParseFS(webFS, "web/index.html")))
	static, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err)
	}
	router.StaticFileFS("/script.js", "script.js", stdhttp.FS(static))
	router.StaticFileFS("/style.css", "style.css", stdhttp.FS(static))

	chatHandlers := NewChatHandlers(svc, cfg, logger)
	limiter := NewRateLimiter(cfg.Relay.RateLimitPerMinute)

	router.GET("/", chatHandlers.Landing)
	router.POST("/agent", RateLimitMiddleware(limiter, logger), chatHandlers.Relay)
	router.GET("/history", chatHandlers.History)
	router.GET("/health", healthHandler)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
