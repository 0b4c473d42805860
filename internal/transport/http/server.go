package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/config"
	"github.com/parley-chat/parley-server/internal/core"
	"github.com/parley-chat/parley-server/internal/metrics"
	"github.com/parley-chat/parley-server/web"
)

// NewServer builds the HTTP server: the chat page at the root, health and
// metrics endpoints, and the WebSocket upgrade.
func NewServer(hub *core.Hub, cfg config.Config, reg *prometheus.Registry, m *metrics.Metrics, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/", servePage)
	router.GET("/healthz", healthHandler)

	if reg != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	// The upgrade needs the server's raw ResponseWriter; gin's wrapped
	// writer corrupts the handshake. The WebSocket endpoint lives on a
	// plain mux, gin serves everything else.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, logger, m, cfg.MaxFrameBytes, cfg.FramesPerMinute))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func servePage(c *gin.Context) {
	c.Data(stdhttp.StatusOK, "text/html; charset=utf-8", web.Index)
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
