// Package panel serves the local HTTP control API.
package panel

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/bhandras/delaydeck/internal/app"
	"github.com/bhandras/delaydeck/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// Options configures New.
type Options struct {
	// AllowedOrigins is passed to the CORS middleware. Empty allows any
	// origin.
	AllowedOrigins []string
	// PublicURL is what the QR endpoint encodes.
	PublicURL string
	// Debug keeps gin in debug mode.
	Debug bool
}

// Server is the control API.
type Server struct {
	app       *app.App
	router    *gin.Engine
	publicURL string
}

// New builds the router.
func New(a *app.App, opts Options) *Server {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(opts.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.AllowedOrigins
	}
	router.Use(cors.New(corsCfg))
	router.Use(LoggingMiddleware())

	s := &Server{app: a, router: router, publicURL: opts.PublicURL}

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "delaydeck control panel")
	})

	api := router.Group("/api")
	{
		api.GET("/status", s.GetStatus)
		api.POST("/connect", s.PostConnect)
		api.POST("/disconnect", s.PostDisconnect)
		api.GET("/inventory", s.GetInventory)
		api.GET("/settings", s.GetSettings)
		api.PUT("/settings", s.PutSettings)
		api.POST("/delay/activate", s.PostActivate)
		api.POST("/delay/deactivate", s.PostDeactivate)
		api.GET("/qr.png", s.GetQR)
	}

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Infof("panel: listening on http://%s", ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("panel: shutdown: %v", err)
		}
		return nil
	}
}
