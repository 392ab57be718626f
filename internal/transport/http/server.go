// Package httptransport serves the dashboard: JSON API, chart pages and a
// websocket that tells open pages when a block changed.
package httptransport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"spreadboard/internal/board"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type ServerConfig struct {
	Addr          string
	SessionCookie string
	AllowOrigins  []string
	Controller    *board.Controller
	Sessions      *board.Sessions
	Logger        *zap.Logger
}

type Server struct {
	addr       string
	router     *gin.Engine
	hub        *Hub
	controller *board.Controller
	sessions   *board.Sessions
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Controller == nil || cfg.Sessions == nil {
		return nil, errors.New("http server requires a controller and sessions")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8501"
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = "spreadboard_session"
	}
	logger := cfg.Logger.Named("http")

	s := &Server{
		addr:       cfg.Addr,
		hub:        NewHub(logger),
		controller: cfg.Controller,
		sessions:   cfg.Sessions,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg.AllowOrigins),
		},
	}
	cfg.Controller.OnChange(s.hub.Publish)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors(cfg.AllowOrigins))

	router.GET("/healthz", s.handleHealth)

	// read-only, never touch sessions
	router.GET("/api/symbols", s.handleSymbols)
	router.GET("/api/options", s.handleOptions)
	router.GET("/api/history", s.handleHistory)

	pages := router.Group("/", withSessionID(cfg.SessionCookie))
	pages.GET("/", s.handleDashboard)
	pages.GET("/ws", s.handleWebSocket)

	api := router.Group("/api", withSessionID(cfg.SessionCookie))
	api.GET("/blocks", s.handleListBlocks)
	api.POST("/blocks", s.handleAddBlock)
	api.GET("/blocks/:id", s.handleGetBlock)
	api.PATCH("/blocks/:id", s.handleUpdateBlock)
	api.DELETE("/blocks/:id", s.handleRemoveBlock)
	api.POST("/blocks/:id/done", s.handleDone)
	api.GET("/blocks/:id/chart", s.handleBlockChart)
	api.GET("/blocks/:id/diagnostics", s.handleDiagnostics)

	s.router = router
	return s, nil
}

func (s *Server) Addr() string { return s.addr }

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("dashboard listening", zap.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
