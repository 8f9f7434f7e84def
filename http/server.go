// Package http 提供HTTP服务器功能
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"houseprice/config"
	"houseprice/monitoring"
	"houseprice/predict"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	config ServerConfig
	log    *zap.Logger
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port         int
	Timeout      time.Duration
	MaxFormBytes int64
}

// ServerConfigFrom maps the http section of the application config.
func ServerConfigFrom(c *config.Config) ServerConfig {
	return ServerConfig{
		Port:         c.Http.Port,
		Timeout:      c.Http.Timeout,
		MaxFormBytes: c.Http.MaxFormBytes,
	}
}

// App carries the collaborators the handlers need.
type App struct {
	Pipeline *predict.Pipeline
	Hub      *monitoring.Hub
	Metrics  *monitoring.MetricsCollector
	Log      *zap.Logger
}

// NewServer 创建HTTP服务器
func NewServer(config ServerConfig, app *App) *Server {
	if app.Log == nil {
		app.Log = zap.NewNop()
	}
	if app.Metrics == nil {
		app.Metrics = monitoring.NewMetricsCollector()
	}

	return &Server{
		server: &http.Server{
			Addr:        fmt.Sprintf(":%d", config.Port),
			Handler:     NewHandler(config, app),
			ReadTimeout: config.Timeout,
			IdleTimeout: 120 * time.Second,
		},
		config: config,
		log:    app.Log,
	}
}

// NewHandler builds the routed and wrapped handler of the server.
func NewHandler(config ServerConfig, app *App) http.Handler {
	mux := http.NewServeMux()

	RegisterHandlers(mux, app)
	RegisterAPIHandlers(mux, app)

	chain := Chain(
		RecoveryMiddleware(app.Log),
		LoggerMiddleware(app.Log),
		SecurityHeadersMiddleware,
		RequestSizeMiddleware(config.MaxFormBytes),
		TimeoutMiddleware(config.Timeout),
	)
	return chain(mux)
}

// Start 启动服务器
func (s *Server) Start() error {
	s.log.Info("starting http server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.log.Info("shutting down http server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (s *Server) Addr() string {
	return s.server.Addr
}
