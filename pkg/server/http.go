package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"goim-relation/pkg/logger"
	"goim-relation/pkg/middleware"
)

// NewGinEngine 创建Gin引擎，挂载恢复、日志、链路中间件和健康检查
func NewGinEngine(mode, serviceName string, log logger.Logger) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()

	r.Use(middleware.Recovery(log))
	r.Use(middleware.NewOTelMiddleware(serviceName, log).GinMiddleware()...)
	r.Use(middleware.Logging(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	return r
}

// HTTPServer Gin HTTP服务器包装器
type HTTPServer struct {
	engine *gin.Engine
	server *http.Server
	logger logger.Logger
	// onError 服务在运行中异常退出时调用
	onError func(error)
}

// NewHTTPServer 创建HTTP服务器
func NewHTTPServer(addr string, engine *gin.Engine, log logger.Logger) *HTTPServer {
	return &HTTPServer{
		engine: engine,
		server: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
		logger: log,
	}
}

// GetEngine 获取Gin引擎
func (w *HTTPServer) GetEngine() *gin.Engine {
	return w.engine
}

// RegisterRoutes 注册路由
func (w *HTTPServer) RegisterRoutes(registerFunc func(*gin.Engine)) {
	registerFunc(w.engine)
}

// OnError 设置运行期错误回调
func (w *HTTPServer) OnError(fn func(error)) {
	w.onError = fn
}

// Start 监听端口后在后台提供服务，监听失败直接返回错误
func (w *HTTPServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", w.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.server.Addr, err)
	}
	w.logger.Info(ctx, "HTTP server starting", logger.F("addr", lis.Addr().String()))

	go func() {
		if err := w.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error(context.Background(), "HTTP server stopped unexpectedly", logger.F("error", err))
			if w.onError != nil {
				w.onError(err)
			}
		}
	}()
	return nil
}

// Stop 优雅关闭
func (w *HTTPServer) Stop(ctx context.Context) error {
	w.logger.Info(ctx, "HTTP server stopping")
	return w.server.Shutdown(ctx)
}
