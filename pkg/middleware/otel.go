package middleware

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	tracecontext "goim-relation/pkg/context"
	"goim-relation/pkg/logger"
)

// RequestIDHeader 请求ID头
const RequestIDHeader = "X-Request-ID"

// OTelMiddleware OpenTelemetry中间件配置
type OTelMiddleware struct {
	serviceName string
	logger      logger.Logger
}

// NewOTelMiddleware 创建OpenTelemetry中间件
func NewOTelMiddleware(serviceName string, logger logger.Logger) *OTelMiddleware {
	return &OTelMiddleware{
		serviceName: serviceName,
		logger:      logger,
	}
}

// GinMiddleware otelgin 负责创建span，随后的 handler 补充请求ID和客户端信息
//
// otelgin 在自身内部调用 c.Next()，所以补充逻辑必须注册为独立的 handler。
func (m *OTelMiddleware) GinMiddleware() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		otelgin.Middleware(m.serviceName),
		func(c *gin.Context) {
			ctx := m.enhanceContext(c.Request.Context(), c)
			c.Request = c.Request.WithContext(ctx)
			c.Header(RequestIDHeader, tracecontext.GetRequestID(ctx))
			c.Next()
		},
	}
}

// enhanceContext 写入请求ID、客户端IP，并把用户信息写入span
func (m *OTelMiddleware) enhanceContext(ctx context.Context, c *gin.Context) context.Context {
	ctx = tracecontext.WithRequestID(ctx, c.GetHeader(RequestIDHeader))
	ctx = tracecontext.WithClientIP(ctx, c.ClientIP())

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.String("http.route", c.FullPath()),
			attribute.String("http.client_ip", c.ClientIP()),
			attribute.String("request.id", tracecontext.GetRequestID(ctx)),
		)
		if userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64); err == nil && userID > 0 {
			span.SetAttributes(attribute.Int64("user.id", userID))
		}
	}
	return ctx
}
