package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// 上下文键类型
type contextKey string

const (
	UserIDKey       contextKey = "user_id"
	TargetUserIDKey contextKey = "target_user_id"
	RequestIDKey    contextKey = "request_id"
	ClientIPKey     contextKey = "client_ip"
)

// WithUserID 在context中设置发起操作的用户ID，并同步到当前span
func WithUserID(ctx context.Context, userID int64) context.Context {
	if userID <= 0 {
		return ctx
	}
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.Int64("user.id", userID))
	}
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID 从context中获取UserID
func GetUserID(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if userID, ok := ctx.Value(UserIDKey).(int64); ok {
		return userID
	}
	return 0
}

// WithTargetUserID 在context中设置关系另一端的用户ID
func WithTargetUserID(ctx context.Context, userID int64) context.Context {
	if userID <= 0 {
		return ctx
	}
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.Int64("target_user.id", userID))
	}
	return context.WithValue(ctx, TargetUserIDKey, userID)
}

// GetTargetUserID 从context中获取关系另一端的用户ID
func GetTargetUserID(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if userID, ok := ctx.Value(TargetUserIDKey).(int64); ok {
		return userID
	}
	return 0
}

// WithPair 同时设置操作双方
func WithPair(ctx context.Context, userID, targetUserID int64) context.Context {
	return WithTargetUserID(WithUserID(ctx, userID), targetUserID)
}

// WithRequestID 在context中设置RequestID，为空时生成
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.String("request.id", requestID))
	}
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID 从context中获取RequestID
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithClientIP 在context中设置客户端IP
func WithClientIP(ctx context.Context, clientIP string) context.Context {
	if clientIP == "" {
		return ctx
	}
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.String("client.ip", clientIP))
	}
	return context.WithValue(ctx, ClientIPKey, clientIP)
}

// GetClientIP 从context中获取客户端IP
func GetClientIP(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if clientIP, ok := ctx.Value(ClientIPKey).(string); ok {
		return clientIP
	}
	return ""
}

// GetTraceID 当前span的TraceID，没有span时返回空串
func GetTraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}
