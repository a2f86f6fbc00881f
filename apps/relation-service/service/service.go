package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"goim-relation/apps/relation-service/cache"
	"goim-relation/apps/relation-service/dao"
	"goim-relation/apps/relation-service/event"
	tracecontext "goim-relation/pkg/context"
	"goim-relation/pkg/logger"
	"goim-relation/pkg/metrics"
	"goim-relation/pkg/snowflake"
	"goim-relation/pkg/telemetry"
)

// Service 关系服务：好友申请、好友、关注和屏蔽
type Service struct {
	dao    dao.RelationDAO
	cache  *cache.Facade
	events event.Emitter
	ids    snowflake.Generator
	logger logger.Logger
	now    func() time.Time
}

// Option 服务可选项
type Option func(*Service)

// WithEmitter 设置事件发射器，默认丢弃事件
func WithEmitter(e event.Emitter) Option {
	return func(s *Service) {
		if e != nil {
			s.events = e
		}
	}
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService 创建关系服务实例
func NewService(relationDAO dao.RelationDAO, facade *cache.Facade, ids snowflake.Generator, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		dao:    relationDAO,
		cache:  facade,
		events: event.Nop{},
		ids:    ids,
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// startSpan 开始操作span，并把用户对写入上下文
func (s *Service) startSpan(ctx context.Context, op string, userID, targetUserID int64) (context.Context, trace.Span) {
	ctx, span := telemetry.StartSpan(ctx, "relation.service."+op)
	span.SetAttributes(
		attribute.Int64("relation.user_id", userID),
		attribute.Int64("relation.target_user_id", targetUserID),
	)
	return tracecontext.WithPair(ctx, userID, targetUserID), span
}

// finish 记录操作结果，配合命名返回值在 defer 中调用
func finish(span trace.Span, op string, err error) {
	metrics.ObserveOperation(op, err)
	telemetry.EndSpan(span, err)
}

func wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}
