package cache

import (
	"context"

	"goim-relation/pkg/logger"
	"goim-relation/pkg/metrics"
)

// Store 缓存端口，值需可JSON编码
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	DeleteMany(ctx context.Context, keys ...string) error
}

// Facade 关系视图缓存，负责key映射和失效分组
type Facade struct {
	store     Store
	namespace string
	logger    logger.Logger
}

// NewFacade 创建缓存门面，namespace 会拼接在每个key之前
func NewFacade(store Store, namespace string, log logger.Logger) *Facade {
	if log == nil {
		log = logger.NewNop()
	}
	return &Facade{store: store, namespace: namespace, logger: log}
}

// Key 带命名空间的缓存key
func (f *Facade) Key(kind Kind, userID int64) string {
	return f.namespace + Key(kind, userID)
}

// Invalidate 删除各用户在 kind 失效分组中的所有视图；失败只记录日志
func (f *Facade) Invalidate(ctx context.Context, kind Kind, userIDs ...int64) {
	group := kind.BustGroup()
	keys := make([]string, 0, len(group)*len(userIDs))
	for _, userID := range userIDs {
		for _, k := range group {
			keys = append(keys, f.Key(k, userID))
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := f.store.DeleteMany(ctx, keys...); err != nil {
		metrics.CacheInvalidationErrors.WithLabelValues(string(kind)).Inc()
		f.logger.Warn(ctx, "Cache invalidation failed",
			logger.F("kind", string(kind)),
			logger.F("keys", keys),
			logger.F("error", err))
	}
}

// Peek 只读取已缓存的视图，不触发加载
func (f *Facade) Peek(ctx context.Context, kind Kind, userID int64, dest interface{}) bool {
	found, err := f.store.Get(ctx, f.Key(kind, userID), dest)
	if err != nil {
		metrics.CacheLookups.WithLabelValues(string(kind), "error").Inc()
		f.logger.Warn(ctx, "Cache read failed",
			logger.F("kind", string(kind)),
			logger.F("userID", userID),
			logger.F("error", err))
		return false
	}
	if found {
		metrics.CacheLookups.WithLabelValues(string(kind), "hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues(string(kind), "miss").Inc()
	}
	return found
}

// Load 读穿缓存：命中直接返回，未命中调用 loader 并回填
//
// 缓存读写错误不影响结果，只会退化为直接读存储。
func Load[T any](ctx context.Context, f *Facade, kind Kind, userID int64, loader func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if f.Peek(ctx, kind, userID, &cached) {
		return cached, nil
	}

	value, err := loader(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := f.store.Set(ctx, f.Key(kind, userID), value); err != nil {
		f.logger.Warn(ctx, "Cache write failed",
			logger.F("kind", string(kind)),
			logger.F("userID", userID),
			logger.F("error", err))
	}
	return value, nil
}
