package event

import (
	"context"
	"fmt"
	"sync"

	"goim-relation/pkg/logger"
	"goim-relation/pkg/metrics"
)

type namedSubscriber struct {
	name string
	sub  Subscriber
}

// Dispatcher 同步地把事件分发给所有订阅者
//
// 订阅者的错误和panic只记录日志和指标，不会返回给调用方。
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers []namedSubscriber
	logger      logger.Logger
}

// NewDispatcher 创建事件分发器
func NewDispatcher(log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Dispatcher{logger: log}
}

// Subscribe 注册订阅者，name 用于日志和指标
func (d *Dispatcher) Subscribe(name string, sub Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, namedSubscriber{name: name, sub: sub})
}

// Emit 按注册顺序分发
func (d *Dispatcher) Emit(ctx context.Context, e Event) {
	metrics.EventsEmitted.WithLabelValues(string(e.Name)).Inc()

	d.mu.RLock()
	subscribers := make([]namedSubscriber, len(d.subscribers))
	copy(subscribers, d.subscribers)
	d.mu.RUnlock()

	for _, s := range subscribers {
		if err := d.deliver(ctx, s, e); err != nil {
			metrics.SubscriberFailures.WithLabelValues(s.name, string(e.Name)).Inc()
			d.logger.Error(ctx, "Event subscriber failed",
				logger.F("subscriber", s.name),
				logger.F("event", string(e.Name)),
				logger.F("eventID", e.ID),
				logger.F("error", err))
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, s namedSubscriber, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in subscriber: %v", r)
		}
	}()
	return s.sub.Handle(ctx, e)
}
