package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"goim-relation/pkg/logger"
)

// LifecycleManager 生命周期管理器
type LifecycleManager struct {
	logger      logger.Logger
	hooks       []Hook
	started     int // 已成功启动的钩子数量
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	stopOnce    sync.Once
	stopTimeout time.Duration
}

// Hook 生命周期钩子
type Hook struct {
	Name     string                      // 钩子名称
	OnStart  func(context.Context) error // 启动时执行的函数
	OnStop   func(context.Context) error // 停止时执行的函数
	Priority int                         // 优先级，数字越小越先启动、越晚停止
	// Priority分级:
	// 0-99:    基础设施层（数据库、Redis、Kafka、NATS连接）
	// 100-199: 服务器层（HTTP服务器）
	// 200+:    业务逻辑层
}

// NewLifecycleManager 创建生命周期管理器，stopTimeout<=0 时使用30秒
func NewLifecycleManager(log logger.Logger, stopTimeout time.Duration) *LifecycleManager {
	if stopTimeout <= 0 {
		stopTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &LifecycleManager{
		logger:      log,
		hooks:       make([]Hook, 0),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
	}
}

// AddHook 添加生命周期钩子，相同优先级按添加顺序执行
func (lm *LifecycleManager) AddHook(hook Hook) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.hooks = append(lm.hooks, hook)
	sort.SliceStable(lm.hooks, func(i, j int) bool {
		return lm.hooks[i].Priority < lm.hooks[j].Priority
	})
}

// Start 按优先级启动所有钩子；某个钩子失败时停止已启动的钩子
func (lm *LifecycleManager) Start() error {
	lm.mu.Lock()
	hooks := lm.hooks
	lm.mu.Unlock()

	lm.logger.Info(lm.ctx, "Starting lifecycle hooks", logger.F("count", len(hooks)))

	for i, hook := range hooks {
		if hook.OnStart != nil {
			lm.logger.Info(lm.ctx, "Starting hook", logger.F("name", hook.Name))
			if err := hook.OnStart(lm.ctx); err != nil {
				lm.logger.Error(lm.ctx, "Hook start failed", logger.F("name", hook.Name), logger.F("error", err))
				lm.setStarted(i)
				_ = lm.Stop()
				return err
			}
		}
		lm.setStarted(i + 1)
	}

	lm.logger.Info(lm.ctx, "All lifecycle hooks started")
	return nil
}

func (lm *LifecycleManager) setStarted(n int) {
	lm.mu.Lock()
	lm.started = n
	lm.mu.Unlock()
}

// Stop 反向停止已启动的钩子，只执行一次，返回第一个错误
func (lm *LifecycleManager) Stop() error {
	var stopErr error

	lm.stopOnce.Do(func() {
		lm.mu.RLock()
		hooks := lm.hooks[:lm.started]
		lm.mu.RUnlock()

		lm.logger.Info(lm.ctx, "Stopping lifecycle hooks")

		ctx, cancel := context.WithTimeout(context.Background(), lm.stopTimeout)
		defer cancel()

		for i := len(hooks) - 1; i >= 0; i-- {
			hook := hooks[i]
			if hook.OnStop == nil {
				continue
			}
			if err := hook.OnStop(ctx); err != nil {
				lm.logger.Error(ctx, "Hook stop failed", logger.F("name", hook.Name), logger.F("error", err))
				if stopErr == nil {
					stopErr = err
				}
				continue
			}
			lm.logger.Info(ctx, "Hook stopped", logger.F("name", hook.Name))
		}

		lm.cancel()
		close(lm.done)

		lm.logger.Info(context.Background(), "All lifecycle hooks stopped")
	})

	return stopErr
}

// Wait 阻塞直到收到退出信号或 Stop 被调用
func (lm *LifecycleManager) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		lm.logger.Info(lm.ctx, "Received signal", logger.F("signal", sig.String()))
		_ = lm.Stop()
	case <-lm.done:
	}
}

// Context 生命周期上下文，Stop 后取消
func (lm *LifecycleManager) Context() context.Context {
	return lm.ctx
}

// Done 完成通道
func (lm *LifecycleManager) Done() <-chan struct{} {
	return lm.done
}

// IsRunning 检查是否正在运行
func (lm *LifecycleManager) IsRunning() bool {
	select {
	case <-lm.done:
		return false
	default:
		return true
	}
}
