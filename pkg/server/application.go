package server

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	natsgo "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"goim-relation/pkg/config"
	"goim-relation/pkg/database"
	"goim-relation/pkg/kafka"
	"goim-relation/pkg/lifecycle"
	"goim-relation/pkg/logger"
	"goim-relation/pkg/metrics"
	"goim-relation/pkg/nats"
	"goim-relation/pkg/redis"
	"goim-relation/pkg/telemetry"
)

// Application 应用程序框架
type Application struct {
	serviceName string
	config      *config.Config
	logger      logger.Logger
	lifecycle   *lifecycle.LifecycleManager
	httpServer  *HTTPServer
	telemetry   *telemetry.Provider
	registry    *prometheus.Registry

	// 基础设施组件，按配置按需初始化
	mongoDB       *database.MongoDB
	postgreSQL    *database.PostgreSQL
	redisClient   *redis.RedisClient
	kafkaProducer *kafka.Producer
	natsConn      *natsgo.Conn

	// 注册函数
	httpRouteRegister func(*gin.Engine)
}

// NewApplication 加载配置并初始化日志、链路、指标和基础设施
func NewApplication(serviceName string, configPaths ...string) (*Application, error) {
	cfg, err := config.Load(configPaths...)
	if err != nil {
		return nil, err
	}
	if cfg.App.Name == "" {
		cfg.App.Name = serviceName
	}

	log, err := logger.NewLogger(logger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tp, err := telemetry.NewProvider(telemetry.Config{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Env,
		ExporterType:   cfg.Telemetry.Exporter,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	app := &Application{
		serviceName: serviceName,
		config:      cfg,
		logger:      log.With(logger.F("service", serviceName)),
		lifecycle:   lifecycle.NewLifecycleManager(log, cfg.Server.ShutdownTimeout),
		telemetry:   tp,
		registry:    registry,
	}

	if err := app.initInfrastructure(context.Background()); err != nil {
		app.closeInfrastructure(context.Background())
		return nil, err
	}
	return app, nil
}

// initInfrastructure 初始化基础设施组件
func (app *Application) initInfrastructure(ctx context.Context) error {
	cfg := app.config

	switch cfg.Storage.Driver {
	case "postgres":
		pg := cfg.Database.PostgreSQL
		postgreSQL, err := database.NewPostgreSQL(ctx, database.PostgreSQLOptions{
			DSN:            pg.DSN,
			DBName:         pg.DBName,
			MaxIdleConns:   pg.MaxIdleConns,
			MaxOpenConns:   pg.MaxOpenConns,
			ConnMaxLife:    pg.ConnMaxLife,
			LogLevel:       pg.LogLevel,
			CreateDatabase: true,
		})
		if err != nil {
			return err
		}
		app.postgreSQL = postgreSQL
	case "mongo":
		mongoDB, err := database.NewMongoDB(ctx, cfg.Database.MongoDB.URI, cfg.Database.MongoDB.DBName)
		if err != nil {
			return err
		}
		app.mongoDB = mongoDB
		if !mongoDB.SupportsTransactions() {
			app.logger.Warn(ctx, "MongoDB deployment does not support transactions, accept falls back to compensation")
		}
	}

	if cfg.Redis.Enabled {
		app.redisClient = redis.NewRedisClient(redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Cache.TTL,
		})
		if err := app.redisClient.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	if cfg.Kafka.Enabled {
		kafkaProducer, err := kafka.InitProducer(cfg.Kafka.Brokers, app.serviceName)
		if err != nil {
			return err
		}
		app.kafkaProducer = kafkaProducer
	}

	if cfg.NATS.Enabled {
		conn, err := nats.Connect(nats.Options{URL: cfg.NATS.URL, Name: app.serviceName})
		if err != nil {
			return err
		}
		app.natsConn = conn
	}
	return nil
}

// closeInfrastructure 关闭已初始化的连接
func (app *Application) closeInfrastructure(ctx context.Context) {
	if app.natsConn != nil {
		if err := app.natsConn.Drain(); err != nil {
			app.logger.Error(ctx, "Failed to drain NATS connection", logger.F("error", err))
		}
	}
	if app.kafkaProducer != nil {
		if err := app.kafkaProducer.Close(); err != nil {
			app.logger.Error(ctx, "Failed to close Kafka producer", logger.F("error", err))
		}
	}
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error(ctx, "Failed to close Redis", logger.F("error", err))
		}
	}
	if app.mongoDB != nil {
		if err := app.mongoDB.Close(); err != nil {
			app.logger.Error(ctx, "Failed to close MongoDB", logger.F("error", err))
		}
	}
	if app.postgreSQL != nil {
		if err := app.postgreSQL.Close(); err != nil {
			app.logger.Error(ctx, "Failed to close PostgreSQL", logger.F("error", err))
		}
	}
}

// EnableHTTP 启用HTTP服务器
func (app *Application) EnableHTTP() *HTTPServer {
	if app.httpServer == nil {
		engine := NewGinEngine(app.config.Server.Mode, app.serviceName, app.logger)
		engine.GET(app.config.Server.MetricsPath, gin.WrapH(promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})))
		app.httpServer = NewHTTPServer(app.config.Server.Addr, engine, app.logger)
		app.httpServer.OnError(func(error) { _ = app.lifecycle.Stop() })
	}
	return app.httpServer
}

// RegisterHTTPRoutes 注册HTTP路由
func (app *Application) RegisterHTTPRoutes(registerFunc func(*gin.Engine)) {
	app.httpRouteRegister = registerFunc
}

// AddHook 注册额外的生命周期钩子
func (app *Application) AddHook(hook lifecycle.Hook) {
	app.lifecycle.AddHook(hook)
}

// GetMongoDB 获取MongoDB连接，未启用时为nil
func (app *Application) GetMongoDB() *database.MongoDB {
	return app.mongoDB
}

// GetPostgreSQL 获取PostgreSQL连接，未启用时为nil
func (app *Application) GetPostgreSQL() *database.PostgreSQL {
	return app.postgreSQL
}

// GetRedisClient 获取Redis客户端，未启用时为nil
func (app *Application) GetRedisClient() *redis.RedisClient {
	return app.redisClient
}

// GetKafkaProducer 获取Kafka生产者，未启用时为nil
func (app *Application) GetKafkaProducer() *kafka.Producer {
	return app.kafkaProducer
}

// GetNATSConn 获取NATS连接，未启用时为nil
func (app *Application) GetNATSConn() *natsgo.Conn {
	return app.natsConn
}

// GetLogger 获取日志器
func (app *Application) GetLogger() logger.Logger {
	return app.logger
}

// GetConfig 获取配置
func (app *Application) GetConfig() *config.Config {
	return app.config
}

// Run 启动所有钩子并阻塞到退出信号
func (app *Application) Run() error {
	app.registerLifecycleHooks()

	if err := app.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle: %w", err)
	}

	app.lifecycle.Wait()
	return app.logger.Sync()
}

// registerLifecycleHooks 注册生命周期钩子
func (app *Application) registerLifecycleHooks() {
	app.lifecycle.AddHook(lifecycle.Hook{
		Name:     "infrastructure",
		Priority: 0,
		OnStop: func(ctx context.Context) error {
			app.closeInfrastructure(ctx)
			return nil
		},
	})

	app.lifecycle.AddHook(lifecycle.Hook{
		Name:     "telemetry",
		Priority: 10,
		OnStop: func(ctx context.Context) error {
			return app.telemetry.Shutdown(ctx)
		},
	})

	if app.httpServer != nil {
		if app.httpRouteRegister != nil {
			app.httpServer.RegisterRoutes(app.httpRouteRegister)
		}
		app.lifecycle.AddHook(lifecycle.Hook{
			Name:     "http",
			Priority: 100,
			OnStart:  app.httpServer.Start,
			OnStop:   app.httpServer.Stop,
		})
	}
}
