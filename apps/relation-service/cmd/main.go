package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"goim-relation/apps/relation-service/cache"
	"goim-relation/apps/relation-service/dao"
	"goim-relation/apps/relation-service/event"
	"goim-relation/apps/relation-service/handler"
	"goim-relation/apps/relation-service/service"
	"goim-relation/pkg/logger"
	"goim-relation/pkg/server"
	"goim-relation/pkg/snowflake"
)

func main() {
	// 创建应用程序，按配置连接存储、缓存和消息组件
	app, err := server.NewApplication("relation-service")
	if err != nil {
		panic(err)
	}
	app.EnableHTTP()

	cfg := app.GetConfig()
	log := app.GetLogger()
	ctx := context.Background()

	// 初始化DAO层
	relationDAO, err := newRelationDAO(ctx, app)
	if err != nil {
		panic(err)
	}

	// 初始化缓存：Redis未启用时使用进程内缓存
	var store cache.Store = cache.NewMemoryCache()
	if rc := app.GetRedisClient(); rc != nil {
		store = rc
	}
	facade := cache.NewFacade(store, cfg.Cache.Prefix, log)

	ids, err := snowflake.NewSnowflake(cfg.Snowflake.MachineID)
	if err != nil {
		panic(err)
	}

	// 初始化Service层，事件经分发器投递到各个订阅者
	dispatcher := event.NewDispatcher(log)
	svc := service.NewService(relationDAO, facade, ids, log, service.WithEmitter(dispatcher))

	if producer := app.GetKafkaProducer(); producer != nil {
		dispatcher.Subscribe("kafka", event.NewKafkaPublisher(producer, cfg.Kafka.EventTopic))
		if cfg.Notification.Enabled {
			notifier := event.NewNotifier(
				event.NewKafkaNoticeSender(producer, cfg.Kafka.NotificationTopic),
				svc,
				event.NotifierOptions{
					NotifyAboutNewFriendsOfFriend: cfg.Notification.NotifyAboutNewFriendsOfFriend,
					NotifyAboutFriendsRemoval:     cfg.Notification.NotifyAboutFriendsRemoval,
				},
				log,
			)
			dispatcher.Subscribe("notifier", notifier)
			log.Info(ctx, "Notifications enabled", logger.F("types", notifier.NoticeTypes()))
		}
	}
	if conn := app.GetNATSConn(); conn != nil {
		dispatcher.Subscribe("nats", event.NewNATSPublisher(conn, cfg.NATS.SubjectPrefix))
	}

	// 初始化Handler
	httpHandler := handler.NewHTTPHandler(svc, log)

	// 注册HTTP路由
	app.RegisterHTTPRoutes(func(engine *gin.Engine) {
		httpHandler.RegisterRoutes(engine)
	})

	// 运行应用程序
	if err := app.Run(); err != nil {
		panic(err)
	}
}

// newRelationDAO 按 storage.driver 选择持久化实现
func newRelationDAO(ctx context.Context, app *server.Application) (dao.RelationDAO, error) {
	switch driver := app.GetConfig().Storage.Driver; driver {
	case "postgres":
		if err := dao.Migrate(app.GetPostgreSQL()); err != nil {
			return nil, fmt.Errorf("failed to migrate relation tables: %w", err)
		}
		return dao.NewPostgresDAO(app.GetPostgreSQL()), nil
	case "mongo":
		return dao.NewMongoDAO(ctx, app.GetMongoDB())
	case "memory":
		app.GetLogger().Warn(ctx, "Using in-memory storage, relations are lost on restart")
		return dao.NewMemoryDAO(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
