package bootstrap

import (
	"log"

	"ai-imagechat-be/internal/config"
	"ai-imagechat-be/internal/controller"
	"ai-imagechat-be/internal/handler"
	"ai-imagechat-be/internal/pkg/logger"
	"ai-imagechat-be/internal/repository/implementation"
	"ai-imagechat-be/internal/repository/memory"
	"ai-imagechat-be/internal/service"
	"ai-imagechat-be/internal/storage"
	"ai-imagechat-be/internal/websocket"
	"ai-imagechat-be/pkg/database"

	pktNats "ai-imagechat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	AuthController    controller.IAuthController
	UserController    controller.IUserController
	SessionController controller.ISessionController
	MessageController controller.IMessageController
	ImageController   controller.IImageController

	// Background services (exposed for main.go to run)
	NotifierService service.INotifierService
	SweepWorker     *service.SweepWorker

	// Realtime
	WsHandler *handler.WsHandler
	Registry  *websocket.Registry

	Redis *redis.Client
}

func NewContainer(rdb *redis.Client, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)

	// NATS mirror is optional; the bus keeps working without it.
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	// Repositories
	userRepo := implementation.NewUserRepository(rdb)
	sessionRepo := implementation.NewSessionRepository(rdb)
	messageRepo := implementation.NewMessageRepository(rdb)
	imageRepo := implementation.NewImageRepository(rdb)
	sessionCache := memory.NewSessionCache()

	// Blob storage
	blobs, err := storage.NewLocalStore(cfg.Storage.UploadDir, cfg.Storage.PublicPrefix)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize upload storage: %v", err)
	}

	// Realtime registry
	wsLogger := logger.NewIsolatedLogger(cfg.App.WsLogFilePath)
	registry := websocket.NewRegistry(websocket.Config{
		HeartbeatInterval: cfg.Realtime.HeartbeatInterval,
		SweepInterval:     cfg.Realtime.SweepInterval,
		ConnectionMaxAge:  cfg.Realtime.ConnectionMaxAge,
	}, wsLogger)
	registry.Start()

	// Services
	publisherService := service.NewPublisherService(pubSub, natsPub, sysLogger)
	authService := service.NewAuthService(userRepo, cfg, sysLogger)
	userService := service.NewUserService(userRepo, sessionRepo, sessionCache, publisherService, sysLogger)
	sessionService := service.NewSessionService(sessionRepo, messageRepo, sessionCache, publisherService, sysLogger)
	messageService := service.NewMessageService(messageRepo, sessionRepo, imageRepo, sessionCache, publisherService, sysLogger)
	imageService := service.NewImageService(imageRepo, sessionRepo, sessionCache, blobs, sysLogger)

	notifierService := service.NewNotifierService(pubSub, registry, wsLogger)
	sweepWorker := service.NewSweepWorker(pubSub, imageService, cfg.Realtime.ImageSweepInterval, sysLogger)

	wsHandler := handler.NewWsHandler(registry, sessionRepo, sessionCache, cfg, wsLogger)

	return &Container{
		AuthController:    controller.NewAuthController(authService),
		UserController:    controller.NewUserController(userService),
		SessionController: controller.NewSessionController(sessionService),
		MessageController: controller.NewMessageController(messageService),
		ImageController:   controller.NewImageController(imageService),

		NotifierService: notifierService,
		SweepWorker:     sweepWorker,

		WsHandler: wsHandler,
		Registry:  registry,

		Redis: rdb,
	}
}

// NewRedis builds the shared client from config; the process cannot run
// without the store, so a failed ping is fatal here.
func NewRedis(cfg *config.Config) *redis.Client {
	rdb, err := database.NewRedisClient(database.RedisConfig{
		URL:          cfg.Redis.URL,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to connect to Redis: %v", err)
	}
	return rdb
}

// Shutdown tears down realtime connections and the store client.
func (c *Container) Shutdown() {
	c.Registry.Shutdown()
	if err := c.Redis.Close(); err != nil {
		log.Printf("[WARN] Failed to close Redis client: %v", err)
	}
}
