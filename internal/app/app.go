package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"planora_backend/internal/config"
	"planora_backend/internal/controller"
	"planora_backend/internal/repository"
	"planora_backend/internal/service"
	"planora_backend/pkg/configwatcher"
	"planora_backend/pkg/database"
	"planora_backend/pkg/logger"
	"planora_backend/pkg/monitoring"
	"planora_backend/pkg/security"
	"planora_backend/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	tokenPurgeInterval   = time.Hour
	limiterSweepInterval = time.Minute
)

type App struct {
	Config    *config.Config
	ConfigDir string
	Router    *gin.Engine
	DB        *gorm.DB
	Redis     *redis.Client

	services        *services
	tracer          *sdktrace.TracerProvider
	ipLimiter       *security.IPRateLimiter
	eventLimiter    *security.EventLimiter
	configCallbacks []func(*config.Config)
	cancel          context.CancelFunc
}

type repositories struct {
	user       *repository.UserRepository
	token      *repository.TokenRepository
	friendship *repository.FriendshipRepository
	share      *repository.ShareRepository
	note       *repository.NoteRepository
	event      *repository.EventRepository
	reminder   *repository.ReminderRepository
	message    *repository.MessageRepository
}

type services struct {
	tokens     *service.TokenService
	auth       *service.AuthService
	user       *service.UserService
	notifier   service.NotificationPublisher
	friendship *service.FriendshipService
	permission *service.PermissionService
	note       *service.NoteService
	event      *service.EventService
	reminder   *service.ReminderService
	storage    *service.StorageService
	message    *service.MessageService
	gateway    *service.Gateway
}

type controllers struct {
	auth       *controller.AuthController
	user       *controller.UserController
	friendship *controller.FriendshipController
	note       *controller.NoteController
	event      *controller.EventController
	reminder   *controller.ReminderController
	message    *controller.MessageController
	ws         *controller.WSController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		token:      repository.NewTokenRepository(db),
		friendship: repository.NewFriendshipRepository(db, rdb),
		share:      repository.NewShareRepository(db),
		note:       repository.NewNoteRepository(db),
		event:      repository.NewEventRepository(db),
		reminder:   repository.NewReminderRepository(db),
		message:    repository.NewMessageRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	tokens, err := service.NewTokenService(repos.token, repos.user, cfg.JWT)
	if err != nil {
		logger.Log.Fatal("Failed to initialize token service", zap.Error(err))
	}
	s.tokens = tokens
	s.auth = service.NewAuthService(repos.user, s.tokens)
	s.user = service.NewUserService(repos.user)

	s.notifier = service.NewNotificationPublisher(cfg.Notification)
	s.friendship = service.NewFriendshipService(repos.friendship, repos.user, s.notifier)
	s.permission = service.NewPermissionService(repos.share, repos.user, s.notifier)

	s.note = service.NewNoteService(repos.note, s.permission)
	s.event = service.NewEventService(repos.event, s.permission)
	s.reminder = service.NewReminderService(repos.reminder, s.permission)

	s.storage = service.NewStorageService(&cfg.Storage)
	s.message = service.NewMessageService(repos.message, s.friendship)

	s.gateway = service.NewGateway(service.GatewayDeps{
		Friends:        s.friendship,
		Messages:       s.message,
		Presence:       s.user,
		Limiter:        a.eventLimiter,
		Redis:          rdb,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	return s
}

func (a *App) initControllers(s *services, cfg *config.Config) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth, s.tokens, cfg.Server.IsRelease()),
		user:       controller.NewUserController(s.user),
		friendship: controller.NewFriendshipController(s.friendship, s.gateway),
		note:       controller.NewNoteController(s.note, s.gateway),
		event:      controller.NewEventController(s.event, s.gateway),
		reminder:   controller.NewReminderController(s.reminder, s.gateway),
		message:    controller.NewMessageController(s.message, s.storage, s.gateway),
		ws:         controller.NewWSController(s.gateway, s.tokens),
		health:     controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	a.ipLimiter = security.NewIPRateLimiter(cfg.RateLimit.MaxRequests, window)
	router.Use(a.ipLimiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func socketLimiterConfig(cfg config.SocketLimitConfig) security.EventLimiterConfig {
	return security.EventLimiterConfig{
		Window:    cfg.Window(),
		MaxEvents: cfg.MaxEvents,
		Block:     cfg.Block(),
	}
}

func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	go a.eventLimiter.Start(ctx, limiterSweepInterval)
	go a.ipLimiter.Start(ctx)
	go s.tokens.StartPurge(ctx, tokenPurgeInterval)
	go s.gateway.Run(ctx)

	// 限流阈值支持热更新
	a.RegisterConfigCallback(func(cfg *config.Config) {
		a.eventLimiter.UpdateConfig(socketLimiterConfig(cfg.RateLimit.Socket))
		logger.Log.Info("Socket rate limit reloaded",
			zap.Int("maxEvents", cfg.RateLimit.Socket.MaxEvents),
			zap.Duration("window", cfg.RateLimit.Socket.Window()),
			zap.Duration("block", cfg.RateLimit.Socket.Block()))
	})

	if a.ConfigDir == "" {
		return
	}
	go func() {
		err := configwatcher.WatchConfig(ctx, a.ConfigDir, func(cfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(cfg)
			}
		})
		if err != nil {
			logger.Log.Error("Config watcher stopped", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, !cfg.Server.IsRelease())
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	// release 模式默认跳过迁移，需要时通过 -migrate 强制执行
	if !cfg.Server.IsRelease() || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
		DB:        db,
	}
	if cfg.MigrateOnly {
		return app
	}

	// Redis 只承载在线状态与好友缓存，不可用时降级运行
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, presence and friend cache disabled", zap.Error(err))
		rdb = nil
	}
	app.Redis = rdb

	app.eventLimiter = security.NewEventLimiter(socketLimiterConfig(cfg.RateLimit.Socket))

	repos := app.initRepositories(db, rdb)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, cfg)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.startBackgroundTasks(ctx, services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// 关闭所有实时连接并清理 Redis 在线状态
	if a.services != nil {
		a.services.gateway.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.services != nil {
		if err := a.services.notifier.Close(); err != nil {
			logger.Log.Warn("Failed to close notification publisher", zap.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	logger.Log.Info("Server exiting")
}
