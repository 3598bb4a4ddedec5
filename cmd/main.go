package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/SocialSync/config"
	"github.com/Gopher0727/SocialSync/internal/api"
	"github.com/Gopher0727/SocialSync/internal/handler"
	"github.com/Gopher0727/SocialSync/internal/pkg/blob"
	"github.com/Gopher0727/SocialSync/internal/pkg/gateway"
	"github.com/Gopher0727/SocialSync/internal/pkg/geocode"
	grpcserver "github.com/Gopher0727/SocialSync/internal/pkg/grpc"
	"github.com/Gopher0727/SocialSync/internal/pkg/kafka"
	"github.com/Gopher0727/SocialSync/internal/pkg/mailer"
	"github.com/Gopher0727/SocialSync/internal/pkg/media"
	redis "github.com/Gopher0727/SocialSync/internal/pkg/redis"
	"github.com/Gopher0727/SocialSync/internal/repository"
	"github.com/Gopher0727/SocialSync/internal/service"
	"github.com/Gopher0727/SocialSync/internal/store"
	"github.com/Gopher0727/SocialSync/internal/utils"
	"github.com/Gopher0727/SocialSync/middleware/jwt"
	logger "github.com/Gopher0727/SocialSync/middleware/log"
	"github.com/Gopher0727/SocialSync/utils/bloom"
	"github.com/Gopher0727/SocialSync/utils/ratelimit"
	"github.com/Gopher0727/SocialSync/utils/snowflake"
)

const (
	// 邀请码布隆过滤器容量与误判率
	inviteCodeCapacity = 100_000
	inviteCodeFPRate   = 0.001

	cleanupWorkers   = 4
	cleanupQueueSize = 256

	shutdownTimeout = 15 * time.Second
)

func configPath() string {
	if p := os.Getenv(config.EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("./config.toml"); err == nil {
		return "./config.toml"
	}
	return ""
}

func main() {
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	appLogger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer appLogger.Close()

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("server exited with error", zap.Error(err))
		appLogger.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, appLogger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	zl := appLogger.Logger

	// 初始化数据库（Open 会自动迁移）
	db, err := store.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("数据库初始化失败: %w", err)
	}
	defer store.Close(db)
	repos := repository.New(db)

	// 初始化 Redis
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis 初始化失败: %w", err)
	}
	defer redisClient.Close()

	// 外部协作方：对象存储、地理编码、邮件
	blobStore, err := blob.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("对象存储初始化失败: %w", err)
	}
	geocoder, err := geocode.New(cfg.Geocoder)
	if err != nil {
		return fmt.Errorf("地理编码初始化失败: %w", err)
	}
	mail := mailer.New(cfg.Mail)
	if !mail.Enabled() {
		zl.Info("mail is not configured, external invites are returned as links only")
	}

	ids, err := snowflake.NewGenerator(cfg.Server.NodeID)
	if err != nil {
		return fmt.Errorf("snowflake 初始化失败: %w", err)
	}

	// 提交后的对象清理放到协程池里
	pool := utils.NewWorkerPool(cleanupWorkers, cleanupQueueSize, zl.Named("cleanup"))
	pool.Start()
	defer pool.Stop()

	// 通知发布：启用 Kafka 时经 topic 中转，否则直接发布到 Redis
	var (
		publisher service.Publisher = service.NewRedisPublisher(redisClient)
		producer  *kafka.Producer
		consumer  *kafka.Consumer
	)
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(&cfg.Kafka, zl.Named("kafka"))
		if err != nil {
			return fmt.Errorf("kafka 生产者初始化失败: %w", err)
		}
		defer producer.Close()
		publisher = service.NewKafkaPublisher(producer)

		consumer, err = kafka.NewConsumer(&cfg.Kafka, []string{cfg.Kafka.Topics.Notification}, kafka.RelayToRedis(redisClient), zl.Named("kafka"))
		if err != nil {
			return fmt.Errorf("kafka 消费者初始化失败: %w", err)
		}
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("kafka 消费者启动失败: %w", err)
		}
		defer consumer.Stop()
	}

	// 初始化服务层
	tokenManager := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.RefreshHours)
	cleaner := service.NewBlobCleaner(blobStore, pool, zl.Named("cleanup"))
	uploader := service.NewUploader(media.NewProcessor(cfg.Media), blobStore, ids)

	notificationService := service.NewNotificationService(repos, publisher, zl)
	badgeService := service.NewBadgeService(repos, notificationService, zl)
	authService := service.NewAuthService(repos, tokenManager, redisClient, badgeService, cfg.JWT.RefreshHours, zl)
	circleService := service.NewCircleService(repos, redisClient, mail, bloom.New(inviteCodeCapacity, inviteCodeFPRate), cleaner, cfg.Server.PublicBaseURL, zl)
	meetingService := service.NewMeetingService(repos, uploader, cleaner, geocoder, notificationService, cfg.Media.MaxFiles, zl)
	engagementService := service.NewEngagementService(repos, notificationService, zl)
	profileService := service.NewProfileService(repos, uploader, zl)
	geoService := service.NewGeoService(geocoder, zl)

	if err := badgeService.Seed(ctx, cfg.Badges); err != nil {
		return fmt.Errorf("徽章初始化失败: %w", err)
	}
	if err := circleService.WarmInviteCodes(ctx); err != nil {
		zl.Warn("failed to warm invite code filter", zap.Error(err))
	}

	// WebSocket 网关：订阅所有用户的通知频道
	hub := gateway.NewHub(ctx, &cfg.Websocket, redisClient, zl.Named("gateway"), originChecker(cfg.Server.AllowedOrigins))
	if err := hub.StartSubscriber(redis.NotificationPattern); err != nil {
		return fmt.Errorf("网关订阅失败: %w", err)
	}
	defer hub.Shutdown()

	checks := map[string]api.HealthCheck{
		"database": dbPing(db),
		"redis":    redisClient.Ping,
	}

	// gRPC 健康检查
	if cfg.GRPC.Enabled {
		grpcSrv, err := grpcserver.NewServer(fmt.Sprintf(":%d", cfg.GRPC.Port), zl.Named("grpc"))
		if err != nil {
			return fmt.Errorf("gRPC 初始化失败: %w", err)
		}
		go func() {
			if err := grpcSrv.Start(); err != nil {
				zl.Error("gRPC server stopped", zap.Error(err))
			}
		}()
		go grpcSrv.WatchDependencies(ctx, 15*time.Second, map[string]grpcserver.Check{
			"database": grpcserver.Check(checks["database"]),
			"redis":    grpcserver.Check(checks["redis"]),
		})
		defer grpcSrv.Stop()
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewWindowLimiter(redisClient.GetClient(), zl.Named("ratelimit"), cfg.RateLimit.FailOpen)
	}

	router := api.NewRouter(api.RouterOptions{
		Config:     cfg,
		Middleware: api.NewMiddlewareManager(authService, limiter, &cfg.RateLimit, &cfg.Server, appLogger),
		Metrics:    api.NewMetrics(),
		Handlers: &api.Handlers{
			Auth:         handler.NewAuthHandler(authService),
			Profile:      handler.NewProfileHandler(profileService),
			Circle:       handler.NewCircleHandler(circleService, meetingService),
			Meeting:      handler.NewMeetingHandler(meetingService),
			Engagement:   handler.NewEngagementHandler(engagementService),
			Analytics:    handler.NewAnalyticsHandler(service.NewAnalyticsService(repos), service.NewScrapbookService(repos)),
			Badge:        handler.NewBadgeHandler(badgeService),
			Notification: handler.NewNotificationHandler(notificationService, hub, zl.Named("gateway")),
			Geo:          handler.NewGeoHandler(geoService),
		},
		Health: checks,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("正在启动服务器", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		zl.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// websocket 连接已被劫持，Shutdown 不会等待它们，由 hub.Shutdown 关闭
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func dbPing(db *gorm.DB) api.HealthCheck {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// originChecker 未配置 allowed_origins 时接受所有来源
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
