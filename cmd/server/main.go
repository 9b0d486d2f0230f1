package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goride/internal/config"
	"goride/internal/contactstore"
	handlers "goride/internal/handlers/shared"
	"goride/internal/middleware"
	"goride/internal/models"
	"goride/internal/providers"
	"goride/internal/repositories/interfaces"
	"goride/internal/repositories/mongodb"
	"goride/internal/services"
	"goride/pkg/cache"
	"goride/pkg/database"
	applogger "goride/pkg/logger"
	"goride/pkg/push"
	"goride/pkg/sms"
	"goride/pkg/storage"
	"goride/pkg/websocket"
	"goride/routes"

	"github.com/sirupsen/logrus"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	wrappedLogger, err := applogger.NewLogger(&applogger.Config{
		Level:      applogger.LogLevel(cfg.App.LogLevel),
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
		Caller:     false,
		AppName:    cfg.App.Name,
		Version:    cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger := wrappedLogger.Logrus()

	auditLogger, err := applogger.NewAuditLogger(&applogger.Config{
		Level:      applogger.LogLevel(cfg.App.LogLevel),
		Output:     "stdout",
		TimeFormat: time.RFC3339,
		AppName:    cfg.App.Name,
		Version:    cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("Failed to initialize audit logger: %v", err)
	}

	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to MongoDB")
	}

	if err := database.NewMigrator(db.Database).Up(); err != nil {
		logger.WithError(err).Fatal("failed to run database migrations")
	}

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	// Repositories
	activeCallRepo := mongodb.NewActiveCallRepository(db)
	campaignRepo := mongodb.NewCampaignRepository(db)
	clientRepo := mongodb.NewClientRepository(db, redisCache)
	phoneProviderRepo := mongodb.NewPhoneProviderRepository(db, redisCache)

	// Provider adapters
	plivoProvider := providers.NewPlivoProvider(providers.Credentials{
		AccountSID: cfg.Telephony.Plivo.AuthID,
		AuthToken:  cfg.Telephony.Plivo.AuthToken,
	}, cfg.Telephony.AdapterTimeout)

	twilioProvider := providers.NewTwilioProvider(providers.Credentials{
		AccountSID: cfg.Telephony.Twilio.AccountSID,
		AuthToken:  cfg.Telephony.Twilio.AuthToken,
	})

	// Domain services
	opsAlerts := newOpsAlertService(cfg.OpsAlert, logger)
	gateService := services.NewGateService(activeCallRepo, clientRepo, cfg.Gate, logger).WithOpsAlerts(opsAlerts)
	warmupService := services.NewWarmupService(cfg.Warmup, logger)
	routerService := services.NewRouterService(clientRepo, phoneProviderRepo, plivoProvider, twilioProvider, cfg.Telephony, logger)
	sweeperService := services.NewSweeperService(activeCallRepo, cfg.Campaign, logger)
	pipelineService := services.NewPipelineService(activeCallRepo, gateService, warmupService, routerService, sweeperService, cfg.Telephony, logger)
	opsHandler := websocket.NewHandler(cfg.WebSocket)
	webhookService := services.NewWebhookService(activeCallRepo, opsHandler, logger)
	orphanService := services.NewOrphanService(campaignRepo, cfg.Campaign, logger).WithOpsAlerts(opsAlerts)

	storageProvider, err := newStorageProvider(cfg.Storage, cfg.Campaign.ContactListBucket)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize contact-list storage")
	}
	contactStore := contactstore.NewS3ContactStore(storageProvider)

	workerSeq := 0
	newWorker := func(campaignID string) *services.CampaignWorker {
		workerSeq++
		workerID := fmt.Sprintf("%s-%d-%d", hostname(), os.Getpid(), workerSeq)
		return services.NewCampaignWorker(workerID, campaignRepo, activeCallRepo, contactStore, pipelineService, cfg.Campaign, logger).WithOpsAlerts(opsAlerts)
	}
	campaignManager := services.NewCampaignManager(campaignRepo, newWorker, cfg.Campaign.OrphanScanInterval, logger).WithOpsAlerts(opsAlerts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeperService.RunPeriodic(ctx)
	go orphanService.RunPeriodic(ctx)
	go campaignManager.RunDiscoveryLoop(ctx, listRunningCampaigns(campaignRepo))

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(webhookService, twilioProvider)
	campaignHandler := handlers.NewCampaignHandler(campaignRepo, activeCallRepo, campaignManager, auditLogger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())

	v1 := router.Group("/api/v1")
	{
		routes.SetupCampaignRoutes(v1, campaignHandler, cfg.Security.JWTSecret, auditLogger)
	}
	routes.SetupWebhookRoutes(router.Group(""), webhookHandler)
	router.GET("/ws", middleware.AuthRequired(cfg.Security.JWTSecret, auditLogger), opsHandler.HandleWebSocket)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": cfg.App.Version})
	})

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		logger.WithField("addr", addr).Info("starting call dispatch server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown did not complete cleanly")
	}
}

func listRunningCampaigns(repo interfaces.CampaignRepository) func(context.Context) ([]*models.Campaign, error) {
	return repo.ListRunning
}

// newStorageProvider selects a StorageProvider backend by
// cfg.Storage.Provider, same switch the teacher used to pick an object
// store for media uploads. The S3 and GCP backends read from
// contactListBucket rather than their own configured bucket; the local
// backend reads from cfg.Local.BasePath and does not use
// contactListBucket.
func newStorageProvider(cfg *config.StorageConfig, contactListBucket string) (storage.StorageProvider, error) {
	switch cfg.Provider {
	case "gcp":
		return storage.NewGCPStorage(cfg.GCP.ProjectID, contactListBucket, cfg.GCP.CredentialsFile)
	case "local":
		return storage.NewLocalStorage(cfg.Local.BasePath)
	default:
		return storage.NewAWSS3Storage(cfg.AWS.Region, contactListBucket)
	}
}

// newOpsAlertService builds the on-call push/SMS alerter from config
// (§2.16). Either channel is left nil when its env-configured toggle is
// off or its build fails, in which case OpsAlertService silently skips
// that channel rather than failing startup over an optional
// integration.
func newOpsAlertService(cfg *config.OpsAlertConfig, logger *logrus.Logger) *services.OpsAlertService {
	var pushProvider push.PushProvider
	if cfg.PushEnabled {
		fcm, err := push.NewFCMProvider(cfg.FCMCredentialsFile)
		if err != nil {
			logger.WithError(err).Warn("ops alert: failed to initialize FCM push provider, push alerts disabled")
		} else {
			pushProvider = fcm
		}
	}

	var smsProvider sms.SMSProvider
	if cfg.SMSEnabled {
		sns, err := sms.NewAWSSNSProvider(cfg.SNSRegion)
		if err != nil {
			logger.WithError(err).Warn("ops alert: failed to initialize SNS SMS provider, SMS alerts disabled")
		} else {
			smsProvider = sns
		}
	}

	return services.NewOpsAlertService(pushProvider, cfg.FCMOnCallTopic, smsProvider, cfg.OnCallPhoneNumber, logger)
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "worker"
	}
	return h
}
