package main

import (
	"context"
	"crypto/sha256"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emergency-service/config"
	"emergency-service/internal/api"
	"emergency-service/internal/dispatch"
	"emergency-service/internal/emergency"
	"emergency-service/internal/gateway"
	"emergency-service/internal/guard"
	"emergency-service/internal/profile"
	"emergency-service/pkg/consul"
	"emergency-service/pkg/firebase"
	"emergency-service/pkg/zap"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	uberzap "go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.LoadConfig()

	logger, err := zap.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	consulConn := consul.NewConsulConn(logger, cfg)
	consulClient := consulConn.Connect()
	defer consulConn.Deregister()

	mongoClient, err := connectToMongoDB(cfg.MongoURI)
	if err != nil {
		logger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Fatal(err)
		}
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	redisUp := redisClient.Ping(context.Background()).Err() == nil
	if !redisUp {
		logger.Warnf("Redis unreachable at %s, falling back to in-process locks and periodic sweep", cfg.RedisAddr)
		redisClient = nil
	}

	firebaseApp, _, err := firebase.SetUpFireBase()
	if err != nil {
		logger.Fatalf("Failed to initialize firebase: %v", err)
	}

	db := mongoClient.Database(cfg.MongoDB)
	historyRepo := guard.NewHistoryRepository(db.Collection("emergency_histories"))
	profileStore := profile.NewStore(db.Collection("emergency_profiles"))
	queueRepo := dispatch.NewQueueRepository(db.Collection("alert_queue"))

	cipher, err := buildCipher(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to build profile cipher: %v", err)
	}

	guardService := guard.NewGuardService(historyRepo, cfg.Policy, logger)
	profileService := profile.NewCacheService(profileStore, cipher, logger)
	composer := dispatch.NewComposer(cfg.Policy.ResponderNumbers)

	smsGateway := gateway.NewSMSGateway(consulClient, cfg.GatewayService, logger)
	pushTransport := gateway.NewPushTransport(firebaseApp, logger)
	transports := dispatch.TransportMap{
		dispatch.ChannelSMS:  smsGateway,
		dispatch.ChannelCall: smsGateway,
		dispatch.ChannelData: pushTransport,
	}

	probe := gateway.NewConsulProbe(consulClient, cfg.GatewayService)
	worker := dispatch.NewWorker(queueRepo, transports, probe, pushTransport, redisClient, cfg.Policy, logger)

	// Setup cron
	c := cron.New(cron.WithSeconds())
	c.Start()
	defer c.Stop()

	// capability selection: push hook when redis is there, timer sweep otherwise
	var scheduler dispatch.ResumeScheduler
	if redisClient != nil {
		scheduler = dispatch.NewHookScheduler(redisClient, worker, logger)
	} else {
		scheduler = dispatch.NewPollScheduler(c, worker, queueRepo, cfg.Policy.SweepInterval, logger)
	}
	defer scheduler.Disarm()

	emergencyService := emergency.NewEmergencyService(
		guardService,
		historyRepo,
		profileService,
		composer,
		queueRepo,
		worker,
		scheduler,
		cfg.Policy,
		logger,
	)
	emergencyHandler := emergency.NewEmergencyHandler(emergencyService)

	// pick up anything left pending from a previous run
	scheduler.Arm()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := worker.FlushAll(ctx); err != nil {
			logger.Errorf("Startup flush failed: %v", err)
		}
	}()

	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api.RegisterRoutes(router, emergencyHandler)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Infof("Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatalf("Error shutting down server: %v", err)
	}
	logger.Info("Server stopped")
}

func connectToMongoDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Println("Failed to connect to MongoDB")
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.Println("Failed to ping MongoDB")
		return nil, err
	}

	log.Println("Successfully connected to MongoDB")
	return client, nil
}

func buildCipher(cfg *config.Config, logger *uberzap.SugaredLogger) (profile.Cipher, error) {
	if cfg.Policy.ProfileCipherKey == "" {
		logger.Warn("No profile cipher key configured, profiles stored with reversible encoding only")
		return profile.Base64Cipher{}, nil
	}
	key := sha256.Sum256([]byte(cfg.Policy.ProfileCipherKey))
	return profile.NewAEADCipher(key[:])
}
