package main

import (
	"context"
	"log"
	netHttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grumming/grumming-app-sub004/config"
	"github.com/grumming/grumming-app-sub004/db"
	"github.com/grumming/grumming-app-sub004/http"
	"github.com/grumming/grumming-app-sub004/http/handlers"
	"github.com/grumming/grumming-app-sub004/logger"
	"github.com/grumming/grumming-app-sub004/models"
	"github.com/grumming/grumming-app-sub004/services"
	"github.com/grumming/grumming-app-sub004/services/kafka"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading configuration:", err)
	}

	appLog := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Output: os.Stdout,
		JSON:   cfg.LogFormat == "json",
	})
	logger.SetDefault(appLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	store, err := db.Open(ctx, cfg.Database)
	if err != nil {
		appLog.Fatal("Error initializing database: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		appLog.Fatal("Error migrating database: %v", err)
	}

	// Kafka (non-fatal): the DLQ table works without brokers
	dlq := kafka.NewDLQ(cfg.Kafka, store, appLog)
	producer := kafka.NewProducer(cfg.Kafka, dlq, appLog)
	var events services.EventPublisher = services.NopPublisher{}
	if producer != nil {
		producer.EnsureTopics(models.TopicPayments, models.TopicReceipts, kafka.DLQTopic)
		events = producer
	}

	// Third-party clients; a missing one surfaces as a configuration error at call time
	var gateway services.Gateway
	if g := services.NewRazorpayGateway(cfg.Razorpay); g != nil {
		gateway = g
	} else {
		appLog.Warn("Razorpay credentials not configured")
	}
	var sms services.SMSSender
	if t := services.NewTwilioSender(cfg.Twilio); t != nil {
		sms = t
	}
	var verifier services.IDTokenVerifier
	if f := services.NewFirebaseVerifier(cfg.Firebase); f != nil {
		verifier = f
	}
	var uploader services.Uploader
	cld, err := services.NewCloudinaryUploader(cfg.Cloudinary)
	if err != nil {
		appLog.Warn("Receipt uploads disabled: %v", err)
	} else if cld != nil {
		uploader = cld
	}
	mailer := services.NewMailer(cfg.Email)
	sessions := services.NewSessionManager(cfg.Session)

	receipts := services.NewReceiptService(mailer, uploader, store, appLog)

	// Receipts run through Kafka when available, otherwise on background goroutines
	var consumer *kafka.Consumer
	var dispatcher services.ReceiptDispatcher
	var pending interface{ Wait() }
	if producer != nil {
		consumer = kafka.NewConsumer(cfg.Kafka, models.TopicReceipts, dlq, appLog)
		kd := services.NewKafkaReceiptDispatcher(producer, appLog)
		dispatcher, pending = kd, kd
	} else {
		consumer = kafka.NewLocalConsumer(models.TopicReceipts, dlq, appLog)
		ad := services.NewAsyncReceiptDispatcher(receipts, dlq, appLog)
		dispatcher, pending = ad, ad
	}
	consumer.Handle(models.EventReceiptRequested, receipts.HandleReceiptEvent)
	retry := kafka.Retrier(consumer, producer)

	payments := services.NewPaymentService(store, gateway, events, dispatcher, services.PaymentConfig{
		KeySecret:     cfg.Razorpay.KeySecret,
		WebhookSecret: cfg.Razorpay.WebhookSecret,
		Currency:      cfg.Payments.Currency,
		FeePercentage: cfg.Payments.PlatformFeePercentage,
	}, appLog)
	wallets := services.NewWalletService(store, gateway, events, cfg.Razorpay.KeySecret, cfg.Payments.Currency, appLog)
	otp := services.NewOTPService(store, sms, mailer, sessions, appLog)
	auth := services.NewAuthService(store, verifier, sessions, appLog)
	settlements := services.NewSettlementService(store, gateway, appLog)

	// Background jobs
	go consumer.Run(ctx)
	go dlq.RunAutoRetry(ctx, cfg.Jobs.DLQRetryInterval, retry)
	jobs := services.NewJobs(appLog)
	jobs.Every(ctx, "otp-cleanup", cfg.Jobs.OTPCleanupInterval, otp.Cleanup)
	if gateway != nil {
		jobs.Every(ctx, "settlement-sync", cfg.Jobs.SettlementSyncInterval, func(ctx context.Context) error {
			_, err := settlements.Sync(ctx)
			return err
		})
	}

	router := http.NewRouter(&handlers.Handler{
		Payments:    payments,
		Wallets:     wallets,
		OTP:         otp,
		Geo:         services.NewGeocoder(cfg.Mapbox, appLog),
		Settlements: settlements,
		Reports:     services.NewReportService(store),
		Auth:        auth,
		DLQ:         dlq,
		DLQRetry:    retry,
		Health:      store,
		Log:         appLog,
	}, appLog)

	srv := &netHttp.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		appLog.Info("Server starting on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != netHttp.ErrServerClosed {
			appLog.Fatal("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	appLog.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Error shutting down HTTP server: %v", err)
	}

	jobs.Wait()
	pending.Wait()
	if err := consumer.Close(); err != nil {
		appLog.Error("Error closing Kafka consumer: %v", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			appLog.Error("Error closing Kafka producer: %v", err)
		}
	}
	if err := dlq.Close(); err != nil {
		appLog.Error("Error closing DLQ producer: %v", err)
	}

	appLog.Info("Server shutdown complete")
}
