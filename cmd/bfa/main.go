package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/config"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/handler"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/cache"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/mail"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/observability"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/queue"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/catalog"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/flow"
	oinfra "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/infra"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/service"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/port"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	// --- Config (.env is read by Load) ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_driver", cfg.StoreDriver),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Bool("amqp", cfg.AMQPURL != ""),
		zap.Bool("smtp", cfg.SMTPHost != ""),
		zap.Bool("help_agent", cfg.AgentURL != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "merchant-onboarding-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Catalog ---
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.String("path", cfg.CatalogPath), zap.Error(err))
	}

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Customer store & KYC directory ---
	var (
		customers port.CustomerStore
		kyc       port.KYCDirectory
	)
	if cfg.StoreDriver == "supabase" {
		if cfg.SupabaseURL == "" {
			logger.Fatal("STORE_DRIVER=supabase requires SUPABASE_URL")
		}
		logger.Info("customer store: supabase", zap.String("supabase_url", cfg.SupabaseURL))
		sb := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		customers = supabase.NewCustomerStore(sb)
		kyc = supabase.NewKYCDirectory(sb)
	} else {
		customers, err = store.Open(cfg.StoreDriver, cfg.StoreDSN, logger)
		if err != nil {
			logger.Fatal("failed to open customer store", zap.Error(err))
		}
		kyc = oinfra.NewDemoKYCDirectory()
	}
	defer customers.Close()

	// --- Mail ---
	var sender *mail.Sender
	var codeSender oinfra.CodeSender
	if cfg.SMTPHost != "" {
		sender = mail.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, cat.SupportEmail, cfg.OTPTTL)
		codeSender = sender
	} else {
		logger.Warn("SMTP not configured, OTP codes are logged and welcome mails skipped")
	}

	// --- Completion events ---
	// With a broker the worker sends the welcome mail; without one the
	// service sends it inline.
	var (
		publisher port.EventPublisher = queue.NewLogPublisher(logger)
		mailer    port.WelcomeMailer
	)
	if sender != nil {
		mailer = sender
	}
	if cfg.AMQPURL != "" {
		mq, err := queue.NewRabbitMQ(cfg.AMQPURL)
		if err != nil {
			logger.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer mq.Close()
		publisher = queue.NewPublisher(mq.Ch)

		if sender != nil {
			workerCh, err := mq.Conn.Channel()
			if err != nil {
				logger.Fatal("failed to open worker channel", zap.Error(err))
			}
			worker := queue.NewWorker(workerCh, sender, logger)
			go func() {
				if err := worker.Run(ctx); err != nil {
					logger.Error("completion worker stopped", zap.Error(err))
				}
			}()
			mailer = nil
		}
	}

	// --- Help assistant ---
	var agent port.HelpAgent
	if cfg.AgentURL != "" {
		agent = oinfra.NewHelpAgentClient(httpClient, cfg.AgentURL, resilience.NewCircuitBreaker("help-agent"), resilienceCfg)
	}

	// --- Services ---
	conversations := cache.New[*service.Conversation](cfg.SessionTTL)
	defer conversations.Close()

	deps := service.Deps{
		Store:     customers,
		Extractor: oinfra.NewSimulatedExtractor(),
		Exporter:  oinfra.NewPDFExporter(cfg.ArtifactDir),
		OTP: oinfra.NewOTPChallenger(oinfra.OTPConfig{
			TTL:             cfg.OTPTTL,
			MaxAttempts:     cfg.OTPMaxAttempts,
			FixedMobileCode: cfg.OTPMobileCode,
			FixedEmailCode:  cfg.OTPEmailCode,
		}, codeSender, logger),
		KYC:       kyc,
		Publisher: publisher,
		Mailer:    mailer,
	}
	onboardingSvc := service.NewOnboardingService(
		flow.New(cat),
		deps,
		conversations,
		resilience.NewBulkhead(cfg.MaxConcurrency),
		metrics,
		logger,
	)
	helpSvc := service.NewHelpService(cat, agent, onboardingSvc, metrics, logger)
	tokens := service.NewSessionTokens(cfg.JWTSecret, cfg.SessionTTL)

	// --- Router ---
	router := handler.NewRouter(onboardingSvc, helpSvc, tokens, metrics, logger, handler.Options{
		CORSOrigins: cfg.CORSOrigins,
		Probes: []handler.Probe{
			{Name: "customer-store", Check: customers.Ping},
			{Name: "event-publisher", Check: publisher.Ping},
		},
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
