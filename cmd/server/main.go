// Server runs the session-key delegation gateway over HTTP.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"sessiongate/internal/audit"
	auditrepo "sessiongate/internal/audit/repository"
	"sessiongate/internal/calldecode"
	"sessiongate/internal/config"
	"sessiongate/internal/db"
	"sessiongate/internal/gateway"
	"sessiongate/internal/security"
	"sessiongate/internal/server"
	"sessiongate/internal/server/middleware"
	sessionrepo "sessiongate/internal/session/repository"
	"sessiongate/internal/session/service"
	otelsetup "sessiongate/internal/telemetry/otel"
	"sessiongate/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "sessiongate", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	otel.SetTracerProvider(providers.TracerProvider)
	otel.SetMeterProvider(providers.MeterProvider)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	var (
		database *sql.DB
		grants   sessionrepo.Repository
		auditLog auditrepo.Repository
	)
	if cfg.DatabaseURL != "" {
		database, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer database.Close()
		grants = sessionrepo.NewPostgresRepository(database)
		auditLog = auditrepo.NewPostgresRepository(database)
		log.Println("registry: postgres")
	} else {
		grants = sessionrepo.NewMemoryRepository()
		log.Println("registry: in-memory (set DATABASE_URL for persistence)")
	}

	var kafkaProducer producer.Producer
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kp, err := producer.NewKafkaProducer(brokers, cfg.DecisionKafkaTopic)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		if kp != nil {
			kafkaProducer = kp
			defer kp.Close()
			log.Printf("telemetry: kafka enabled (topic %s)", cfg.DecisionKafkaTopic)
		}
	}

	var decisions audit.DecisionLogger
	if auditLog != nil {
		decisions = audit.NewLogger(auditLog, func(ctx context.Context) string {
			if ip, ok := middleware.GetClientIP(ctx); ok {
				return ip
			}
			return "unknown"
		})
	}

	chainID := big.NewInt(cfg.ChainID)
	locks := service.NewKeyLocks()
	validator := service.NewSpendValidator(grants, locks)
	registry := service.NewRegistryService(grants, locks)
	executor := gateway.NewLedgerExecutor()
	gw := gateway.New(chainID, calldecode.NewDecoder(), validator, executor,
		gateway.WithDecisionLogger(decisions))

	var tokens *security.TokenProvider
	if cfg.RelayerJWTSecret != "" {
		tokens = security.NewTokenProvider([]byte(cfg.RelayerJWTSecret), cfg.RelayerJWTIssuer, cfg.RelayerTokenTTL())
	} else {
		log.Println("auth: disabled (set RELAYER_JWT_SECRET to require relayer tokens)")
	}

	deps := server.Deps{
		ChainID:   chainID,
		Gateway:   gw,
		Registry:  registry,
		Decisions: auditLog,
		Tokens:    tokens,
		Producer:  kafkaProducer,
	}
	if database != nil {
		deps.HealthPinger = database
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("gateway listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gateway...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("gateway stopped")
}
