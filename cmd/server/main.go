// main wires stores, services, and the HTTP surface. Backends are selected
// from the environment: Postgres and Redis when their URLs are set, in-memory
// otherwise; audit events go to Kafka when brokers are configured.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	complianceconfig "tokengate/internal/compliance/config"
	"tokengate/internal/compliance/handler"
	"tokengate/internal/compliance/metrics"
	"tokengate/internal/compliance/ports"
	"tokengate/internal/compliance/service/catalog"
	"tokengate/internal/compliance/service/countryrule"
	"tokengate/internal/compliance/service/engine"
	"tokengate/internal/compliance/service/registry"
	"tokengate/internal/compliance/service/transferrule"
	"tokengate/internal/compliance/store/addresslist"
	"tokengate/internal/compliance/store/balance"
	"tokengate/internal/compliance/store/country"
	"tokengate/internal/compliance/store/identity"
	"tokengate/internal/compliance/store/moduleconfig"
	"tokengate/internal/compliance/store/roles"
	"tokengate/internal/compliance/store/rulestate"
	httprouter "tokengate/internal/http"
	"tokengate/internal/platform/config"
	"tokengate/internal/platform/httpserver"
	"tokengate/internal/platform/logger"
	"tokengate/pkg/platform/audit"
	auditpublisher "tokengate/pkg/platform/audit/publisher"
	auditmemory "tokengate/pkg/platform/audit/store/memory"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		ruleStore    ports.RuleStateStore
		countryStore ports.CountryStore
		moduleStore  ports.ModuleConfigStore
	)

	switch {
	case cfg.PostgresURL != "":
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("failed to ping postgres", "error", err)
			os.Exit(1)
		}
		ruleStore = rulestate.NewPostgres(db)
		countryStore = country.NewPostgres(db)
		moduleStore = moduleconfig.NewPostgres(db)
		log.Info("using postgres stores")
	case cfg.RedisURL != "":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		ruleStore = rulestate.NewRedis(client)
		countryStore = country.NewInMemoryStore()
		moduleStore = moduleconfig.NewInMemoryStore()
		log.Info("using redis rule state store")
	default:
		ruleStore = rulestate.NewInMemoryStore()
		countryStore = country.NewInMemoryStore()
		moduleStore = moduleconfig.NewInMemoryStore()
		log.Info("using in-memory stores")
	}

	var auditStore audit.Store
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := auditpublisher.NewKafka(cfg.KafkaBrokers, cfg.KafkaAuditTopic,
			auditpublisher.WithLogger(log))
		if err != nil {
			log.Error("failed to create kafka audit publisher", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		auditStore = kafka
		log.Info("audit events go to kafka", "topic", cfg.KafkaAuditTopic)
	} else {
		auditStore = auditmemory.New()
		log.Warn("audit events are in-memory only")
	}

	identityStore := identity.NewInMemoryStore()
	addressStore := addresslist.NewInMemoryStore()
	balanceStore := balance.NewInMemoryStore()
	roleStore := roles.NewInMemoryStore()

	complianceCfg := complianceconfig.DefaultConfig()
	m := metrics.New()

	transferSvc, err := transferrule.New(ruleStore, complianceCfg,
		transferrule.WithLogger(log),
		transferrule.WithAuditPublisher(auditStore),
	)
	if err != nil {
		log.Error("failed to build transfer rule service", "error", err)
		os.Exit(1)
	}

	countrySvc, err := countryrule.New(countryStore,
		countryrule.WithLogger(log),
		countryrule.WithAuditPublisher(auditStore),
	)
	if err != nil {
		log.Error("failed to build country rule service", "error", err)
		os.Exit(1)
	}

	cat := catalog.New()
	registrySvc, err := registry.New(moduleStore, cat, roleStore,
		registry.WithLogger(log),
		registry.WithAuditPublisher(auditStore),
		registry.WithMetrics(m),
	)
	if err != nil {
		log.Error("failed to build registry service", "error", err)
		os.Exit(1)
	}

	eng, err := engine.New(moduleStore, transferSvc, countrySvc, identityStore, addressStore, balanceStore,
		engine.WithLogger(log),
		engine.WithAuditPublisher(auditStore),
		engine.WithMetrics(m),
	)
	if err != nil {
		log.Error("failed to build evaluation engine", "error", err)
		os.Exit(1)
	}

	h := handler.New(eng, registrySvc, transferSvc, countrySvc, cat, log)
	router := httprouter.NewRouter(h, cfg.AdminJWTSecret, log)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting tokengate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
