// Command server boots the transfer-restriction engine and its HTTP API.
// main wires high-level dependencies and keeps the server lifecycle small;
// business logic lives in the internal services packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"veriledger/internal/audit"
	"veriledger/internal/authority"
	"veriledger/internal/custody"
	"veriledger/internal/docs"
	"veriledger/internal/engine"
	"veriledger/internal/extension"
	jwttoken "veriledger/internal/jwt_token"
	"veriledger/internal/ledger"
	"veriledger/internal/oracle"
	"veriledger/internal/platform/config"
	"veriledger/internal/platform/httpserver"
	"veriledger/internal/platform/logger"
	"veriledger/internal/platform/metrics"
	platformredis "veriledger/internal/platform/redis"
	"veriledger/internal/registry"
	"veriledger/internal/resolver"
	httptransport "veriledger/internal/transport/http"
	"veriledger/pkg/domain"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx := context.Background()
	m := metrics.New()

	owner, err := domain.ParseInvestorID(cfg.OwnerIdentity)
	if err != nil {
		return errors.New("VERILEDGER_OWNER_IDENTITY must be a 64-character hex identity")
	}
	auth := authority.NewStatic(owner)

	var ledgerStore ledger.Store = ledger.NewInMemoryStore()
	var docStore docs.Store = docs.NewInMemoryStore()
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		pg := ledger.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		ledgerStore = pg
		docsPG := docs.NewPostgresStore(pool)
		if err := docsPG.Migrate(ctx); err != nil {
			return err
		}
		docStore = docsPG
	}

	var bindingStore resolver.BindingStore = resolver.NewInMemoryStore()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		bindingStore = resolver.NewRedisStore(redisClient.Client)
	}

	var sink audit.Sink
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		defer kafka.Close()
		sink = kafka
	}
	auditPub := audit.NewPublisher(audit.NewInMemoryStore(), sink, log)

	roster := registry.NewRoster()
	res, err := resolver.NewService(roster, bindingStore, auth, log)
	if err != nil {
		return err
	}
	elig, err := oracle.NewService(roster, m, log)
	if err != nil {
		return err
	}
	led, err := ledger.NewService(ledgerStore, m, log)
	if err != nil {
		return err
	}
	cust, err := custody.NewCoordinator(led, roster, auth, log)
	if err != nil {
		return err
	}
	led.SetCustody(cust)
	docSvc, err := docs.NewService(docStore, log)
	if err != nil {
		return err
	}

	eng, err := engine.NewService(engine.Deps{
		Resolver:   res,
		Oracle:     elig,
		Ledger:     led,
		Custody:    cust,
		Extensions: extension.NewDispatcher(log),
		Docs:       docSvc,
		Authority:  auth,
		Roster:     roster,
		Audit:      auditPub,
		Metrics:    m,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	validator := jwttoken.NewJWTService(cfg.JWTSigningKey, "veriledger", "veriledger-api")
	handler := httptransport.NewHandler(eng, led, validator, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	log.Info("starting veriledger", "addr", cfg.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
