package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/ogs-worktime/internal/adapters/repository/mongodb"
	"github.com/ogurasousui/ogs-worktime/internal/adapters/repository/postgres"
	"github.com/ogurasousui/ogs-worktime/internal/adapters/worker"
	"github.com/ogurasousui/ogs-worktime/internal/core/staff"
	"github.com/ogurasousui/ogs-worktime/internal/core/timetracking"
	"github.com/ogurasousui/ogs-worktime/internal/core/worktime"
	"github.com/ogurasousui/ogs-worktime/internal/platform/config"
	mongo "github.com/ogurasousui/ogs-worktime/internal/platform/db/mongodb"
	pg "github.com/ogurasousui/ogs-worktime/internal/platform/db/postgres"
	"github.com/ogurasousui/ogs-worktime/internal/platform/i18n"
	"github.com/ogurasousui/ogs-worktime/internal/platform/logging"
	"github.com/ogurasousui/ogs-worktime/internal/platform/server"
)

const txRetries = 3

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Fatalf("failed to load .env: %v", err)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logrus.Fatalf("failed to initialize logger: %v", err)
	}

	dbPool, err := pg.NewPool(ctx, cfg.Database, pg.WithQueryLogger(logger, cfg.Database.LogQueries))
	if err != nil {
		logger.Fatalf("failed to initialize database pool: %v", err)
	}
	defer dbPool.Close()

	txManager := pg.NewTransactionManager(dbPool, pg.WithIsolation(pgx.Serializable), pg.WithRetries(txRetries))

	var auditLog timetracking.AuditLog
	if cfg.AuditLog.Enabled() {
		mongoClient, err := mongo.Connect(ctx, cfg.AuditLog)
		if err != nil {
			logger.Fatalf("failed to connect audit log: %v", err)
		}
		defer func() {
			if err := mongoClient.Close(context.Background()); err != nil {
				logger.WithError(err).Warn("failed to close audit log connection")
			}
		}()

		auditLog, err = mongodb.NewAuditLog(ctx, mongoClient.Collection(cfg.AuditLog.Collection))
		if err != nil {
			logger.Fatalf("failed to initialize audit log: %v", err)
		}
	} else {
		logger.Warn("audit log disabled; session edit counts will be zero")
	}

	translator, err := i18n.New(cfg.TimeTracking.DefaultLocale)
	if err != nil {
		logger.Fatalf("failed to load translations: %v", err)
	}

	staffSvc := staff.NewService(postgres.NewStaffRepository(dbPool), nil, txManager)
	timeSvc := timetracking.NewService(
		postgres.NewTimeTrackingRepository(dbPool),
		staffSvc,
		auditLog,
		nil,
		txManager,
		timetracking.Settings{
			Location:       cfg.TimeTracking.Location,
			AutoCheckOutAt: cfg.TimeTracking.AutoCheckOutAt,
			Policy:         worktime.Policy{OvertimeThresholdMinutes: cfg.TimeTracking.OvertimeThresholdMinutes},
		},
	)

	grpcServer := server.New(cfg.Server.ListenAddr, server.Services{
		TimeTracking: timeSvc,
		Staff:        staffSvc,
		Translator:   translator,
	}, logger)
	autoCheckOut := worker.NewAutoCheckOut(timeSvc, cfg.TimeTracking.AutoCheckOutInterval, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return grpcServer.Run(gctx) })
	g.Go(func() error { return autoCheckOut.Run(gctx) })

	if err := g.Wait(); err != nil {
		logger.Fatalf("server stopped with error: %v", err)
	}
	logger.Info("server stopped")
}
