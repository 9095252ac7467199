package cli

import (
	"context"
	"fmt"
	"time"

	"price-oracle/src/config"
	"price-oracle/src/grpc_control"
	"price-oracle/src/helpers"
	"price-oracle/src/interfaces"
	"price-oracle/src/logger"
	"price-oracle/src/models"
	"price-oracle/src/oracle"
	"price-oracle/src/schedule"
	"price-oracle/src/server"
	"price-oracle/src/storage"

	"golang.org/x/sync/errgroup"
)

// scheduleLoadRetries covers a schedule file being rewritten while we read it.
const scheduleLoadRetries = 3

// -----------------------------------------------------------------------------
// Node holds every component of a running oracle.
// -----------------------------------------------------------------------------

type Node struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       interfaces.IDatabase
	Schedule *schedule.ProducerSchedule
	Watcher  *schedule.Watcher
	Oracle   *oracle.OracleService
	API      *server.APIServer
	Control  *grpc_control.Server
	Errors   *helpers.ErrorHandler
}

// -----------------------------------------------------------------------------

// NewNode builds the node from cfg: schedule, storage, oracle service and both
// servers. Nothing listens until Run.
func NewNode(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Node, error) {
	n := &Node{
		Config: cfg,
		Logger: log,
		Errors: helpers.NewErrorHandler(log.Named("ErrorHandler")),
	}

	// 1. Producer schedule
	ps, err := n.loadSchedule()
	if err != nil {
		return nil, err
	}
	n.Schedule = ps
	if cfg.Producers.ScheduleFile != "" {
		n.Watcher = schedule.NewWatcher(cfg.Producers.ScheduleFile, ps, log.Named("Schedule"))
	}

	// 2. Storage
	db, err := storage.NewDatabase(cfg.MConfig, log.Named("Storage"))
	if err != nil {
		return nil, helpers.NewDatabaseError("failed to create database", err)
	}
	if err := db.Initialize(); err != nil {
		return nil, helpers.NewDatabaseError("failed to initialize database", err)
	}
	n.DB = db

	// 3. Oracle service and bootstrap pairs
	svc, err := oracle.NewOracleService(cfg.MConfig, log.Named("Oracle"), db, ps, nil)
	if err != nil {
		n.Close()
		return nil, err
	}
	n.Oracle = svc

	pairs, err := storage.ResolveBootstrapPairs(db, cfg.Oracle.Pairs)
	if err != nil {
		n.Close()
		return nil, helpers.NewConfigurationError("invalid bootstrap pairs", err)
	}
	if _, err := svc.EnsurePairs(ctx, pairs); err != nil {
		n.Close()
		return nil, err
	}

	// 4. Servers
	n.API = server.NewAPIServer(cfg.MConfig, log.Named("API"), svc)
	svc.SetExchanger(n.API)

	prices, err := svc.ListPrices(ctx)
	if err != nil {
		n.Close()
		return nil, err
	}
	n.API.UpdateAllDatas(prices)

	control := grpc_control.NewControlService(svc, schedule.NewControl(ps, n.Watcher), log.Named("ControlService"))
	n.Control = grpc_control.NewServer(cfg.MConfig, log.Named("gRPC"), control)

	return n, nil
}

// -----------------------------------------------------------------------------

func (n *Node) loadSchedule() (*schedule.ProducerSchedule, error) {
	p := n.Config.Producers
	if p.ScheduleFile == "" {
		return schedule.NewProducerSchedule(models.MProducerSchedule{
			Active:  p.Active,
			Standby: p.Standby,
		}), nil
	}

	s, err := helpers.RetryWithBackoff(n.Logger, "load producer schedule", scheduleLoadRetries, 200*time.Millisecond,
		func() (models.MProducerSchedule, error) {
			return schedule.LoadScheduleFile(p.ScheduleFile)
		})
	if err != nil {
		return nil, helpers.NewConfigurationError("failed to load producer schedule", err)
	}
	return schedule.NewProducerSchedule(s), nil
}

// -----------------------------------------------------------------------------

// Run serves HTTP and gRPC until ctx is cancelled or one of them fails, then
// stops both.
func (n *Node) Run(ctx context.Context) error {
	if n.Watcher != nil {
		if err := n.Watcher.Start(n.Config.Producers.ReloadSpec); err != nil {
			return helpers.NewConfigurationError("failed to watch producer schedule", err)
		}
		defer n.Watcher.Stop()
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := n.API.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := n.Control.Start(); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		n.Logger.Info("Shutting down...")
		if err := n.API.Stop(); err != nil {
			n.Errors.Handle(err, "http shutdown")
		}
		if err := n.Control.Stop(); err != nil {
			n.Errors.Handle(err, "grpc shutdown")
		}
		return nil
	})

	return g.Wait()
}

// -----------------------------------------------------------------------------

// Close releases storage. Safe to call on a partially built node.
func (n *Node) Close() {
	if n.DB == nil {
		return
	}
	if err := n.DB.Close(); err != nil {
		n.Errors.Handle(err, "database close")
	}
	n.DB = nil
}
