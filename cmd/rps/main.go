package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/kibbyd/rps-adaptive/internal/capture"
	"github.com/kibbyd/rps-adaptive/internal/config"
	"github.com/kibbyd/rps-adaptive/internal/game"
	"github.com/kibbyd/rps-adaptive/internal/health"
	"github.com/kibbyd/rps-adaptive/internal/ledger"
	"github.com/kibbyd/rps-adaptive/internal/logging"
	"github.com/kibbyd/rps-adaptive/internal/modelstore"
	"github.com/kibbyd/rps-adaptive/internal/move"
	"github.com/kibbyd/rps-adaptive/internal/predictor"
	"github.com/kibbyd/rps-adaptive/internal/remote"
	"github.com/kibbyd/rps-adaptive/internal/stability"
	"github.com/kibbyd/rps-adaptive/internal/vision"
)

// #region main
func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger := logging.New(logging.Config{FilePath: cfg.LogFile, Production: cfg.Production()})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("rps exited", zap.Error(err))
		os.Exit(1)
	}
}

// #endregion main

// #region run
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	// Model: a missing or corrupt file starts empty.
	store := modelstore.New(cfg.ModelPath, logger)
	p, err := predictor.New(cfg.Predictor, store.Load(), logger)
	if err != nil {
		return fmt.Errorf("new predictor: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, watermill.NewStdLogger(false, false))
	var rounds *ledger.Store

	// Stop producers first, then the bus, then the ledger it feeds.
	defer func() {
		cancel()
		wg.Wait()
		if err := pubSub.Close(); err != nil {
			logger.Warn("close event bus", zap.Error(err))
		}
		if rounds != nil {
			if err := rounds.Close(); err != nil {
				logger.Warn("close ledger", zap.Error(err))
			}
		}
	}()

	var hs *health.Server
	if cfg.HealthAddr != "" {
		hs = health.NewServer(logger)
		hs.SetPredictor(true)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hs.ListenAndServe(ctx, cfg.HealthAddr); err != nil {
				logger.Warn("health server stopped", zap.Error(err))
			}
		}()
	}

	session := game.NewSession(p, store, pubSub, logger)
	logger.Info("session started",
		zap.String("session", session.ID()),
		zap.String("model", cfg.ModelPath),
		zap.Int("depth", p.Depth()),
		zap.Int("contexts", len(p.Snapshot())),
	)

	// The ledger is an audit trail; play continues without it.
	if rounds, err = ledger.NewStore(cfg.DBPath, logger); err != nil {
		logger.Warn("round ledger disabled", zap.String("db", cfg.DBPath), zap.Error(err))
	} else if err := startLedger(ctx, rounds, pubSub, session, cfg); err != nil {
		logger.Warn("round ledger disabled", zap.Error(err))
	}

	c := newConsole(session, os.Stdout, logger)
	if cfg.CameraEnabled {
		latest := capture.NewMailbox[stability.Sample]()
		pending := capture.NewMailbox[move.Move]()
		if err := startCamera(ctx, &wg, cfg, latest, pending, hs, logger); err != nil {
			logger.Warn("camera disabled, manual input only", zap.Error(err))
		} else {
			c.attachCamera(latest, pending)
		}
	}
	return c.run(ctx, os.Stdin)
}

// #endregion run

// #region wiring
func startLedger(ctx context.Context, rounds *ledger.Store, pubSub *gochannel.GoChannel, session *game.Session, cfg config.Config) error {
	classifier := ""
	if cfg.CameraEnabled {
		classifier = cfg.Classifier
	}
	if err := rounds.EnsureSession(ledger.SessionRecord{
		SessionID:  session.ID(),
		Depth:      cfg.Predictor.Depth,
		Classifier: classifier,
	}); err != nil {
		return err
	}
	return rounds.Consume(ctx, pubSub)
}

func startCamera(
	ctx context.Context,
	wg *sync.WaitGroup,
	cfg config.Config,
	latest *capture.Mailbox[stability.Sample],
	pending *capture.Mailbox[move.Move],
	hs *health.Server,
	logger *zap.Logger,
) error {
	var classifier vision.Classifier
	switch cfg.Classifier {
	case config.ClassifierRemote:
		classifier = remote.NewClient(cfg.Remote, logger)
	default:
		classifier = vision.NewHeuristic(vision.DefaultConfig())
	}

	var device any = cfg.CameraDevice
	if n, err := strconv.Atoi(cfg.CameraDevice); err == nil {
		device = n
	}
	src, err := capture.OpenCamera(device)
	if err != nil {
		return err
	}

	worker := capture.NewWorker(src, classifier, capture.WorkerConfig{
		Mirror:    true,
		Stability: cfg.Stability,
	}, latest, pending, logger)

	if hs != nil {
		hs.SetVision(true)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := worker.Run(ctx)
		if hs != nil {
			hs.SetVision(false)
		}
		stats := worker.Stats()
		fields := []zap.Field{
			zap.Uint64("frames", stats.Frames),
			zap.Uint64("recognized", stats.Recognized),
			zap.Uint64("confirmations", stats.Confirmations),
		}
		switch {
		case errors.Is(err, context.Canceled):
			logger.Info("camera stopped", fields...)
		default:
			logger.Warn("camera stopped, manual input only", append(fields, zap.Error(err))...)
		}
	}()
	return nil
}

// #endregion wiring
