package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rocketscienceinc/matchengine-backend/internal/config"
	"github.com/rocketscienceinc/matchengine-backend/internal/engine"
	"github.com/rocketscienceinc/matchengine-backend/internal/matchmaking"
	"github.com/rocketscienceinc/matchengine-backend/internal/repository"
	"github.com/rocketscienceinc/matchengine-backend/internal/repository/storage"
	"github.com/rocketscienceinc/matchengine-backend/internal/session"
	"github.com/rocketscienceinc/matchengine-backend/internal/usecase"
	"github.com/rocketscienceinc/matchengine-backend/transport/rest"
	"github.com/rocketscienceinc/matchengine-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

const sessionSweepMaxIdle = 24 * time.Hour

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	sessionRepo := repository.NewSessionRepository(redisStorage.Connection)
	matchRepo := repository.NewMatchRepository(redisStorage.Connection)

	clk := clock.New()

	engineConf := engine.Config{
		TurnDeadline:    conf.Engine.TurnDeadline(),
		TickInterval:    conf.Engine.TickInterval(),
		DisconnectGrace: conf.Engine.DisconnectGrace(),
		ForfeitWins:     conf.Engine.ForfeitWins,
	}

	tracker := session.NewTracker(logger, clk, conf.Engine.DisconnectGrace())
	pool := matchmaking.NewPool(clk)

	var manager *usecase.MatchManager
	registry := engine.NewRegistry(logger, clk, conf.Engine.RetireGrace(), func(matchID string) {
		manager.OnMatchRetired(matchID)
	})

	wsServer := websocket.New(logger)
	manager = usecase.NewMatchManager(logger, clk, engineConf, sessionRepo, matchRepo, registry, tracker, pool, wsServer)
	wsServer.SetUseCase(manager)

	batcher := matchmaking.NewBatcher(logger, clk, conf.Engine.Cadence(), pool, manager.StartMatch)
	go batcher.Run(ctx)

	go sweepSessions(ctx, clk, tracker)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

// sweepSessions periodically destroys long-inactive sessions.
func sweepSessions(ctx context.Context, clk clock.Clock, tracker *session.Tracker) {
	ticker := clk.Ticker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tracker.SweepInactive(sessionSweepMaxIdle)
		}
	}
}
