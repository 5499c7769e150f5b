package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rpswar/client"
	"rpswar/game"
	"rpswar/models"
	"rpswar/utils"
)

// ヘッドレスの対戦クライアント。マッチが始まったら兵舎を回しつつ、コインが貯まればパワーアップを使う
func main() {
	url := os.Getenv("SERVER_URL")
	if url == "" {
		url = "ws://localhost:3000/ws"
	}

	logger, err := utils.InitLogger(os.Getenv("APP_ENV") == "production")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := make(chan struct{}, 1)
	mm := client.New(
		client.WithLogger(logger),
		client.WithOnEvent(func(ev client.Event) {
			switch ev.Kind {
			case client.EventPlayerAssigned:
				logger.Info("Assigned side", zap.String("side", string(ev.Side)))
			case client.EventWaiting:
				logger.Info("Waiting for opponent")
			case client.EventGameStart:
				logger.Info("Game started")
				select {
				case started <- struct{}{}:
				default:
				}
			case client.EventGameOver:
				logger.Info("Game over", zap.String("winner", string(ev.Winner)), zap.Bool("won", ev.Winner == ev.Side))
			case client.EventOpponentDisconnected:
				logger.Info("Opponent disconnected")
			case client.EventServerError:
				logger.Warn("Server error", zap.String("message", ev.Message))
			case client.EventMatch:
				if ev.Match.Kind == game.EventAdvantageFlipped {
					logger.Debug("Advantage table changed", zap.Bool("flipped", ev.Match.Flipped))
				}
			}
		}),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := mm.Run(ctx, url)
		stop()
		return err
	})
	g.Go(func() error {
		return play(ctx, mm, started, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Client stopped", zap.Error(err))
	}
}

// play は2秒ごとに兵舎の組み合わせを入れ替え、使えるパワーアップを試す
func play(ctx context.Context, mm *client.MultiplayerManager, started <-chan struct{}, logger *zap.Logger) error {
	select {
	case <-started:
	case <-ctx.Done():
		return nil
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	round := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		kind := models.UnitKinds[round%len(models.UnitKinds)]
		round++
		if _, err := mm.ToggleBarrack(ctx, kind); err != nil {
			if errors.Is(err, client.ErrNotConnected) || ctx.Err() != nil {
				return nil
			}
			logger.Warn("Toggle failed", zap.Error(err))
		}
		for _, p := range []models.PowerupKind{models.Flooder, models.Reverser} {
			if ok, err := mm.UsePowerup(ctx, p); err == nil && ok {
				logger.Info("Powerup used", zap.String("powerup", string(p)))
			}
		}

		view, err := mm.State(ctx)
		if err != nil {
			continue
		}
		logger.Debug("Match state",
			zap.Int("units", view.Units),
			zap.Ints("coins", view.Coins[:]),
			zap.Bool("over", view.Over),
			zap.Duration("elapsed", view.Elapsed),
		)
	}
}
