package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rpswar/database" //設定の読み込みとRedisの初期化
	"rpswar/relay"    //セッション管理とアクションの中継
	relaydb "rpswar/relay/database"
	"rpswar/utils" //ロガーの初期化とCronジョブ
)

func main() {
	config, err := database.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := utils.InitLogger(config.Production) // ロガーの初期化
	if err != nil {
		panic(err) // 失敗した場合はプログラム停止
	}
	defer logger.Sync() // ロガーのクリーンアップ

	// REDIS_ADDRが設定されている場合のみセッションディレクトリを有効にする
	var directory relaydb.Directory = relaydb.NopDirectory{}
	if config.RedisAddr != "" {
		rdb, err := database.InitRedis(config, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		defer rdb.Close()
		directory = relaydb.NewRedisDirectory(rdb, database.SessionTTL, logger)
	}

	manager := relay.NewManager(logger,
		relay.WithMaxSessions(config.MaxSessions),
		relay.WithDirectory(directory),
	)

	// クーロンスケジューラのセットアップと呼び出し
	cronjobs := utils.CronJobs(manager, logger)
	defer cronjobs.Stop()

	srv := &http.Server{
		Addr:    config.Addr(),
		Handler: relay.NewRouter(manager, config, logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Relay server listening", zap.String("addr", srv.Addr), zap.Int("maxSessions", config.MaxSessions))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("Shutting down relay server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Relay server stopped", zap.Error(err))
	}
}
