package utils

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SessionMonitor は定期ジョブから参照するセッション管理の窓口
type SessionMonitor interface {
	SessionIDs() []string
	RefreshDirectory(ctx context.Context) error
}

// CronJobs はセッション数のログ出力とディレクトリの有効期限延長を定期実行する。
// 返したcronは呼び出し側でStopすること
func CronJobs(monitor SessionMonitor, logger *zap.Logger) *cron.Cron {
	c := cron.New()

	// セッション数を記録するジョブ（毎分）
	c.AddFunc("@every 1m", func() {
		logger.Info("Session stats", zap.Int("sessions", len(monitor.SessionIDs())))
	})

	// 稼働中セッションのTTLを延長するジョブ
	c.AddFunc("@every 5m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := monitor.RefreshDirectory(ctx); err != nil {
			logger.Error("セッションディレクトリの更新に失敗しました", zap.Error(err))
		}
	})

	c.Start()
	return c
}
