package broadcast

import (
	"go.uber.org/zap"
)

// Sender はメッセージを送れる接続
type Sender interface {
	ID() string
	Send(data []byte) error
}

// To は1つの接続に送る。失敗はログに残して捨てる
func To(peer Sender, data []byte, logger *zap.Logger) {
	if peer == nil {
		return
	}
	if err := peer.Send(data); err != nil {
		logger.Warn("Failed to send message", zap.String("peerID", peer.ID()), zap.Error(err))
	}
}

// ToAll はセッションに参加している全員に同じメッセージを送る
func ToAll(peers []Sender, data []byte, logger *zap.Logger) {
	for _, peer := range peers {
		To(peer, data, logger)
	}
}
