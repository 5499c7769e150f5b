package relay

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/gorilla/websocket"

	"rpswar/relay/connection"
)

// NewUpgrader はallowedOriginsに含まれるOriginのみ受け付けるUpgraderを作る。空なら全て許可
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // ブラウザ以外のクライアント
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// WebSocket接続へのアップグレードを行い、切断されるまでリクエストのゴルーチンで読み続ける
func HandleConnections(w http.ResponseWriter, r *http.Request, manager *Manager, upgrader websocket.Upgrader, opts connection.Options, logger *zap.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeが既にエラーレスポンスを書いている
		logger.Error("Error upgrading WebSocket", zap.Error(err))
		return
	}

	client := connection.NewClient(conn, opts, logger)
	go client.WritePump()
	logger.Info("New client connected", zap.String("clientID", client.ID()), zap.String("addr", client.Addr))

	if _, err := manager.Join(client); err != nil {
		if !errors.Is(err, ErrRoomFull) {
			logger.Error("Failed to join session", zap.Error(err))
			client.Close()
		}
		return
	}

	client.ReadPump(func(message []byte) {
		manager.Relay(client, message)
	})

	manager.Disconnect(client)
	client.Close()
	logger.Info("Client disconnected", zap.String("clientID", client.ID()))
}
