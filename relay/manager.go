package relay

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rpswar/models"
	"rpswar/relay/broadcast"
	"rpswar/relay/database"
)

// ErrRoomFull は全てのセッションが埋まっている場合に返されるエラー
var ErrRoomFull = errors.New("game is full")

const gameFullMessage = "Game is full"

type Option func(*Manager)

// WithMaxSessions は同時に存在できるセッション数を設定する（最低1）
func WithMaxSessions(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// WithDirectory はセッションの公開先を設定する
func WithDirectory(d database.Directory) Option {
	return func(m *Manager) {
		if d != nil {
			m.directory = d
		}
	}
}

// WithClock はセッションの作成・開始時刻に使う時計を差し替える
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

type membership struct {
	session *Session
	side    models.Side
}

// Manager は接続をセッションに組み合わせ、アクションを相手側に中継する。
// 状態は全てmuで保護し、送信は各接続の送信キュー経由で行うのでロック中にブロックしない。
type Manager struct {
	mu          sync.Mutex
	dirMu       sync.Mutex // ディレクトリへの書き込みを直列化する
	logger      *zap.Logger
	directory   database.Directory
	maxSessions int
	now         func() time.Time
	dirTimeout  time.Duration

	waiting  *Session
	sessions map[string]*Session
	members  map[Peer]membership
}

func NewManager(logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		logger:      logger,
		directory:   database.NopDirectory{},
		maxSessions: 1,
		now:         time.Now,
		dirTimeout:  2 * time.Second,
		sessions:    make(map[string]*Session),
		members:     make(map[Peer]membership),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Join は新しい接続を待機中のセッションに入れるか、新しいセッションを作る。
// 満員の場合はエラーメッセージを送って接続を閉じ、状態は一切変えない。
func (m *Manager) Join(peer Peer) (models.Side, error) {
	m.mu.Lock()
	if m.waiting == nil && len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		m.logger.Info("Rejecting connection: game is full", zap.String("peerID", peer.ID()))
		broadcast.To(peer, models.ErrorMessage(gameFullMessage), m.logger)
		peer.Close()
		return "", ErrRoomFull
	}

	var (
		s    *Session
		side models.Side
	)
	if m.waiting != nil {
		s = m.waiting
		side = models.SideRight
		s.peers[side.Index()] = peer
		s.State = StateActive
		s.StartedAt = m.now()
		m.waiting = nil
	} else {
		s = &Session{ID: uuid.New().String(), State: StateWaiting, CreatedAt: m.now()}
		side = models.SideLeft
		s.peers[side.Index()] = peer
		m.sessions[s.ID] = s
		m.waiting = s
	}
	m.members[peer] = membership{session: s, side: side}

	broadcast.To(peer, models.InitMessage(side), m.logger)
	if s.State == StateWaiting {
		broadcast.To(peer, models.WaitingMessage(), m.logger)
	} else {
		broadcast.ToAll(s.senders(), models.GameStartMessage(), m.logger)
	}
	id, state := s.ID, s.State
	m.mu.Unlock()

	m.logger.Info("Player joined", zap.String("sessionID", id), zap.String("side", string(side)), zap.String("state", string(state)))
	m.publish(id)
	return side, nil
}

// Relay は受信したメッセージを解析し、対象であれば相手側に転送する。
// 解析できないもの、中継対象外のもの、所属セッションのないものは捨てる。
func (m *Manager) Relay(peer Peer, raw []byte) {
	msg, err := models.Decode(raw)
	if err != nil {
		m.logger.Warn("Dropping malformed message", zap.String("peerID", peer.ID()), zap.Error(err))
		return
	}
	if msg.Type != models.TypeGameAction {
		m.logger.Warn("Dropping message of unexpected type", zap.String("peerID", peer.ID()), zap.String("type", msg.Type))
		return
	}
	if !models.IsKnownAction(msg.Action.Type) {
		m.logger.Warn("Dropping unknown action", zap.String("peerID", peer.ID()), zap.String("action", msg.Action.Type))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.members[peer]
	if !ok {
		m.logger.Warn("Dropping action from peer without session", zap.String("peerID", peer.ID()))
		return
	}
	s := mb.session
	if s.State != StateActive {
		m.logger.Debug("Dropping action outside active session", zap.String("sessionID", s.ID), zap.String("state", string(s.State)), zap.String("action", msg.Action.Type))
		return
	}

	if msg.Action.Type == models.ActionGameOver {
		// 最初のgameOverで勝敗を確定する。勝者は送信者のサイド
		s.State = StateEnded
		stamped := models.GameActionMessage(models.Action{Type: models.ActionGameOver, Side: mb.side, Winner: mb.side})
		broadcast.ToAll(s.senders(), stamped, m.logger)
		m.logger.Info("Game over", zap.String("sessionID", s.ID), zap.String("winner", string(mb.side)))
		return
	}

	opponent := s.peer(mb.side.Opposite())
	if opponent == nil {
		m.logger.Warn("Dropping action: no opponent", zap.String("sessionID", s.ID))
		return
	}
	// 生のバイト列をそのまま転送する
	broadcast.To(opponent, raw, m.logger)
}

// Disconnect は接続の切断を処理する。待機中なら枠を空け、対戦中なら残った側に1度だけ
// opponentDisconnectedを送ってセッションを破棄する。
func (m *Manager) Disconnect(peer Peer) {
	m.mu.Lock()
	mb, ok := m.members[peer]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.members, peer)
	s := mb.session
	s.peers[mb.side.Index()] = nil

	if s == m.waiting {
		m.waiting = nil
	} else if remaining := s.peer(mb.side.Opposite()); remaining != nil {
		broadcast.To(remaining, models.OpponentDisconnectedMessage(), m.logger)
		delete(m.members, remaining)
		s.peers[mb.side.Opposite().Index()] = nil
	}
	delete(m.sessions, s.ID)
	s.State = StateEnded
	m.mu.Unlock()

	m.logger.Info("Player disconnected", zap.String("sessionID", s.ID), zap.String("side", string(mb.side)))
	m.unpublish(s.ID)
}

// Snapshot は現在のセッション一覧を返す。作成順
func (m *Manager) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{Capacity: m.maxSessions, Sessions: make([]SessionInfo, 0, len(m.sessions))}
	for _, s := range m.sessions {
		switch s.State {
		case StateWaiting:
			stats.Waiting++
		case StateActive:
			stats.Active++
		case StateEnded:
			stats.Ended++
		}
		stats.Sessions = append(stats.Sessions, s.info())
	}
	sort.Slice(stats.Sessions, func(i, j int) bool {
		return stats.Sessions[i].CreatedAt.Before(stats.Sessions[j].CreatedAt)
	})
	return stats
}

// SessionIDs は存在するセッションのID
func (m *Manager) SessionIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RefreshDirectory はディレクトリ上のセッションの有効期限を延長する
func (m *Manager) RefreshDirectory(ctx context.Context) error {
	return m.directory.Refresh(ctx, m.SessionIDs())
}

// publish はセッションの現在の状態をディレクトリに書く。既に破棄されていれば何もしない。
// 確認から書き込みまでdirMuを持つので、Disconnect側のDeleteより後にPutが届くことはない
func (m *Manager) publish(id string) {
	m.dirMu.Lock()
	defer m.dirMu.Unlock()

	m.mu.Lock()
	s, ok := m.sessions[id]
	var rec database.SessionRecord
	if ok {
		rec = s.record()
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.dirTimeout)
	defer cancel()
	if err := m.directory.Put(ctx, rec); err != nil {
		m.logger.Warn("Failed to publish session", zap.String("sessionID", rec.ID), zap.Error(err))
	}
}

func (m *Manager) unpublish(id string) {
	m.dirMu.Lock()
	defer m.dirMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.dirTimeout)
	defer cancel()
	if err := m.directory.Delete(ctx, id); err != nil {
		m.logger.Warn("Failed to remove session", zap.String("sessionID", id), zap.Error(err))
	}
}
