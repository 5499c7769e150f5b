package relay

import (
	"time"

	"rpswar/models"
	"rpswar/relay/broadcast"
	"rpswar/relay/database"
)

// Peer はセッションに参加する1接続
type Peer interface {
	ID() string
	Send(data []byte) error
	Close() error
}

type SessionState string

const (
	StateWaiting SessionState = "WAITING"
	StateActive  SessionState = "ACTIVE"
	StateEnded   SessionState = "ENDED"
)

// Session は2人の参加者の組。peersはサイドのインデックスで引く
type Session struct {
	ID        string
	State     SessionState
	CreatedAt time.Time
	StartedAt time.Time
	peers     [2]Peer
}

func (s *Session) peer(side models.Side) Peer {
	return s.peers[side.Index()]
}

func (s *Session) senders() []broadcast.Sender {
	out := make([]broadcast.Sender, 0, len(s.peers))
	for _, p := range s.peers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) record() database.SessionRecord {
	rec := database.SessionRecord{
		ID:        s.ID,
		State:     string(s.State),
		Peers:     make(map[string]string, len(s.peers)),
		CreatedAt: s.CreatedAt,
	}
	for _, side := range models.Sides {
		if p := s.peer(side); p != nil {
			rec.Peers[string(side)] = p.ID()
		}
	}
	return rec
}

// SessionInfo は/sessionsで返すセッションの概要
type SessionInfo struct {
	ID        string       `json:"id"`
	State     SessionState `json:"state"`
	Players   int          `json:"players"`
	CreatedAt time.Time    `json:"createdAt"`
	StartedAt *time.Time   `json:"startedAt,omitempty"`
}

func (s *Session) info() SessionInfo {
	info := SessionInfo{ID: s.ID, State: s.State, Players: len(s.senders()), CreatedAt: s.CreatedAt}
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		info.StartedAt = &started
	}
	return info
}

// Stats はマネージャー全体の状態
type Stats struct {
	Waiting  int           `json:"waiting"`
	Active   int           `json:"active"`
	Ended    int           `json:"ended"`
	Capacity int           `json:"capacity"`
	Sessions []SessionInfo `json:"sessions"`
}
