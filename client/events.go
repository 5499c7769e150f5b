package client

import (
	"time"

	"rpswar/game"
	"rpswar/models"
)

type EventKind string

const (
	EventPlayerAssigned       EventKind = "playerAssigned"
	EventWaiting              EventKind = "waiting"
	EventGameStart            EventKind = "gameStart"
	EventKillReported         EventKind = "killReported"
	EventGameOver             EventKind = "gameOver"
	EventOpponentDisconnected EventKind = "opponentDisconnected"
	EventServerError          EventKind = "serverError"
	EventDisconnected         EventKind = "disconnected"
	// EventMatch はローカルのシミュレーションからのイベント。Matchに中身が入る
	EventMatch EventKind = "match"
)

// Event はMultiplayerManagerからの通知。イベントループのゴルーチンから呼ばれる
type Event struct {
	Kind    EventKind
	Side    models.Side
	Winner  models.Side
	Message string
	Match   game.Event
}

// View は現在のマッチの概要
type View struct {
	Side     models.Side
	Started  bool
	Over     bool
	Winner   models.Side
	Coins    [2]int
	Units    int
	Barracks map[models.BarrackID]bool
	Flipped  bool
	Elapsed  time.Duration
}
