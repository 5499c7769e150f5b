package game

import (
	"time"

	"rpswar/models"
)

// EventKind はマッチから通知されるイベントの種類
type EventKind string

const (
	EventCoinsChanged     EventKind = "coinsChanged"
	EventPowerupCooldown  EventKind = "powerupCooldown"
	EventPowerupActivated EventKind = "powerupActivated"
	EventPowerupExpired   EventKind = "powerupExpired"
	EventAdvantageFlipped EventKind = "advantageFlipped"
	EventBarrackChanged   EventKind = "barrackChanged"
	EventUnitSpawned      EventKind = "unitSpawned"
	EventUnitDestroyed    EventKind = "unitDestroyed"
	EventGameOver         EventKind = "gameOver"
)

// Event はシミュレーションの状態変化。描画側はこれを受け取るだけでコアの内部には触れない
type Event struct {
	Kind      EventKind
	Side      models.Side
	Coins     int
	Powerup   models.PowerupKind
	Remaining time.Duration
	Flipped   bool
	Barrack   models.BarrackID
	Active    bool
	Unit      UnitID
	UnitKind  models.UnitKind
	KilledBy  models.Side
	Winner    models.Side
}

// Observer はイベントの受け取り手
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc は関数をObserverとして使うためのアダプタ
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(ev Event) { f(ev) }
