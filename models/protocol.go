package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed は解析できないメッセージに対して返されるエラー
var ErrMalformed = errors.New("malformed message")

// メッセージタイプ
const (
	TypeInit                 = "init"
	TypeWaiting              = "waiting"
	TypeGameStart            = "gameStart"
	TypeGameAction           = "gameAction"
	TypeOpponentDisconnected = "opponentDisconnected"
	TypeError                = "error"
)

// アクションタイプ（gameAction.action.type）
const (
	ActionToggleBarrack = "toggleBarrack"
	ActionUsePowerup    = "usePowerup"
	ActionUnitKilled    = "unitKilled"
	ActionGameOver      = "gameOver"
)

// Message はクライアントとサーバー間でやり取りされるJSONエンベロープ
type Message struct {
	Type     string  `json:"type"`
	PlayerID Side    `json:"playerId,omitempty"` // init
	Message  string  `json:"message,omitempty"`  // error
	Action   *Action `json:"action,omitempty"`   // gameAction
}

// Action はgameActionで運ばれる個々のアクション
type Action struct {
	Type        string      `json:"type"`
	Side        Side        `json:"side,omitempty"`
	BarrackID   BarrackID   `json:"barrackId,omitempty"`
	PowerupType PowerupKind `json:"powerupType,omitempty"`
	KilledBy    Side        `json:"killedBy,omitempty"`
	Winner      Side        `json:"winner,omitempty"`
}

func IsKnownAction(actionType string) bool {
	switch actionType {
	case ActionToggleBarrack, ActionUsePowerup, ActionUnitKilled, ActionGameOver:
		return true
	}
	return false
}

// Decode は受信したバイト列をMessageに変換します。typeが無いものは不正とみなす
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode: %v: %w", err, ErrMalformed)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("missing type: %w", ErrMalformed)
	}
	if msg.Type == TypeGameAction && (msg.Action == nil || msg.Action.Type == "") {
		return Message{}, fmt.Errorf("gameAction without action: %w", ErrMalformed)
	}
	return msg, nil
}

// Encode はMessageをJSONにします
func Encode(msg Message) []byte {
	data, _ := json.Marshal(msg) // 文字列とポインタのみなので失敗しない
	return data
}

func InitMessage(side Side) []byte {
	return Encode(Message{Type: TypeInit, PlayerID: side})
}

func WaitingMessage() []byte {
	return Encode(Message{Type: TypeWaiting})
}

func GameStartMessage() []byte {
	return Encode(Message{Type: TypeGameStart})
}

func OpponentDisconnectedMessage() []byte {
	return Encode(Message{Type: TypeOpponentDisconnected})
}

func ErrorMessage(text string) []byte {
	return Encode(Message{Type: TypeError, Message: text})
}

func GameActionMessage(action Action) []byte {
	return Encode(Message{Type: TypeGameAction, Action: &action})
}
