package models

import "fmt"

// Side はマッチのどちら側を操作しているかを表す。ワイヤ上では "player1"/"player2"
type Side string

const (
	SideLeft  Side = "player1"
	SideRight Side = "player2"
)

// Sides はLeft, Rightの順で並んだ全サイド
var Sides = [2]Side{SideLeft, SideRight}

func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

// Opposite は相手側のサイドを返す
func (s Side) Opposite() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// Index はLeftを0、Rightを1として返す。配列の添字に使用
func (s Side) Index() int {
	if s == SideRight {
		return 1
	}
	return 0
}

// UnitKind はユニットの種類（じゃんけんの手）
type UnitKind string

const (
	Rock     UnitKind = "rock"
	Paper    UnitKind = "paper"
	Scissors UnitKind = "scissors"
)

var UnitKinds = [3]UnitKind{Rock, Paper, Scissors}

func (k UnitKind) Valid() bool {
	return k == Rock || k == Paper || k == Scissors
}

// PowerupKind はパワーアップの種類
type PowerupKind string

const (
	Reverser PowerupKind = "reverser"
	Flooder  PowerupKind = "flooder"
)

func (k PowerupKind) Valid() bool {
	return k == Reverser || k == Flooder
}

// BarrackID は "<side>_<kind>" 形式の兵舎ID（例: "player1_rock"）
type BarrackID string

func NewBarrackID(side Side, kind UnitKind) BarrackID {
	return BarrackID(string(side) + "_" + string(kind))
}

// Parse は兵舎IDをサイドとユニット種別に分解します
func (id BarrackID) Parse() (Side, UnitKind, error) {
	for _, side := range Sides {
		prefix := string(side) + "_"
		if len(id) > len(prefix) && string(id[:len(prefix)]) == prefix {
			kind := UnitKind(id[len(prefix):])
			if kind.Valid() {
				return side, kind, nil
			}
		}
	}
	return "", "", fmt.Errorf("invalid barrack id %q: %w", string(id), ErrMalformed)
}
