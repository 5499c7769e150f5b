package game

import (
	"time"

	"go.uber.org/zap"

	"rpswar/models"
)

// Castle は各サイドの本拠地。敵ユニットが触れたら負け
type Castle struct {
	Side models.Side
	Pos  Vec2
}

// Match は1セッション分のシミュレーション。両サイドの全エンティティをローカルに持ち、
// 中継されたアクションを同じ順序で適用することで相手側と同じ状態に収束させる。
// メソッドは全て同じゴルーチンから呼ぶこと。
type Match struct {
	rules  Rules
	logger *zap.Logger
	sched  *Scheduler
	shared *SharedState

	economies    [2]*Economy
	barracks     map[models.BarrackID]*Barrack
	barrackOrder []*Barrack
	castles      [2]Castle
	units        []*Unit
	nextUnitID   UnitID

	observers []Observer
	over      bool
	closed    bool
	winner    models.Side
}

// NewMatch は初期状態のマッチを作る。兵舎は各サイドにrock, paper, scissorsの3棟
func NewMatch(rules Rules, logger *zap.Logger) *Match {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Match{
		rules:    rules,
		logger:   logger,
		sched:    NewScheduler(),
		shared:   &SharedState{},
		barracks: make(map[models.BarrackID]*Barrack),
	}
	for _, side := range models.Sides {
		m.economies[side.Index()] = newEconomy(m, side)
		m.castles[side.Index()] = Castle{Side: side, Pos: Vec2{X: rules.castleX(side), Y: rules.FieldHeight / 2}}
		for _, kind := range models.UnitKinds {
			b := newBarrack(m, side, kind)
			m.barracks[b.ID] = b
			m.barrackOrder = append(m.barrackOrder, b)
		}
	}
	return m
}

// Subscribe は状態変化の通知先を登録する
func (m *Match) Subscribe(o Observer) {
	m.observers = append(m.observers, o)
}

func (m *Match) emit(ev Event) {
	for _, o := range m.observers {
		o.OnEvent(ev)
	}
}

// Step はシミュレーションをdtだけ進める。タイマー処理、移動目標の更新、移動、接触判定の順
func (m *Match) Step(dt time.Duration) {
	if m.over || m.closed || dt <= 0 {
		return
	}
	m.sched.Advance(dt)
	if m.over {
		return
	}
	seconds := dt.Seconds()
	for _, u := range m.units {
		if u.alive {
			u.steer(m)
		}
	}
	for _, u := range m.units {
		if u.alive {
			u.move(seconds, m.rules)
		}
	}
	m.resolveContacts()
}

// ToggleBarrack は兵舎の稼働を切り替える。拒否された場合や不明なIDならfalse
func (m *Match) ToggleBarrack(id models.BarrackID) bool {
	if m.over || m.closed {
		return false
	}
	b, ok := m.barracks[id]
	if !ok {
		m.logger.Warn("Unknown barrack", zap.String("barrack", string(id)))
		return false
	}
	return b.toggle()
}

// UsePowerup はsideのパワーアップを発動する。コスト不足や再使用待ちならfalseで状態は変わらない
func (m *Match) UsePowerup(side models.Side, kind models.PowerupKind) bool {
	if m.over || m.closed || !side.Valid() {
		return false
	}
	e := m.economies[side.Index()]
	switch kind {
	case models.Reverser:
		return e.useReverser()
	case models.Flooder:
		return e.useFlooder()
	default:
		m.logger.Warn("Unknown powerup", zap.String("powerup", string(kind)))
		return false
	}
}

// AddCoins はsideにn枚のコインを加えて通知する
func (m *Match) AddCoins(side models.Side, n int) {
	if m.closed || !side.Valid() {
		return
	}
	m.economies[side.Index()].addCoins(n)
}

// End はサーバーの確定した勝者でマッチを終了させる。ローカルで既に別の勝者が
// 決まっていた場合はサーバーの勝者で上書きし、もう一度EventGameOverを通知する
func (m *Match) End(winner models.Side) {
	if m.closed {
		return
	}
	if m.over {
		if m.winner != winner {
			m.logger.Warn("Local winner overridden by server",
				zap.String("local", string(m.winner)), zap.String("server", string(winner)))
			m.winner = winner
			m.emit(Event{Kind: EventGameOver, Side: winner, Winner: winner})
		}
		return
	}
	m.finish(winner)
}

func (m *Match) finish(winner models.Side) {
	if m.over || m.closed {
		return
	}
	m.over = true
	m.winner = winner
	m.stopTimers()
	m.emit(Event{Kind: EventGameOver, Side: winner, Winner: winner})
}

// Close は全てのタイマーを破棄する。以降の操作は全て無視される
func (m *Match) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.stopTimers()
}

func (m *Match) stopTimers() {
	for _, b := range m.barrackOrder {
		b.stop()
	}
	for _, e := range m.economies {
		e.stop()
	}
	m.sched.CancelAll()
}

// done は終了またはClose済みかどうか。残ったタイマーはこれを見て何もしない
func (m *Match) done() bool {
	return m.over || m.closed
}

func (m *Match) spawnUnit(side models.Side, kind models.UnitKind, pos Vec2) *Unit {
	m.nextUnitID++
	u := newUnit(m.nextUnitID, side, kind, pos, m.rules)
	m.units = append(m.units, u)
	m.emit(Event{Kind: EventUnitSpawned, Side: side, Unit: u.ID, UnitKind: kind})
	return u
}

// sweepDead は破壊済みユニットをスライスから取り除く。順序は保つ
func (m *Match) sweepDead() {
	alive := m.units[:0]
	for _, u := range m.units {
		if u.alive {
			alive = append(alive, u)
		}
	}
	for i := len(alive); i < len(m.units); i++ {
		m.units[i] = nil
	}
	m.units = alive
}

func (m *Match) restartProduction(side models.Side) {
	for _, b := range m.barrackOrder {
		if b.Side == side {
			b.restartProduction()
		}
	}
}

// ActiveBarracks はsideで稼働中の兵舎数
func (m *Match) ActiveBarracks(side models.Side) int {
	n := 0
	for _, b := range m.barrackOrder {
		if b.Side == side && b.active {
			n++
		}
	}
	return n
}

func (m *Match) Barrack(id models.BarrackID) (*Barrack, bool) {
	b, ok := m.barracks[id]
	return b, ok
}

func (m *Match) Economy(side models.Side) *Economy {
	return m.economies[side.Index()]
}

// Units は生存中のユニット（生成順）
func (m *Match) Units() []*Unit {
	out := make([]*Unit, 0, len(m.units))
	for _, u := range m.units {
		if u.alive {
			out = append(out, u)
		}
	}
	return out
}

func (m *Match) Castle(side models.Side) Castle {
	return m.castles[side.Index()]
}

func (m *Match) AdvantageFlipped() bool {
	return m.shared.AdvantageFlipped
}

// Over は勝敗が決まったかどうかと勝者
func (m *Match) Over() (bool, models.Side) {
	return m.over, m.winner
}

func (m *Match) Now() time.Duration {
	return m.sched.Now()
}
