package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"rpswar/game"
	"rpswar/models"
)

var (
	// ErrNotConnected はイベントループが動いていない時にコマンドを呼んだ場合のエラー
	ErrNotConnected = errors.New("not connected")
	// ErrThrottled はコマンドの送信間隔が短すぎる場合のエラー
	ErrThrottled = errors.New("too many commands")
)

type Option func(*MultiplayerManager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *MultiplayerManager) {
		m.logger = logger
	}
}

// WithOnEvent は通知の受け取り先を設定する。fnはイベントループ上で呼ばれるので、
// fnの中からToggleBarrackなどのコマンドを呼ぶとデッドロックする
func WithOnEvent(fn func(Event)) Option {
	return func(m *MultiplayerManager) {
		m.onEvent = fn
	}
}

func WithRules(rules game.Rules) Option {
	return func(m *MultiplayerManager) {
		m.rules = rules
	}
}

// WithTickRate はシミュレーションの1ステップの長さ（既定は60Hz）
func WithTickRate(tick time.Duration) Option {
	return func(m *MultiplayerManager) {
		if tick > 0 {
			m.tick = tick
		}
	}
}

// WithCommandLimit は1秒あたりのコマンド数とバーストの上限
func WithCommandLimit(perSecond float64, burst int) Option {
	return func(m *MultiplayerManager) {
		m.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

type command struct {
	fn    func() any
	reply chan any
}

// MultiplayerManager はサーバーとのやり取りとローカルのマッチを管理する。
// マッチと送信は全てイベントループの1ゴルーチンが持ち、外部からのコマンドはチャネル経由で渡す。
type MultiplayerManager struct {
	logger  *zap.Logger
	onEvent func(Event)
	rules   game.Rules
	tick    time.Duration
	limiter *rate.Limiter

	commands chan command
	mu       sync.Mutex
	stopped  chan struct{} // 動作中のループが終わると閉じる。未起動ならnil

	// 以下はイベントループだけが触る
	transport  Transport
	side       models.Side
	match      *game.Match
	serverOver bool
}

func New(opts ...Option) *MultiplayerManager {
	m := &MultiplayerManager{
		logger:   zap.NewNop(),
		onEvent:  func(Event) {},
		rules:    game.DefaultRules(),
		tick:     time.Second / 60,
		limiter:  rate.NewLimiter(10, 20),
		commands: make(chan command),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run はurlに接続し、切断されるかctxが終わるまでServeする
func (m *MultiplayerManager) Run(ctx context.Context, url string) error {
	t, err := Dial(ctx, url)
	if err != nil {
		return err
	}
	m.logger.Info("Connected to server", zap.String("url", url))
	return m.Serve(ctx, t)
}

// Serve は受信ゴルーチンとイベントループを動かす。サーバーから切断された場合はnilを返す
func (m *MultiplayerManager) Serve(ctx context.Context, t Transport) error {
	stopped := make(chan struct{})
	m.mu.Lock()
	if m.stopped != nil {
		select {
		case <-m.stopped:
		default:
			m.mu.Unlock()
			return errors.New("already running")
		}
	}
	m.stopped = stopped
	m.mu.Unlock()

	inbound := make(chan []byte, 64)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(inbound)
		for {
			data, err := t.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					m.logger.Warn("Disconnected from server", zap.Error(err))
				}
				return nil
			}
			select {
			case inbound <- data:
			case <-ctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		defer close(stopped)
		// ループが終わったら接続を閉じて受信ゴルーチンを止める
		defer t.Close()
		return m.loop(ctx, t, inbound)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (m *MultiplayerManager) loop(ctx context.Context, t Transport, inbound <-chan []byte) error {
	m.attach(t)
	defer m.detach()

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-inbound:
			if !ok {
				m.emit(Event{Kind: EventDisconnected})
				return nil
			}
			m.handleMessage(data)
		case cmd := <-m.commands:
			cmd.reply <- cmd.fn()
		case <-ticker.C:
			if m.match != nil {
				m.match.Step(m.tick)
			}
		}
	}
}

func (m *MultiplayerManager) attach(t Transport) {
	m.transport = t
}

func (m *MultiplayerManager) detach() {
	m.transport = nil
	if m.match != nil {
		m.match.Close()
		m.match = nil
	}
}

func (m *MultiplayerManager) write(data []byte) {
	// 送信はマッチ中のアクションだけなので、未接続なら捨てる
	if m.transport == nil {
		m.logger.Debug("Dropping message while disconnected")
		return
	}
	if err := m.transport.WriteMessage(data); err != nil {
		m.logger.Error("Error sending message", zap.Error(err))
	}
}

func (m *MultiplayerManager) sendAction(action models.Action) {
	m.write(models.GameActionMessage(action))
}

func (m *MultiplayerManager) emit(ev Event) {
	m.onEvent(ev)
}

func (m *MultiplayerManager) handleMessage(data []byte) {
	msg, err := models.Decode(data)
	if err != nil {
		m.logger.Warn("Dropping malformed server message", zap.Error(err))
		return
	}

	switch msg.Type {
	case models.TypeInit:
		if !msg.PlayerID.Valid() {
			m.logger.Warn("Invalid player id", zap.String("playerId", string(msg.PlayerID)))
			return
		}
		m.side = msg.PlayerID
		m.emit(Event{Kind: EventPlayerAssigned, Side: m.side})
	case models.TypeWaiting:
		m.emit(Event{Kind: EventWaiting, Side: m.side})
	case models.TypeGameStart:
		m.startMatch()
		m.emit(Event{Kind: EventGameStart, Side: m.side})
	case models.TypeGameAction:
		m.applyRemote(*msg.Action)
	case models.TypeOpponentDisconnected:
		if m.match != nil {
			m.match.Close()
			m.match = nil
		}
		m.emit(Event{Kind: EventOpponentDisconnected, Side: m.side})
	case models.TypeError:
		m.logger.Error("Server error", zap.String("message", msg.Message))
		m.emit(Event{Kind: EventServerError, Side: m.side, Message: msg.Message})
	default:
		m.logger.Warn("Unknown message type", zap.String("type", msg.Type))
	}
}

// startMatch は新しいマッチを作る。前のマッチは破棄する
func (m *MultiplayerManager) startMatch() {
	if m.match != nil {
		m.match.Close()
	}
	m.serverOver = false
	m.match = game.NewMatch(m.rules, m.logger.With(zap.String("side", string(m.side))))
	m.match.Subscribe(game.ObserverFunc(m.onMatchEvent))
}

// applyRemote は相手から中継されたアクションを相手側のエンティティに適用する
func (m *MultiplayerManager) applyRemote(action models.Action) {
	if m.match == nil {
		m.logger.Debug("Dropping action outside match", zap.String("action", action.Type))
		return
	}
	opponent := m.side.Opposite()

	switch action.Type {
	case models.ActionToggleBarrack:
		side, _, err := action.BarrackID.Parse()
		if err != nil || side != opponent {
			m.logger.Warn("Ignoring toggle for barrack not owned by opponent", zap.String("barrack", string(action.BarrackID)), zap.Error(err))
			return
		}
		m.match.ToggleBarrack(action.BarrackID)
	case models.ActionUsePowerup:
		m.match.UsePowerup(opponent, action.PowerupType)
	case models.ActionUnitKilled:
		// コインはローカルの戦闘判定で加算済み
		m.emit(Event{Kind: EventKillReported, Side: action.KilledBy})
	case models.ActionGameOver:
		m.serverOver = true
		m.match.End(action.Winner)
		m.emit(Event{Kind: EventGameOver, Side: m.side, Winner: action.Winner})
	}
}

// onMatchEvent はローカルのマッチで起きたことのうち、自分の側の結果だけを報告する
func (m *MultiplayerManager) onMatchEvent(ev game.Event) {
	switch ev.Kind {
	case game.EventUnitDestroyed:
		if ev.KilledBy == m.side {
			m.sendAction(models.Action{Type: models.ActionUnitKilled, Side: m.side, KilledBy: m.side})
		}
	case game.EventGameOver:
		if !m.serverOver && ev.Winner == m.side {
			m.sendAction(models.Action{Type: models.ActionGameOver, Side: m.side, Winner: m.side})
		}
	}
	m.emit(Event{Kind: EventMatch, Side: m.side, Match: ev})
}

func (m *MultiplayerManager) toggleBarrack(kind models.UnitKind) bool {
	if m.match == nil || !m.side.Valid() {
		return false
	}
	id := models.NewBarrackID(m.side, kind)
	if !m.match.ToggleBarrack(id) {
		return false
	}
	m.sendAction(models.Action{Type: models.ActionToggleBarrack, Side: m.side, BarrackID: id})
	return true
}

func (m *MultiplayerManager) usePowerup(kind models.PowerupKind) bool {
	if m.match == nil || !m.side.Valid() {
		return false
	}
	if !m.match.UsePowerup(m.side, kind) {
		return false
	}
	m.sendAction(models.Action{Type: models.ActionUsePowerup, Side: m.side, PowerupType: kind})
	return true
}

func (m *MultiplayerManager) view() View {
	v := View{Side: m.side, Barracks: make(map[models.BarrackID]bool)}
	if m.match == nil {
		return v
	}
	v.Started = true
	v.Over, v.Winner = m.match.Over()
	for _, side := range models.Sides {
		v.Coins[side.Index()] = m.match.Economy(side).Coins()
		for _, kind := range models.UnitKinds {
			if b, ok := m.match.Barrack(models.NewBarrackID(side, kind)); ok {
				v.Barracks[b.ID] = b.Active()
			}
		}
	}
	v.Units = len(m.match.Units())
	v.Flipped = m.match.AdvantageFlipped()
	v.Elapsed = m.match.Now()
	return v
}

// do はfnをイベントループで実行して結果を返す
func (m *MultiplayerManager) do(ctx context.Context, fn func() any) (any, error) {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped == nil {
		return nil, ErrNotConnected
	}

	cmd := command{fn: fn, reply: make(chan any, 1)}
	select {
	case m.commands <- cmd:
	case <-stopped:
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case result := <-cmd.reply:
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ToggleBarrack は自分の兵舎を切り替え、成功した場合だけ相手に送る
func (m *MultiplayerManager) ToggleBarrack(ctx context.Context, kind models.UnitKind) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("unit kind %q: %w", kind, models.ErrMalformed)
	}
	if !m.limiter.Allow() {
		return false, ErrThrottled
	}
	result, err := m.do(ctx, func() any { return m.toggleBarrack(kind) })
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// UsePowerup は自分のパワーアップを発動し、成功した場合だけ相手に送る
func (m *MultiplayerManager) UsePowerup(ctx context.Context, kind models.PowerupKind) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("powerup %q: %w", kind, models.ErrMalformed)
	}
	if !m.limiter.Allow() {
		return false, ErrThrottled
	}
	result, err := m.do(ctx, func() any { return m.usePowerup(kind) })
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// State は現在のマッチの概要を返す
func (m *MultiplayerManager) State(ctx context.Context) (View, error) {
	result, err := m.do(ctx, func() any { return m.view() })
	if err != nil {
		return View{}, err
	}
	return result.(View), nil
}
