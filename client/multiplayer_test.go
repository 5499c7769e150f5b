package client

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpswar/game"
	"rpswar/models"
)

type fakeTransport struct {
	in     chan []byte
	mu     sync.Mutex
	out    [][]byte
	closed chan struct{}
	once   sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case data, ok := <-f.in:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeTransport) WriteMessage(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, data)
	return nil
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// actions は送信されたgameActionのアクションを順に返す
func (f *fakeTransport) actions(t *testing.T) []models.Action {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Action
	for _, raw := range f.out {
		msg, err := models.Decode(raw)
		require.NoError(t, err)
		require.Equal(t, models.TypeGameAction, msg.Type)
		out = append(out, *msg.Action)
	}
	return out
}

func countActions(actions []models.Action, actionType string) int {
	n := 0
	for _, a := range actions {
		if a.Type == actionType {
			n++
		}
	}
	return n
}

// started はイベントループを使わずに、サーバーから init と gameStart を受け取った状態を作る
func started(t *testing.T, side models.Side) (*MultiplayerManager, *fakeTransport, *[]Event) {
	t.Helper()
	var events []Event
	m := New(WithOnEvent(func(ev Event) { events = append(events, ev) }))
	ft := newFakeTransport()
	m.attach(ft)
	m.handleMessage(models.InitMessage(side))
	m.handleMessage(models.GameStartMessage())
	require.NotNil(t, m.match)
	return m, ft, &events
}

func eventsOf(events []Event, kind EventKind) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func TestServerMessagesDriveLifecycle(t *testing.T) {
	m, _, events := started(t, models.SideRight)

	assert.Equal(t, models.SideRight, m.side)
	kinds := []EventKind{}
	for _, ev := range *events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventPlayerAssigned, EventGameStart}, kinds)

	m.handleMessage(models.ErrorMessage("Game is full"))
	serverErrors := eventsOf(*events, EventServerError)
	require.Len(t, serverErrors, 1)
	assert.Equal(t, "Game is full", serverErrors[0].Message)

	m.handleMessage(models.OpponentDisconnectedMessage())
	assert.Nil(t, m.match)
	assert.Len(t, eventsOf(*events, EventOpponentDisconnected), 1)
	assert.False(t, m.toggleBarrack(models.Rock), "no match after the opponent left")
}

func TestLocalToggleAppliesThenSends(t *testing.T) {
	m, ft, _ := started(t, models.SideLeft)

	require.True(t, m.toggleBarrack(models.Rock))
	b, _ := m.match.Barrack(models.NewBarrackID(models.SideLeft, models.Rock))
	assert.True(t, b.Active())

	// クールダウン中の切り替えはローカルで拒否され、送信もしない
	assert.False(t, m.toggleBarrack(models.Rock))

	got := ft.actions(t)
	require.Len(t, got, 1)
	assert.Equal(t, models.ActionToggleBarrack, got[0].Type)
	assert.Equal(t, models.BarrackID("player1_rock"), got[0].BarrackID)
	assert.Equal(t, models.SideLeft, got[0].Side)
}

func TestLocalPowerupSentOnlyOnSuccess(t *testing.T) {
	m, ft, _ := started(t, models.SideLeft)

	require.True(t, m.usePowerup(models.Reverser))
	assert.True(t, m.match.AdvantageFlipped())
	assert.False(t, m.usePowerup(models.Flooder), "5 coins left")

	got := ft.actions(t)
	require.Len(t, got, 1)
	assert.Equal(t, models.Reverser, got[0].PowerupType)
}

func TestRemoteActionsApplyToOpponentSide(t *testing.T) {
	m, ft, _ := started(t, models.SideRight)

	m.handleMessage(toggle(models.SideLeft, models.Paper))
	b, _ := m.match.Barrack(models.NewBarrackID(models.SideLeft, models.Paper))
	assert.True(t, b.Active())

	// 自分の兵舎を名乗るアクションは無視する
	m.handleMessage(toggle(models.SideRight, models.Rock))
	own, _ := m.match.Barrack(models.NewBarrackID(models.SideRight, models.Rock))
	assert.False(t, own.Active())

	m.handleMessage(models.GameActionMessage(models.Action{Type: models.ActionUsePowerup, PowerupType: models.Flooder}))
	assert.True(t, m.match.Economy(models.SideLeft).FlooderActive())
	assert.Equal(t, 0, m.match.Economy(models.SideLeft).Coins())
	assert.Equal(t, 15, m.match.Economy(models.SideRight).Coins())

	assert.Empty(t, ft.out, "remote actions are never echoed back")
}

func toggle(side models.Side, kind models.UnitKind) []byte {
	return models.GameActionMessage(models.Action{
		Type:      models.ActionToggleBarrack,
		Side:      side,
		BarrackID: models.NewBarrackID(side, kind),
	})
}

func TestUnitKilledIsInformational(t *testing.T) {
	m, _, events := started(t, models.SideLeft)

	m.handleMessage(models.GameActionMessage(models.Action{Type: models.ActionUnitKilled, KilledBy: models.SideRight}))

	assert.Equal(t, 15, m.match.Economy(models.SideRight).Coins())
	reports := eventsOf(*events, EventKillReported)
	require.Len(t, reports, 1)
	assert.Equal(t, models.SideRight, reports[0].Side)
}

func TestServerGameOverEndsMatchWithoutEcho(t *testing.T) {
	m, ft, events := started(t, models.SideLeft)

	m.handleMessage(models.GameActionMessage(models.Action{Type: models.ActionGameOver, Side: models.SideLeft, Winner: models.SideLeft}))

	over, winner := m.match.Over()
	assert.True(t, over)
	assert.Equal(t, models.SideLeft, winner)
	assert.Empty(t, ft.out)
	assert.Len(t, eventsOf(*events, EventGameOver), 1)
	assert.False(t, m.toggleBarrack(models.Rock))
}

func TestServerWinnerReplacesLocalResult(t *testing.T) {
	m, _, events := started(t, models.SideLeft)
	m.match.End(models.SideLeft)

	m.handleMessage(models.GameActionMessage(models.Action{Type: models.ActionGameOver, Side: models.SideRight, Winner: models.SideRight}))

	view := m.view()
	assert.True(t, view.Over)
	assert.Equal(t, models.SideRight, view.Winner)
	reported := eventsOf(*events, EventGameOver)
	require.Len(t, reported, 1)
	assert.Equal(t, models.SideRight, reported[0].Winner)
}

func TestLocalWinReportsGameOverOnce(t *testing.T) {
	m, ft, _ := started(t, models.SideLeft)
	require.True(t, m.toggleBarrack(models.Paper))

	for i := 0; i < 60*20; i++ {
		m.match.Step(time.Second / 60)
	}

	got := ft.actions(t)
	require.Equal(t, 1, countActions(got, models.ActionGameOver))
	last := got[len(got)-1]
	assert.Equal(t, models.ActionGameOver, last.Type)
	assert.Equal(t, models.SideLeft, last.Winner)
	assert.Zero(t, countActions(got, models.ActionUnitKilled))
}

func TestLosingSideDoesNotReportGameOver(t *testing.T) {
	m, ft, events := started(t, models.SideRight)
	m.handleMessage(toggle(models.SideLeft, models.Paper))

	for i := 0; i < 60*20; i++ {
		m.match.Step(time.Second / 60)
	}

	over, winner := m.match.Over()
	require.True(t, over)
	assert.Equal(t, models.SideLeft, winner)
	assert.Empty(t, ft.out)

	var gameOver []game.Event
	for _, ev := range eventsOf(*events, EventMatch) {
		if ev.Match.Kind == game.EventGameOver {
			gameOver = append(gameOver, ev.Match)
		}
	}
	assert.Len(t, gameOver, 1)
}

func TestKillsCreditedToOwnSideAreReported(t *testing.T) {
	m, ft, _ := started(t, models.SideLeft)
	// 左のrockと右のscissorsを同時に出して正面衝突させる
	require.True(t, m.toggleBarrack(models.Rock))
	m.handleMessage(toggle(models.SideRight, models.Scissors))

	for i := 0; i < 60*8; i++ {
		m.match.Step(time.Second / 60)
		if countActions(ft.actions(t), models.ActionUnitKilled) > 0 {
			break
		}
	}

	kills := 0
	for _, a := range ft.actions(t) {
		if a.Type == models.ActionUnitKilled {
			kills++
			assert.Equal(t, models.SideLeft, a.KilledBy)
		}
	}
	assert.Positive(t, kills)
}

func TestCommandsNeedRunningLoop(t *testing.T) {
	m := New()
	_, err := m.ToggleBarrack(context.Background(), models.Rock)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = m.UsePowerup(context.Background(), "teleport")
	assert.ErrorIs(t, err, models.ErrMalformed)
}

func TestServeRunsCommandsOnEventLoop(t *testing.T) {
	ft := newFakeTransport()
	gameStarted := make(chan struct{})
	m := New(WithOnEvent(func(ev Event) {
		if ev.Kind == EventGameStart {
			close(gameStarted)
		}
	}))

	done := make(chan error, 1)
	go func() { done <- m.Serve(context.Background(), ft) }()

	ft.in <- models.InitMessage(models.SideLeft)
	ft.in <- models.GameStartMessage()
	select {
	case <-gameStarted:
	case <-time.After(5 * time.Second):
		t.Fatal("game never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok, err := m.ToggleBarrack(ctx, models.Scissors)
	require.NoError(t, err)
	assert.True(t, ok)

	view, err := m.State(ctx)
	require.NoError(t, err)
	assert.True(t, view.Started)
	assert.Equal(t, models.SideLeft, view.Side)
	assert.True(t, view.Barracks[models.NewBarrackID(models.SideLeft, models.Scissors)])
	assert.Equal(t, [2]int{15, 15}, view.Coins)

	// サーバーが切断するとServeはnilで戻り、以降のコマンドはエラーになる
	close(ft.in)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after disconnect")
	}
	_, err = m.ToggleBarrack(ctx, models.Rock)
	assert.ErrorIs(t, err, ErrNotConnected)

	got := ft.actions(t)
	require.NotEmpty(t, got)
	assert.Equal(t, models.ActionToggleBarrack, got[0].Type)
}
