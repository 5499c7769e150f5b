package connection

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrBackpressure は送信キューが満杯の場合に返されるエラー
	ErrBackpressure = errors.New("send queue is full")
	// ErrClosed は閉じた接続に送信しようとした場合のエラー
	ErrClosed = errors.New("connection closed")
)

// Options は接続ごとの設定
type Options struct {
	PingPeriod   time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	MaxMessage   int64
	SendQueue    int
	MessageRate  float64
	MessageBurst int
}

func DefaultOptions() Options {
	return Options{
		PingPeriod:   10 * time.Second, // 10秒ごとにPingを送信
		PongWait:     60 * time.Second, // 60秒の読み取りデッドライン
		WriteWait:    10 * time.Second,
		MaxMessage:   4096,
		SendQueue:    256,
		MessageRate:  20,
		MessageBurst: 40,
	}
}

// Client はWebSocketクライアント1接続分。書き込みは専用のゴルーチンに集約するので
// 1接続上のメッセージは送信順に届く。
type Client struct {
	id   string
	Addr string

	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	opts    Options
	logger  *zap.Logger
}

func NewClient(conn *websocket.Conn, opts Options, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:      id,
		Addr:    conn.RemoteAddr().String(),
		conn:    conn,
		send:    make(chan []byte, opts.SendQueue),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(opts.MessageRate), opts.MessageBurst),
		opts:    opts,
		logger:  logger.With(zap.String("clientID", id)),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send はメッセージを送信キューに積む。ブロックしない
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close はキューに残ったメッセージを送り切ってから接続を閉じる。何度呼んでもよい
func (c *Client) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	return nil
}

// WritePump は送信キューとPingを処理する。接続ごとに1つだけ起動する
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.logger.Error("Error sending ping", zap.Error(err))
				c.Close()
				return
			}
		case <-c.done:
			c.drain()
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drain は閉じる前にキューに残っているメッセージを送る（例: 満員エラーの後に切断）
func (c *Client) drain() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// ReadPump は接続が切れるまでメッセージを読み、onMessageに渡す。
// レート制限を超えたメッセージはログに残して捨てる。
func (c *Client) ReadPump(onMessage func([]byte)) {
	c.conn.SetReadLimit(c.opts.MaxMessage)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	// Pongを受信したら読み取りデッドラインを更新
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}
		if !c.limiter.Allow() {
			c.logger.Warn("Message rate exceeded, dropping", zap.Int("bytes", len(message)))
			continue
		}
		onMessage(message)
	}
}
