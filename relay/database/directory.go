package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/go-redis/redis/v8"
)

// SessionRecord はディレクトリに保存するセッションの概要
type SessionRecord struct {
	ID        string            `json:"id"`
	State     string            `json:"state"`
	Peers     map[string]string `json:"peers"` // side -> 接続ID
	CreatedAt time.Time         `json:"createdAt"`
}

// Directory は稼働中のセッションを外部に公開する
type Directory interface {
	Put(ctx context.Context, rec SessionRecord) error
	Delete(ctx context.Context, id string) error
	Refresh(ctx context.Context, ids []string) error
}

func sessionKey(id string) string {
	return "session:" + id
}

// RedisDirectory はセッションを "session:<id>" キーでTTL付きで保存する。
// TTLはプロセスが落ちた場合にもレコードがセッションより長く残らないようにするためのもの
type RedisDirectory struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisDirectory(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisDirectory {
	return &RedisDirectory{rdb: rdb, ttl: ttl, logger: logger}
}

func (d *RedisDirectory) Put(ctx context.Context, rec SessionRecord) error {
	// セッション情報をJSON形式でエンコード
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", rec.ID, err)
	}
	if err := d.rdb.Set(ctx, sessionKey(rec.ID), recJSON, d.ttl).Err(); err != nil {
		d.logger.Error("Error storing session info in Redis", zap.String("sessionID", rec.ID), zap.Error(err))
		return err
	}
	return nil
}

func (d *RedisDirectory) Delete(ctx context.Context, id string) error {
	if err := d.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		d.logger.Error("Error deleting session info in Redis", zap.String("sessionID", id), zap.Error(err))
		return err
	}
	return nil
}

// Refresh は稼働中セッションの有効期限を延長する
func (d *RedisDirectory) Refresh(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := d.rdb.Pipeline()
	for _, id := range ids {
		pipe.Expire(ctx, sessionKey(id), d.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		d.logger.Error("Error refreshing session TTL", zap.Int("sessions", len(ids)), zap.Error(err))
		return err
	}
	return nil
}

// Get は保存されたセッション情報を取り出す
func (d *RedisDirectory) Get(ctx context.Context, id string) (SessionRecord, error) {
	recJSON, err := d.rdb.Get(ctx, sessionKey(id)).Result()
	if err != nil {
		return SessionRecord{}, err
	}
	var rec SessionRecord
	if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
		return SessionRecord{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return rec, nil
}

// NopDirectory はRedisが設定されていない場合に使う
type NopDirectory struct{}

func (NopDirectory) Put(context.Context, SessionRecord) error { return nil }
func (NopDirectory) Delete(context.Context, string) error { return nil }
func (NopDirectory) Refresh(context.Context, []string) error { return nil }
