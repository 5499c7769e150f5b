package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"rpswar/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// SessionTTL はセッションディレクトリのレコードの有効期限
const SessionTTL = 15 * time.Minute

func getEnvDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// LoadConfig は環境変数から設定を読み込み、CONFIG_FILE が指定されていればJSONファイルで上書きする
func LoadConfig() (models.Config, error) {
	production := os.Getenv("APP_ENV") == "production"
	defaultHost := "localhost"
	if production {
		defaultHost = "0.0.0.0"
	}

	config := models.Config{
		Host:          getEnvDefault("HOST", defaultHost),
		Port:          getEnvDefault("PORT", "3000"),
		Production:    production,
		MaxSessions:   1,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	if config.MaxSessions, err = envInt("MAX_SESSIONS", 1); err != nil {
		return config, err
	}
	if config.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return config, err
	}
	if config.MessageBurst, err = envInt("MESSAGE_BURST", 0); err != nil {
		return config, err
	}
	if v := os.Getenv("MESSAGE_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return config, fmt.Errorf("invalid MESSAGE_RATE %q: %w", v, err)
		}
		config.MessageRate = rate
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				config.AllowedOrigins = append(config.AllowedOrigins, origin)
			}
		}
	}

	if filename := os.Getenv("CONFIG_FILE"); filename != "" {
		if err := loadConfigFile(filename, &config); err != nil {
			return config, err
		}
	}
	if config.MaxSessions < 1 {
		config.MaxSessions = 1
	}
	return config, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

// loadConfigFile はJSONファイルに書かれた項目だけを上書きする
func loadConfigFile(filename string, config *models.Config) error {
	configFile, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer configFile.Close()

	jsonParser := json.NewDecoder(configFile)
	if err := jsonParser.Decode(config); err != nil {
		return fmt.Errorf("設定ファイル %s の読み込みに失敗しました: %w", filename, err)
	}
	return nil
}

// InitRedis はRedisに接続する。接続できるまで数回リトライする
func InitRedis(config models.Config, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	const maxRetries = 3
	const retryInterval = 2 * time.Second
	var err error
	for i := 0; i <= maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), retryInterval)
		_, err = rdb.Ping(ctx).Result()
		cancel()
		if err == nil {
			logger.Info("Connected to Redis", zap.String("addr", config.RedisAddr))
			return rdb, nil
		}
		logger.Error("Redis接続のリトライ", zap.Int("retry", i), zap.Error(err))
		if i < maxRetries {
			time.Sleep(retryInterval)
		}
	}
	rdb.Close()
	return nil, fmt.Errorf("Redis接続に失敗しました: %w", err)
}
