package models

// Config 構造体はサーバープロセスの設定情報を保持します。
// 環境変数から読み込み、CONFIG_FILE が指定されていればJSONで上書きします。
type Config struct {
	Host       string `json:"host"`
	Port       string `json:"port"`
	Production bool   `json:"production"`
	// 同時に成立できるセッション数
	MaxSessions int `json:"max_sessions"`
	// 1接続あたりの受信メッセージ上限（毎秒）とバースト
	MessageRate  float64 `json:"message_rate"`
	MessageBurst int     `json:"message_burst"`
	// 空の場合は全オリジンを許可
	AllowedOrigins []string `json:"allowed_origins"`
	// RedisAddrが空の場合はセッションディレクトリを無効化
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
}

// Addr はリッスンするアドレスを返します
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}
