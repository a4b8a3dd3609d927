package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置（操作日志）
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// StompConfig STOMP over WebSocket 配置
type StompConfig struct {
	URL            string // 如 ws://localhost:8080/ws/websocket
	Host           string // CONNECT 帧的 host 头
	Login          string
	Passcode       string
	ReconnectDelay time.Duration // 断线重连间隔
	HeartBeat      time.Duration // 心跳间隔（收发一致）
}

// BackendConfig 后端 REST 服务配置
type BackendConfig struct {
	APIBase    string
	Timeout    time.Duration
	RetryCount int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv 从 {prefix}_HOST/_PORT/_USER/_PASSWORD/_NAME/_SSLMODE/_MAX_CONNS 加载
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	envString(&c.Host, prefix+"_HOST")
	envInt(&c.Port, prefix+"_PORT")
	envString(&c.User, prefix+"_USER")
	envString(&c.Password, prefix+"_PASSWORD")
	envString(&c.Database, prefix+"_NAME")
	envString(&c.SSLMode, prefix+"_SSLMODE")
	envInt(&c.MaxConns, prefix+"_MAX_CONNS")
}

// LoadFromEnv 从 {prefix}_ADDR/_PASSWORD/_DB 加载
func (c *RedisConfig) LoadFromEnv(prefix string) {
	envString(&c.Addr, prefix+"_ADDR")
	envString(&c.Password, prefix+"_PASSWORD")
	envInt(&c.DB, prefix+"_DB")
}

// LoadFromEnv 从 {prefix}_BROKER/_CLIENT_ID/_USERNAME/_PASSWORD/_QOS 加载
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	envString(&c.Broker, prefix+"_BROKER")
	envString(&c.ClientID, prefix+"_CLIENT_ID")
	envString(&c.Username, prefix+"_USERNAME")
	envString(&c.Password, prefix+"_PASSWORD")
	qos := int(c.QoS)
	envInt(&qos, prefix+"_QOS")
	if qos >= 0 && qos <= 2 {
		c.QoS = byte(qos)
	}
}

// LoadFromEnv 从 {prefix}_URL/_HOST/_LOGIN/_PASSCODE/_RECONNECT_DELAY/_HEARTBEAT 加载（时间单位：秒）
func (c *StompConfig) LoadFromEnv(prefix string) {
	envString(&c.URL, prefix+"_URL")
	envString(&c.Host, prefix+"_HOST")
	envString(&c.Login, prefix+"_LOGIN")
	envString(&c.Passcode, prefix+"_PASSCODE")
	envSeconds(&c.ReconnectDelay, prefix+"_RECONNECT_DELAY", false)
	envSeconds(&c.HeartBeat, prefix+"_HEARTBEAT", true)
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// envSeconds allowZero 为 true 时 0 表示关闭（如心跳）
func envSeconds(dst *time.Duration, key string, allowZero bool) {
	n := -1
	envInt(&n, key)
	if n > 0 || (allowZero && n == 0) {
		*dst = time.Duration(n) * time.Second
	}
}
