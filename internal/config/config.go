package config

import (
	"os"
	"rescue-console/common/config"
	"strconv"
	"strings"
	"time"
)

// Config 救援调度控制台配置
type Config struct {
	Backend  config.BackendConfig
	Stomp    config.StompConfig
	MQTT     config.MQTTConfig
	Redis    config.RedisConfig
	Database config.DatabaseConfig

	Console struct {
		// REST 轮询间隔（秒），默认 5 秒
		PollInterval int

		// WiFi 信号来源：stomp（默认）或 mqtt（旧版 CSI 通道）
		WifiSignalSource string
		WifiMQTTTopic    string // 如 "csi/+/signal"，第二段为传感器 ID

		// 固定显示的 WiFi 传感器（占位卡片，不可删除），空表示不固定
		PinnedWifiSensorID string
	}

	Evictor struct {
		Interval    int // 扫描间隔（秒），默认 10 秒
		CCTVTimeout int // CCTV 超时（秒），默认 10 秒

		// WiFi 超时淘汰默认关闭：WiFi 记录只能手动标记误报删除
		WifiEnabled bool
		WifiTimeout int // 秒，默认 60 秒
	}

	MultiView struct {
		FixedCCTVIDs []int64 // 固定显示的摄像头
		MaxTiles     int     // 同时显示的最大画面数，默认 6
	}

	LiveView struct {
		GracePeriod  int // 会话释放宽限期（秒），默认 120 秒
		RetryDelay   int // 致命错误后重新挂载的延迟（秒），默认 5 秒
		SignalWindow int // WiFi 信号窗口大小，默认 150
	}

	Publish struct {
		Enabled      bool
		RankedKey    string // 排序结果缓存键
		RankedTTL    int    // 秒
		EventStream  string // 生存者事件流
		StreamMaxLen int64
	}

	Journal struct {
		Enabled bool // 操作日志写入 PostgreSQL
	}

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Backend.APIBase = strings.TrimRight(getEnv("BACKEND_API_BASE", "http://localhost:8080"), "/")
	cfg.Backend.Timeout = time.Duration(getEnvInt("BACKEND_TIMEOUT", 10)) * time.Second
	cfg.Backend.RetryCount = getEnvInt("BACKEND_RETRY_COUNT", 2)

	cfg.Stomp.URL = "ws://localhost:8080/ws/websocket"
	cfg.Stomp.Host = "localhost"
	cfg.Stomp.ReconnectDelay = 5 * time.Second
	cfg.Stomp.HeartBeat = 10 * time.Second
	cfg.Stomp.LoadFromEnv("STOMP")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "rescue-console"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "rescue"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 5
	cfg.Database.LoadFromEnv("DB")

	cfg.Console.PollInterval = getEnvInt("POLL_INTERVAL", 5)
	cfg.Console.WifiSignalSource = getEnv("WIFI_SIGNAL_SOURCE", "stomp")
	cfg.Console.WifiMQTTTopic = getEnv("WIFI_MQTT_TOPIC", "csi/+/signal")
	cfg.Console.PinnedWifiSensorID = getEnv("PINNED_WIFI_SENSOR_ID", "1")
	if cfg.Console.PinnedWifiSensorID == "none" {
		cfg.Console.PinnedWifiSensorID = ""
	}

	cfg.Evictor.Interval = getEnvInt("EVICT_INTERVAL", 10)
	cfg.Evictor.CCTVTimeout = getEnvInt("CCTV_TIMEOUT", 10)
	cfg.Evictor.WifiEnabled = getEnv("WIFI_EVICTION_ENABLED", "false") == "true"
	cfg.Evictor.WifiTimeout = getEnvInt("WIFI_TIMEOUT", 60)

	cfg.MultiView.FixedCCTVIDs = parseIDList(getEnv("FIXED_CCTV_IDS", "1,2,3"))
	cfg.MultiView.MaxTiles = getEnvInt("MULTIVIEW_MAX_TILES", 6)

	cfg.LiveView.GracePeriod = getEnvInt("STREAM_GRACE_PERIOD", 120)
	cfg.LiveView.RetryDelay = getEnvInt("STREAM_RETRY_DELAY", 5)
	cfg.LiveView.SignalWindow = getEnvInt("SIGNAL_WINDOW_SIZE", 150)

	cfg.Publish.Enabled = getEnv("PUBLISH_ENABLED", "true") == "true"
	cfg.Publish.RankedKey = getEnv("PUBLISH_RANKED_KEY", "rescue:dashboard:ranked")
	cfg.Publish.RankedTTL = getEnvInt("PUBLISH_RANKED_TTL", 30)
	cfg.Publish.EventStream = getEnv("PUBLISH_EVENT_STREAM", "rescue:survivor:events")
	cfg.Publish.StreamMaxLen = int64(getEnvInt("PUBLISH_STREAM_MAXLEN", 10000))

	cfg.Journal.Enabled = getEnv("JOURNAL_ENABLED", "false") == "true"

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 读取正整数配置，非法或非正值时使用默认值
func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

// parseIDList 解析 "1,2,3" 形式的 ID 列表，忽略非法项
func parseIDList(s string) []int64 {
	ids := make([]int64, 0)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
