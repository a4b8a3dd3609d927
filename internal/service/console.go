package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"rescue-console/common/database"
	mqttcommon "rescue-console/common/mqtt"
	rediscommon "rescue-console/common/redis"
	"rescue-console/internal/client"
	"rescue-console/internal/config"
	"rescue-console/internal/consumer"
	"rescue-console/internal/evictor"
	"rescue-console/internal/export"
	"rescue-console/internal/liveview"
	"rescue-console/internal/models"
	"rescue-console/internal/publisher"
	"rescue-console/internal/ranking"
	"rescue-console/internal/realtime"
	"rescue-console/internal/repository"
	"rescue-console/internal/store"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ConsoleService 救援调度控制台服务
type ConsoleService struct {
	config *config.Config
	logger *zap.Logger

	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client

	backend   *client.BackendClient
	store     *store.SurvivorStore
	window    *liveview.SignalWindow
	channel   *realtime.Channel
	poller    *Poller
	evictor   *evictor.Evictor
	pool      *liveview.SessionPool
	selector  *liveview.Selector
	publisher *publisher.Publisher
	actions   *ActionService
	consumer  *consumer.WifiMQTTConsumer

	wg sync.WaitGroup
}

// NewConsoleService 创建控制台服务
func NewConsoleService(cfg *config.Config, logger *zap.Logger) (*ConsoleService, error) {
	s := &ConsoleService{
		config: cfg,
		logger: logger,
	}

	s.backend = client.NewBackendClient(cfg.Backend, logger)

	var opts []store.Option
	if cfg.Console.PinnedWifiSensorID != "" {
		opts = append(opts, store.WithPinnedSensor(cfg.Console.PinnedWifiSensorID))
	}
	s.store = store.NewSurvivorStore(logger, opts...)
	s.window = liveview.NewSignalWindow(cfg.LiveView.SignalWindow)

	// 实时通道；MQTT 模式下信号由消费者写入
	useMQTT := cfg.Console.WifiSignalSource == "mqtt"
	var sink realtime.SignalSink = s.window
	if useMQTT {
		sink = nil
	}
	tracker := realtime.NewTracker(s.store, sink, logger)
	dialer := realtime.NewStompDialer(cfg.Stomp, logger)
	s.channel = realtime.NewChannel(dialer, s.store, tracker, cfg.Stomp.ReconnectDelay, logger)

	// 多画面
	s.pool = liveview.NewSessionPool(
		liveview.NewPlaylistOpener(cfg.Backend.Timeout),
		liveview.PoolOptions{
			GracePeriod: time.Duration(cfg.LiveView.GracePeriod) * time.Second,
			RetryDelay:  time.Duration(cfg.LiveView.RetryDelay) * time.Second,
		},
		logger,
	)
	s.selector = liveview.NewSelector(cfg.Backend.APIBase, ranking.MultiViewOptions{
		FixedCCTVIDs: cfg.MultiView.FixedCCTVIDs,
		MaxTiles:     cfg.MultiView.MaxTiles,
	}, s.pool, logger)

	// 发布到 Redis（可选）
	var events EventPublisher
	if cfg.Publish.Enabled {
		s.redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(context.Background(), s.redisClient); err != nil {
			s.closeResources()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		kv := publisher.NewRedisKVStore(s.redisClient, cfg.Publish.StreamMaxLen)
		s.publisher = publisher.NewPublisher(kv, kv, publisher.Options{
			RankedKey:   cfg.Publish.RankedKey,
			RankedTTL:   time.Duration(cfg.Publish.RankedTTL) * time.Second,
			EventStream: cfg.Publish.EventStream,
		}, logger)
		events = s.publisher
	}

	// 操作日志（可选）
	var journal repository.ActionJournal = repository.NopJournal{}
	if cfg.Journal.Enabled {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			s.closeResources()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		pg := repository.NewPostgresActionJournal(db, logger)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			s.closeResources()
			return nil, err
		}
		journal = pg
	}

	s.actions = NewActionService(s.backend, s.store, journal, events, logger)

	s.poller = NewPoller(s.backend, s.store, time.Duration(cfg.Console.PollInterval)*time.Second, logger)

	s.evictor = evictor.NewEvictor(s.store, s.backend, evictor.Policy{
		CCTVTimeout: time.Duration(cfg.Evictor.CCTVTimeout) * time.Second,
		WifiEnabled: cfg.Evictor.WifiEnabled,
		WifiTimeout: time.Duration(cfg.Evictor.WifiTimeout) * time.Second,
	}, time.Duration(cfg.Evictor.Interval)*time.Second, logger)
	s.evictor.OnEvicted(s.actions.OnEvicted)

	// MQTT 信号来源（可选）
	if useMQTT {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			s.closeResources()
			return nil, fmt.Errorf("failed to connect to mqtt: %w", err)
		}
		s.mqttClient = mqttClient
		s.consumer = consumer.NewWifiMQTTConsumer(cfg.Console.WifiMQTTTopic, cfg.MQTT.QoS, mqttClient, s.store, s.window, logger)
		s.channel.DisableSignalTopics()
	}

	s.store.OnChange(s.onChange)

	return s, nil
}

// onChange 每次排序变化后：订阅对账、多画面挂载、发布
func (s *ConsoleService) onChange(ranked []models.SurvivorRecord) {
	s.channel.Notify()
	s.selector.Sync(ranked)
	if s.publisher != nil {
		s.publisher.Notify(ranked)
	}
}

// Start 启动服务，阻塞到 ctx 取消
func (s *ConsoleService) Start(ctx context.Context) error {
	s.logger.Info("Starting rescue console service",
		zap.String("backend", s.config.Backend.APIBase),
		zap.String("stomp_url", s.config.Stomp.URL),
		zap.String("wifi_signal_source", s.config.Console.WifiSignalSource),
		zap.Bool("publish_enabled", s.publisher != nil),
		zap.Bool("journal_enabled", s.db != nil),
	)

	// 固定传感器在首次轮询前就需要订阅信号和挂载画面
	ranked := s.store.Ranked()
	s.selector.Sync(ranked)
	if s.publisher != nil {
		s.publisher.Notify(ranked)
	}

	s.channel.Open(ctx)

	s.goRun(func() { s.evictor.Run(ctx) })
	if s.publisher != nil {
		s.goRun(func() { s.publisher.Run(ctx) })
	}
	if s.consumer != nil {
		s.goRun(func() {
			if err := s.consumer.Start(ctx); err != nil {
				s.logger.Error("WiFi MQTT consumer failed", zap.Error(err))
			}
		})
	}

	s.poller.Run(ctx)
	return nil
}

func (s *ConsoleService) goRun(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Stop 停止服务并释放资源
func (s *ConsoleService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping rescue console service")

	s.channel.Close()
	if s.consumer != nil {
		_ = s.consumer.Stop(ctx)
	}
	s.wg.Wait()

	s.selector.Detach()
	s.pool.Close()
	s.closeResources()
	return nil
}

func (s *ConsoleService) closeResources() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.Error(err))
		}
	}
}

// 以下方法供 HTTP 接口使用

// Ranked 当前排序结果
func (s *ConsoleService) Ranked() []models.SurvivorRecord {
	return s.store.Ranked()
}

// Survivor 按 ID 获取记录
func (s *ConsoleService) Survivor(id string) (models.SurvivorRecord, bool) {
	return s.store.Get(id)
}

// Select 设置当前选择
func (s *ConsoleService) Select(id string) error {
	return s.store.Select(id)
}

// Selected 当前选择
func (s *ConsoleService) Selected() (models.SurvivorRecord, bool) {
	return s.store.Selected()
}

// Tiles 当前多画面
func (s *ConsoleService) Tiles() []liveview.Tile {
	return s.selector.Tiles(s.store.Ranked())
}

// Signal 传感器信号窗口
func (s *ConsoleService) Signal(sensorID string) []models.SignalPoint {
	return s.window.Snapshot(sensorID)
}

// Analysis AI 分析结果
func (s *ConsoleService) Analysis(ctx context.Context, id string) (*models.AIAnalysis, error) {
	return s.backend.Analysis(ctx, id)
}

// Dispatch 派遣救援
func (s *ConsoleService) Dispatch(ctx context.Context, id, operator string) (models.SurvivorRecord, error) {
	return s.actions.Dispatch(ctx, id, operator)
}

// ReportFalsePositive 误报删除
func (s *ConsoleService) ReportFalsePositive(ctx context.Context, id, operator string) error {
	return s.actions.ReportFalsePositive(ctx, id, operator)
}

// History 操作日志
func (s *ConsoleService) History(ctx context.Context, id string, limit int) ([]*models.OperatorAction, error) {
	return s.actions.History(ctx, id, limit)
}

// RecentSurvivors 最近 hours 小时的归档记录
func (s *ConsoleService) RecentSurvivors(ctx context.Context, hours int) ([]models.RecentSurvivorRecord, error) {
	return s.backend.ListRecentSurvivors(ctx, hours)
}

// DeleteRecent 删除归档记录
func (s *ConsoleService) DeleteRecent(ctx context.Context, id int64, operator string) error {
	return s.actions.DeleteRecent(ctx, id, operator)
}

// ExportRecent 导出归档记录为 Excel
func (s *ConsoleService) ExportRecent(ctx context.Context, hours int) ([]byte, error) {
	records, err := s.backend.ListRecentSurvivors(ctx, hours)
	if err != nil {
		return nil, err
	}
	return export.GenerateRecentSurvivors(records)
}

// WifiSensors 传感器列表
func (s *ConsoleService) WifiSensors(ctx context.Context) ([]models.WifiSensor, error) {
	return s.backend.ListWifiSensors(ctx)
}

// WifiSensor 单个传感器
func (s *ConsoleService) WifiSensor(ctx context.Context, id int64) (*models.WifiSensor, error) {
	return s.backend.WifiSensor(ctx, id)
}

// Cctvs 摄像头列表
func (s *ConsoleService) Cctvs(ctx context.Context) ([]models.CctvInfo, error) {
	return s.backend.ListCctvs(ctx)
}

// Cctv 单个摄像头
func (s *ConsoleService) Cctv(ctx context.Context, id int64) (*models.CctvInfo, error) {
	return s.backend.Cctv(ctx, id)
}

// Connected 实时通道是否已连接
func (s *ConsoleService) Connected() bool {
	return s.channel.Connected()
}

// LastPublished Redis 中排序结果的生成时间；未启用发布或缓存缺失时返回 false
func (s *ConsoleService) LastPublished(ctx context.Context) (time.Time, bool) {
	if s.publisher == nil {
		return time.Time{}, false
	}
	snap, err := s.publisher.LoadRanked(ctx)
	if err != nil {
		if !errors.Is(err, publisher.ErrCacheMiss) {
			s.logger.Warn("Failed to load published ranking", zap.Error(err))
		}
		return time.Time{}, false
	}
	return snap.GeneratedAt, true
}

// Tracked 当前跟踪的记录数
func (s *ConsoleService) Tracked() int {
	return s.store.Len()
}
