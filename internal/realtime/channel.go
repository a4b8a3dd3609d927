package realtime

import (
	"context"
	"rescue-console/internal/models"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// RecordSource 提供当前跟踪的记录
type RecordSource interface {
	Records() []models.SurvivorRecord
}

// Channel 实时通道：持有连接，负责重连和订阅对账
type Channel struct {
	dialer         Dialer
	records        RecordSource
	tracker        *Tracker
	reconnectDelay time.Duration
	skipSignal     bool
	logger         *zap.Logger

	kick      chan struct{}
	connected atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewChannel 创建实时通道
func NewChannel(dialer Dialer, records RecordSource, tracker *Tracker, reconnectDelay time.Duration, logger *zap.Logger) *Channel {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &Channel{
		dialer:         dialer,
		records:        records,
		tracker:        tracker,
		reconnectDelay: reconnectDelay,
		logger:         logger,
		kick:           make(chan struct{}, 1),
	}
}

// DisableSignalTopics 信号改由其他通道（MQTT）提供时，不再订阅传感器信号主题
func (c *Channel) DisableSignalTopics() {
	c.skipSignal = true
}

func (c *Channel) desired() map[Key]struct{} {
	keys := DesiredKeys(c.records.Records())
	if c.skipSignal {
		for k := range keys {
			if k.Kind == KindSignal {
				delete(keys, k)
			}
		}
	}
	return keys
}

// Open 启动连接循环（非阻塞）
func (c *Channel) Open(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

// Close 关闭连接并撤销所有订阅
func (c *Channel) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	c.wg.Wait()
}

// Connected 当前是否已连接
func (c *Channel) Connected() bool {
	return c.connected.Load()
}

// Notify 记录集合变化，触发一次订阅对账（不阻塞）
func (c *Channel) Notify() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *Channel) run(ctx context.Context) {
	for {
		session, err := c.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("Failed to connect realtime channel, retrying",
				zap.Error(err),
				zap.Duration("retry_in", c.reconnectDelay),
			)
		} else {
			c.serve(ctx, session)
			if ctx.Err() != nil {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Channel) serve(ctx context.Context, session Session) {
	c.connected.Store(true)
	c.tracker.Reconcile(c.desired())
	c.tracker.Attach(session)
	c.logger.Info("Realtime channel subscribed", zap.Int("subscriptions", len(c.tracker.Active())))

	defer func() {
		c.connected.Store(false)
		c.tracker.Detach()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = session.Close()
			return
		case <-session.Done():
			c.logger.Warn("Realtime channel disconnected")
			return
		case <-c.kick:
			c.tracker.Reconcile(c.desired())
		}
	}
}
