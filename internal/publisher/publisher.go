// Package publisher 把排序结果和生存者事件发布到 Redis，供其他消费者读取
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"rescue-console/internal/models"
	"sync"
	"time"

	"go.uber.org/zap"
)

// 事件类型
const (
	EventRemoved    = "survivor.removed"
	EventEvicted    = "survivor.evicted"
	EventDispatched = "survivor.dispatched"
)

// RankedSnapshot 缓存中的排序结果
type RankedSnapshot struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Count       int                     `json:"count"`
	Survivors   []models.SurvivorRecord `json:"survivors"`
}

// SurvivorEvent 事件流中的一条事件
type SurvivorEvent struct {
	SurvivorID      string                 `json:"survivor_id"`
	DetectionMethod models.DetectionMethod `json:"detection_method"`
	RiskScore       float64                `json:"risk_score"`
	Location        string                 `json:"location"`
	Floor           int                    `json:"floor"`
	Room            string                 `json:"room"`
	Reason          string                 `json:"reason,omitempty"`
	OccurredAt      time.Time              `json:"occurred_at"`
}

// Options 发布参数
type Options struct {
	RankedKey string
	RankedTTL time.Duration
	// RefreshInterval 无变化时重写排序结果的间隔，默认 RankedTTL/2
	RefreshInterval time.Duration
	EventStream     string
}

// Publisher 异步发布排序结果（只保留最新一份），同步追加事件
type Publisher struct {
	kv     KVStore
	events EventSink
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending []models.SurvivorRecord
	dirty   bool
	// seen 至少收到过一次 Notify，之后定时刷新 pending
	seen bool
	kick chan struct{}
}

// NewPublisher 创建发布器；events 可以为 nil
func NewPublisher(kv KVStore, events EventSink, opts Options, logger *zap.Logger) *Publisher {
	if opts.RankedTTL <= 0 {
		opts.RankedTTL = 30 * time.Second
	}
	if opts.RefreshInterval <= 0 || opts.RefreshInterval >= opts.RankedTTL {
		opts.RefreshInterval = opts.RankedTTL / 2
	}
	return &Publisher{
		kv:     kv,
		events: events,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		kick:   make(chan struct{}, 1),
	}
}

// Notify 记录最新的排序结果，由 Run 异步写入（不阻塞调用方）
func (p *Publisher) Notify(ranked []models.SurvivorRecord) {
	p.mu.Lock()
	p.pending = ranked
	p.dirty = true
	p.seen = true
	p.mu.Unlock()

	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run 写入循环，直到 ctx 取消。排序结果无变化时也按 RefreshInterval 重写，缓存不会过期
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.kick:
			p.mu.Lock()
			ranked, dirty := p.pending, p.dirty
			p.dirty = false
			p.mu.Unlock()
			if !dirty {
				continue
			}
			p.publish(ctx, ranked)
		case <-ticker.C:
			p.mu.Lock()
			ranked, seen := p.pending, p.seen
			p.dirty = false
			p.mu.Unlock()
			if !seen {
				continue
			}
			p.publish(ctx, ranked)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, ranked []models.SurvivorRecord) {
	if err := p.PublishRanked(ctx, ranked); err != nil && ctx.Err() == nil {
		p.logger.Warn("Failed to publish ranked survivors", zap.Error(err))
	}
}

// PublishRanked 写入排序结果缓存
func (p *Publisher) PublishRanked(ctx context.Context, ranked []models.SurvivorRecord) error {
	snap := RankedSnapshot{
		GeneratedAt: p.now(),
		Count:       len(ranked),
		Survivors:   ranked,
	}
	jsonData, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal ranked snapshot: %w", err)
	}
	if err := p.kv.Set(ctx, p.opts.RankedKey, string(jsonData), p.opts.RankedTTL); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	p.logger.Debug("Published ranked survivors",
		zap.String("key", p.opts.RankedKey),
		zap.Int("count", len(ranked)),
	)
	return nil
}

// LoadRanked 读取缓存中的排序结果
func (p *Publisher) LoadRanked(ctx context.Context) (*RankedSnapshot, error) {
	raw, err := p.kv.Get(ctx, p.opts.RankedKey)
	if err != nil {
		return nil, err
	}
	var snap RankedSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ranked snapshot: %w", err)
	}
	return &snap, nil
}

// PublishEvent 追加生存者事件
func (p *Publisher) PublishEvent(ctx context.Context, eventType string, rec models.SurvivorRecord, reason string) error {
	if p.events == nil || p.opts.EventStream == "" {
		return nil
	}
	ev := SurvivorEvent{
		SurvivorID:      rec.ID,
		DetectionMethod: rec.DetectionMethod,
		RiskScore:       rec.RiskScore,
		Location:        rec.Location,
		Floor:           rec.Floor,
		Room:            rec.Room,
		Reason:          reason,
		OccurredAt:      p.now(),
	}
	if err := p.events.Append(ctx, p.opts.EventStream, eventType, ev); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}
