package service

import (
	"context"
	"errors"
	"fmt"
	"rescue-console/internal/client"
	"rescue-console/internal/models"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SurvivorSource 轮询使用的后端接口
type SurvivorSource interface {
	ListSurvivors(ctx context.Context) ([]models.APISurvivor, error)
	LatestPriority(ctx context.Context, id string) (*models.PriorityAssessment, error)
	LatestDetection(ctx context.Context, id string) (*models.Detection, error)
}

// MergeTarget 轮询结果写入的存储
type MergeTarget interface {
	Merge(snapshot []models.SurvivorRecord) []string
	Seed(id string, seed models.Seed) error
	Get(id string) (models.SurvivorRecord, bool)
}

// seedState 记录哪些初始值已确定（拿到结果或后端确认不存在）
type seedState struct {
	priority  bool
	detection bool
}

// Poller 定时拉取生存者快照并合并到存储
type Poller struct {
	source   SurvivorSource
	target   MergeTarget
	interval time.Duration
	logger   *zap.Logger

	mu sync.Mutex
	// pending 初始值尚未确定的记录，每次轮询重试
	pending map[string]*seedState
}

// NewPoller 创建轮询器
func NewPoller(source SurvivorSource, target MergeTarget, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		source:   source,
		target:   target,
		interval: interval,
		logger:   logger,
		pending:  make(map[string]*seedState),
	}
}

// Poll 执行一次拉取；ctx 已取消时丢弃结果，不写入存储
func (p *Poller) Poll(ctx context.Context) error {
	list, err := p.source.ListSurvivors(ctx)
	if err != nil {
		return fmt.Errorf("failed to list survivors: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	snapshot := make([]models.SurvivorRecord, 0, len(list))
	for i := range list {
		snapshot = append(snapshot, list[i].ToSurvivorRecord())
	}
	added := p.target.Merge(snapshot)
	if len(added) > 0 {
		p.logger.Info("New survivors merged",
			zap.Int("added", len(added)),
			zap.Int("snapshot_size", len(snapshot)),
		)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range added {
		if _, ok := p.pending[id]; !ok {
			p.pending[id] = &seedState{}
		}
	}
	for id, state := range p.pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.seed(ctx, id, state) {
			delete(p.pending, id)
		}
	}
	return nil
}

// seed 为记录补充风险分（仅 CCTV）与最近一次检测。
// 返回 true 表示初始值已全部确定或记录已不存在；后端临时失败时返回 false，下次轮询重试。
func (p *Poller) seed(ctx context.Context, id string, state *seedState) bool {
	rec, ok := p.target.Get(id)
	if !ok {
		return true
	}
	if rec.DetectionMethod != models.DetectionCCTV {
		state.priority = true
	}

	var seed models.Seed
	if !state.priority {
		pa, err := p.source.LatestPriority(ctx, id)
		switch {
		case err == nil:
			if pa != nil {
				score := pa.FinalRiskScore
				seed.RiskScore = &score
			}
			state.priority = true
		case errors.Is(err, client.ErrNotFound):
			state.priority = true
		default:
			p.logger.Debug("Failed to seed priority score, will retry",
				zap.String("survivor_id", id),
				zap.Error(err),
			)
		}
	}

	if !state.detection {
		det, err := p.source.LatestDetection(ctx, id)
		switch {
		case err == nil:
			seed.Detection = det
			state.detection = true
		case errors.Is(err, client.ErrNotFound):
			state.detection = true
		default:
			p.logger.Debug("Failed to seed latest detection, will retry",
				zap.String("survivor_id", id),
				zap.Error(err),
			)
		}
	}

	if ctx.Err() != nil {
		// 结果作废，下次重新拉取
		*state = seedState{}
		return false
	}
	if seed.RiskScore != nil || seed.Detection != nil {
		if err := p.target.Seed(id, seed); err != nil {
			p.logger.Debug("Survivor removed before seeding", zap.String("survivor_id", id))
			return true
		}
	}
	return state.priority && state.detection
}

// Run 立即拉取一次，然后按间隔轮询，直到 ctx 取消
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Starting survivor polling", zap.Duration("interval", p.interval))

	if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
		p.logger.Error("Failed to poll survivors on startup", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Failed to poll survivors", zap.Error(err))
			}
		}
	}
}
