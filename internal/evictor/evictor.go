// Package evictor 超时淘汰
//
// 定时扫描：CCTV 记录超过超时时间没有新的检测即淘汰；WiFi 超时淘汰默认关闭。
// 必须先在后端删除成功，才从本地移除；删除失败的记录保留到下一轮。
package evictor

import (
	"context"
	"rescue-console/internal/models"
	"time"

	"go.uber.org/zap"
)

// Policy 淘汰策略
type Policy struct {
	CCTVTimeout time.Duration

	WifiEnabled bool
	WifiTimeout time.Duration
}

// DefaultPolicy 默认策略：CCTV 10 秒，WiFi 不淘汰
func DefaultPolicy() Policy {
	return Policy{
		CCTVTimeout: 10 * time.Second,
		WifiTimeout: 60 * time.Second,
	}
}

// SelectStale 选出需要淘汰的记录 ID（纯函数）
//
// 固定/占位记录永不淘汰。WiFi 规则（启用时）：当前未检测到，且最后一次检测超过超时时间；
// 从未检测到的记录没有时间参考，不淘汰。
func SelectStale(records []models.SurvivorRecord, now time.Time, p Policy) []string {
	var ids []string
	for _, r := range records {
		if r.Pinned || r.Placeholder {
			continue
		}
		switch r.DetectionMethod {
		case models.DetectionWifi:
			if !p.WifiEnabled || r.CurrentSurvivorDetected || r.LastSurvivorDetectedAt == nil {
				continue
			}
			if now.Sub(*r.LastSurvivorDetectedAt) > p.WifiTimeout {
				ids = append(ids, r.ID)
			}
		default:
			if r.LastCctvDetectedAt == nil {
				continue
			}
			if now.Sub(*r.LastCctvDetectedAt) > p.CCTVTimeout {
				ids = append(ids, r.ID)
			}
		}
	}
	return ids
}

// Store 淘汰器读取/移除记录
type Store interface {
	Records() []models.SurvivorRecord
	Remove(id string) error
}

// Remover 后端删除
type Remover interface {
	DeleteSurvivor(ctx context.Context, id string, reason models.DeleteReason) error
}

// EvictionHook 记录被淘汰后的回调（事件流、操作日志）
type EvictionHook func(ctx context.Context, rec models.SurvivorRecord)

// Evictor 超时淘汰器
type Evictor struct {
	store    Store
	remover  Remover
	policy   Policy
	interval time.Duration
	now      func() time.Time
	hooks    []EvictionHook
	logger   *zap.Logger
}

// NewEvictor 创建淘汰器
func NewEvictor(store Store, remover Remover, policy Policy, interval time.Duration, logger *zap.Logger) *Evictor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Evictor{
		store:    store,
		remover:  remover,
		policy:   policy,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock 替换时钟（测试用）
func (e *Evictor) SetClock(now func() time.Time) {
	e.now = now
}

// OnEvicted 注册淘汰回调
func (e *Evictor) OnEvicted(h EvictionHook) {
	e.hooks = append(e.hooks, h)
}

// Sweep 执行一轮淘汰，返回成功移除的 ID
func (e *Evictor) Sweep(ctx context.Context) []string {
	records := e.store.Records()
	stale := SelectStale(records, e.now(), e.policy)
	if len(stale) == 0 {
		return nil
	}

	byID := make(map[string]models.SurvivorRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	var removed []string
	for _, id := range stale {
		if ctx.Err() != nil {
			break
		}
		if err := e.remover.DeleteSurvivor(ctx, id, models.DeleteTimeout); err != nil {
			e.logger.Warn("Failed to delete stale survivor, keeping it",
				zap.String("survivor_id", id),
				zap.Error(err),
			)
			continue
		}
		if err := e.store.Remove(id); err != nil {
			e.logger.Warn("Stale survivor already gone from store",
				zap.String("survivor_id", id),
				zap.Error(err),
			)
			continue
		}
		e.logger.Info("Evicted stale survivor",
			zap.String("survivor_id", id),
			zap.String("detection_method", string(byID[id].DetectionMethod)),
		)
		for _, h := range e.hooks {
			h(ctx, byID[id])
		}
		removed = append(removed, id)
	}
	return removed
}

// Run 按固定间隔执行淘汰，直到 ctx 取消
func (e *Evictor) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("Evictor started",
		zap.Duration("interval", e.interval),
		zap.Duration("cctv_timeout", e.policy.CCTVTimeout),
		zap.Bool("wifi_enabled", e.policy.WifiEnabled),
	)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Evictor stopped")
			return
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}
