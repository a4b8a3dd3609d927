package liveview

import (
	"rescue-console/internal/models"
	"rescue-console/internal/ranking"
	"sync"

	"go.uber.org/zap"
)

// Tile 多画面中的一个显示位
type Tile struct {
	Record     models.SurvivorRecord `json:"record"`
	Source     Source                `json:"source"`
	RiskLevel  string                `json:"risk_level"`
	StreamInfo *SessionInfo          `json:"stream,omitempty"`
}

// Selector 把排序结果映射到多画面显示位，并维护对应的流会话
type Selector struct {
	apiBase string
	opts    ranking.MultiViewOptions
	pool    *SessionPool
	logger  *zap.Logger

	mu       sync.Mutex
	attached map[string]func() // tile key -> release
}

// NewSelector 创建选择器
func NewSelector(apiBase string, opts ranking.MultiViewOptions, pool *SessionPool, logger *zap.Logger) *Selector {
	return &Selector{
		apiBase:  apiBase,
		opts:     opts,
		pool:     pool,
		logger:   logger,
		attached: make(map[string]func()),
	}
}

// Tiles 计算当前多画面（不改变会话）
func (s *Selector) Tiles(ranked []models.SurvivorRecord) []Tile {
	view := ranking.MultiView(ranked, s.opts)
	tiles := make([]Tile, 0, len(view))
	for _, rec := range view {
		src := SourceFor(rec, s.apiBase)
		t := Tile{Record: rec, Source: src, RiskLevel: models.RiskLevel(rec.RiskScore)}
		if info, ok := s.pool.Info(src.TileKey); ok {
			t.StreamInfo = &info
		}
		tiles = append(tiles, t)
	}
	return tiles
}

// Sync 根据最新排序结果挂载新出现的显示位、释放消失的显示位
// 释放只是开始宽限期计时，短时间内重新出现会复用原会话
func (s *Selector) Sync(ranked []models.SurvivorRecord) {
	view := ranking.MultiView(ranked, s.opts)
	wanted := make(map[string]Source, len(view))
	for _, rec := range view {
		src := SourceFor(rec, s.apiBase)
		if src.Kind == SourceNone {
			continue
		}
		wanted[src.TileKey] = src
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, release := range s.attached {
		if _, ok := wanted[key]; !ok {
			release()
			delete(s.attached, key)
		}
	}
	for key, src := range wanted {
		if _, ok := s.attached[key]; ok {
			continue
		}
		release, err := s.pool.Acquire(src)
		if err != nil {
			s.logger.Warn("Failed to attach tile", zap.String("tile_key", key), zap.Error(err))
			continue
		}
		s.attached[key] = release
	}
}

// Attached 当前挂载的 tile key 数量
func (s *Selector) Attached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attached)
}

// Detach 释放全部显示位
func (s *Selector) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, release := range s.attached {
		release()
		delete(s.attached, key)
	}
}
