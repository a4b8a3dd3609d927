// Package store 生存者状态表
//
// 合并 REST 快照与实时通道的增量，按字段归属决定谁能写：
// REST 只负责身份/位置/状态/救援状态，实时字段（风险分、最近检测、WiFi 标志、CCTV 最后检测时间）
// 只能由实时通道写入。每次变更后重新计算完整的排序结果（不做增量排序）。
package store

import (
	"errors"
	"rescue-console/internal/models"
	"rescue-console/internal/ranking"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("survivor not found")
	// ErrPinnedRecord 固定/占位记录不可删除
	ErrPinnedRecord = errors.New("pinned or placeholder record cannot be removed")
)

// Listener 排序结果变更回调
// 回调在变更串行化的锁内执行，不能再调用 store 的写方法
type Listener func(ranked []models.SurvivorRecord)

type entry struct {
	rec models.SurvivorRecord
	seq int64 // 首次出现顺序

	// 实时通道是否已送达（决定 REST 初值是否还能填充）
	scoreLive     bool
	detectionLive bool
}

// SurvivorStore 内存中的生存者表
type SurvivorStore struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	nextSeq  int64
	ranked   []models.SurvivorRecord
	selected string

	notifyMu  sync.Mutex // 串行化 "变更 + 通知"，保证监听者按顺序看到结果
	listeners []Listener

	now    func() time.Time
	logger *zap.Logger
}

// Option 构造选项
type Option func(*SurvivorStore)

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *SurvivorStore) { s.now = now }
}

// WithPinnedSensor 固定显示一个 WiFi 传感器（即使没有任何检测）
func WithPinnedSensor(sensorID string) Option {
	return func(s *SurvivorStore) {
		if sensorID == "" {
			return
		}
		id := PinnedID(sensorID)
		sensor := sensorID
		s.insert(models.SurvivorRecord{
			ID:              id,
			Location:        "WiFi Sensor " + sensorID,
			Room:            "-",
			Status:          models.StatusStanding,
			DetectionMethod: models.DetectionWifi,
			RescueStatus:    models.RescuePending,
			WifiSensorID:    &sensor,
			Placeholder:     true,
			Pinned:          true,
		})
	}
}

// PinnedID 固定传感器记录的 ID
func PinnedID(sensorID string) string {
	return "pinned-wifi-" + sensorID
}

// NewSurvivorStore 创建生存者表
func NewSurvivorStore(logger *zap.Logger, opts ...Option) *SurvivorStore {
	s := &SurvivorStore{
		entries: make(map[string]*entry),
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ranked = ranking.Rank(s.recordsLocked())
	return s
}

// OnChange 注册排序结果变更回调
func (s *SurvivorStore) OnChange(l Listener) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// mutate 执行变更；fn 返回 false 表示无变化，不重排也不通知
func (s *SurvivorStore) mutate(fn func() bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.ranked = ranking.Rank(s.recordsLocked())
	ranked := s.rankedCopyLocked()
	s.mu.Unlock()

	for _, l := range s.listeners {
		l(ranked)
	}
}

func (s *SurvivorStore) insert(rec models.SurvivorRecord) *entry {
	s.nextSeq++
	e := &entry{rec: rec, seq: s.nextSeq}
	s.entries[rec.ID] = e
	return e
}

// Merge 合并 REST 快照，返回新出现的记录 ID
//
// 已存在的记录只覆盖 REST 字段；快照中缺失的记录不删除（删除只能显式进行）
func (s *SurvivorStore) Merge(snapshot []models.SurvivorRecord) []string {
	var added []string
	s.mutate(func() bool {
		changed := false
		for _, in := range snapshot {
			if in.ID == "" {
				continue
			}
			e, ok := s.entries[in.ID]
			if !ok {
				s.insert(newFromSnapshot(in, s.now()))
				added = append(added, in.ID)
				changed = true
				continue
			}
			if e.rec.Placeholder {
				continue
			}
			if in.DetectionMethod != "" && in.DetectionMethod != e.rec.DetectionMethod {
				s.logger.Warn("Ignoring detection method change from snapshot",
					zap.String("survivor_id", in.ID),
					zap.String("current", string(e.rec.DetectionMethod)),
					zap.String("incoming", string(in.DetectionMethod)),
				)
			}
			if mergeRESTFields(&e.rec, in) {
				changed = true
			}
		}
		return changed
	})
	return added
}

// newFromSnapshot REST 首次出现的记录：实时字段清空，CCTV 记录视为刚刚看到
func newFromSnapshot(in models.SurvivorRecord, now time.Time) models.SurvivorRecord {
	rec := models.SurvivorRecord{
		ID:              in.ID,
		Location:        in.Location,
		Floor:           in.Floor,
		Room:            in.Room,
		Status:          in.Status,
		DetectionMethod: in.DetectionMethod,
		RescueStatus:    in.RescueStatus,
	}
	if rec.DetectionMethod == "" {
		rec.DetectionMethod = models.DetectionCCTV
	}
	if rec.DetectionMethod == models.DetectionCCTV {
		t := now
		rec.LastCctvDetectedAt = &t
	}
	return rec
}

func mergeRESTFields(dst *models.SurvivorRecord, in models.SurvivorRecord) bool {
	changed := dst.Location != in.Location ||
		dst.Floor != in.Floor ||
		dst.Room != in.Room ||
		dst.Status != in.Status ||
		dst.RescueStatus != in.RescueStatus
	dst.Location = in.Location
	dst.Floor = in.Floor
	dst.Room = in.Room
	dst.Status = in.Status
	dst.RescueStatus = in.RescueStatus
	return changed
}

// Seed 用 REST 查询到的初值填充实时字段，实时通道已送达的字段不覆盖
func (s *SurvivorStore) Seed(id string, seed models.Seed) error {
	var err error
	s.mutate(func() bool {
		e, ok := s.entries[id]
		if !ok {
			err = ErrNotFound
			return false
		}
		changed := false
		if seed.RiskScore != nil && !e.scoreLive {
			e.rec.RiskScore = *seed.RiskScore
			changed = true
		}
		if seed.Detection != nil && !e.detectionLive {
			applyDetectionFields(&e.rec, seed.Detection)
			changed = true
		}
		return changed
	})
	return err
}

// ApplyScoreUpdate 实时风险分更新
func (s *SurvivorStore) ApplyScoreUpdate(id string, score float64) error {
	var err error
	s.mutate(func() bool {
		e, ok := s.entries[id]
		if !ok {
			err = ErrNotFound
			return false
		}
		e.scoreLive = true
		e.rec.RiskScore = score
		return true
	})
	return err
}

// ApplyAttributePatch 属性补丁浅合并；不触碰检测状态，已有的 WiFi 传感器 ID 不会被清空
func (s *SurvivorStore) ApplyAttributePatch(id string, patch models.AttributePatch) error {
	var err error
	s.mutate(func() bool {
		e, ok := s.entries[id]
		if !ok {
			err = ErrNotFound
			return false
		}
		r := &e.rec
		if patch.Location != nil {
			r.Location = *patch.Location
		}
		if patch.Floor != nil {
			r.Floor = *patch.Floor
		}
		if patch.Room != nil {
			r.Room = *patch.Room
		}
		if patch.Status != nil {
			r.Status = *patch.Status
		}
		if patch.RescueStatus != nil {
			r.RescueStatus = *patch.RescueStatus
		}
		if patch.WifiSensorID != nil && *patch.WifiSensorID != "" {
			sensor := *patch.WifiSensorID
			r.WifiSensorID = &sensor
		}
		return true
	})
	return err
}

// ApplyDetectionEvent 实时检测事件
// CCTV 事件到达本身就是存活证据，无论内容如何都刷新 LastCctvDetectedAt
func (s *SurvivorStore) ApplyDetectionEvent(id string, det *models.Detection) error {
	if det == nil {
		return errors.New("nil detection")
	}
	var err error
	s.mutate(func() bool {
		e, ok := s.entries[id]
		if !ok {
			err = ErrNotFound
			return false
		}
		e.detectionLive = true
		applyDetectionFields(&e.rec, det)
		if det.IsCCTV() || (det.DetectionType == "" && e.rec.DetectionMethod == models.DetectionCCTV) {
			t := s.now()
			e.rec.LastCctvDetectedAt = &t
		}
		return true
	})
	return err
}

func applyDetectionFields(r *models.SurvivorRecord, det *models.Detection) {
	d := *det
	r.LastDetection = &d
	if d.DetectedStatus != "" {
		label := d.DetectedStatus
		r.PoseLabel = &label
	}
	if d.Confidence != nil {
		c := *d.Confidence
		r.PoseConfidence = &c
	}
	if d.WifiSensorID != nil {
		sensor := formatID(*d.WifiSensorID)
		r.WifiSensorID = &sensor
	}
}

// ApplyWifiSignal WiFi 信号：更新该传感器下所有记录的探测标志，返回受影响的记录数
// 只有 detected=true 时才刷新 LastSurvivorDetectedAt，false 信号不会抹掉之前的时间
func (s *SurvivorStore) ApplyWifiSignal(sensorID string, sig models.WifiSignal) int {
	matched := 0
	s.mutate(func() bool {
		now := s.now()
		for _, e := range s.entries {
			if e.rec.SensorID() != sensorID {
				continue
			}
			matched++
			e.rec.CurrentSurvivorDetected = sig.SurvivorDetected
			if sig.SurvivorDetected {
				t := now
				e.rec.LastSurvivorDetectedAt = &t
			}
			sample := sig
			e.rec.WifiRealtime = &sample
		}
		return matched > 0
	})
	return matched
}

// UpdateRescueStatus 操作员派遣成功后更新救援状态
func (s *SurvivorStore) UpdateRescueStatus(id string, status models.RescueStatus) error {
	var err error
	s.mutate(func() bool {
		e, ok := s.entries[id]
		if !ok {
			err = ErrNotFound
			return false
		}
		e.rec.RescueStatus = status
		return true
	})
	return err
}

// Remove 删除记录；固定/占位记录拒绝删除。被选中的记录删除后清除选择
func (s *SurvivorStore) Remove(id string) error {
	var err error
	s.mutate(func() bool {
		e, ok := s.entries[id]
		if !ok {
			err = ErrNotFound
			return false
		}
		if e.rec.Pinned || e.rec.Placeholder {
			err = ErrPinnedRecord
			return false
		}
		delete(s.entries, id)
		if s.selected == id {
			s.selected = ""
		}
		return true
	})
	return err
}

// Select 设置当前选中的记录（空字符串表示取消选择）
func (s *SurvivorStore) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.selected = ""
		return nil
	}
	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	s.selected = id
	return nil
}

// Selected 当前选中的记录
func (s *SurvivorStore) Selected() (models.SurvivorRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == "" {
		return models.SurvivorRecord{}, false
	}
	return s.findRankedLocked(s.selected)
}

// Get 按 ID 获取记录（包含 rank）
func (s *SurvivorStore) Get(id string) (models.SurvivorRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findRankedLocked(id)
}

func (s *SurvivorStore) findRankedLocked(id string) (models.SurvivorRecord, bool) {
	for _, r := range s.ranked {
		if r.ID == id {
			return r, true
		}
	}
	// 被去重隐藏的记录没有 rank
	if e, ok := s.entries[id]; ok {
		rec := e.rec
		rec.Rank = 0
		return rec, true
	}
	return models.SurvivorRecord{}, false
}

// Ranked 当前排序结果（副本）
func (s *SurvivorStore) Ranked() []models.SurvivorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rankedCopyLocked()
}

// Records 所有记录（含被去重隐藏的），按首次出现顺序
func (s *SurvivorStore) Records() []models.SurvivorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recordsLocked()
}

// Len 记录数
func (s *SurvivorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *SurvivorStore) rankedCopyLocked() []models.SurvivorRecord {
	out := make([]models.SurvivorRecord, len(s.ranked))
	copy(out, s.ranked)
	return out
}

func (s *SurvivorStore) recordsLocked() []models.SurvivorRecord {
	list := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })

	out := make([]models.SurvivorRecord, 0, len(list))
	for _, e := range list {
		out = append(out, e.rec)
	}
	return out
}
