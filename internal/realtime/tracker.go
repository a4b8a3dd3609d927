package realtime

import (
	"rescue-console/internal/models"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Store 实时消息写入的目标
type Store interface {
	ApplyScoreUpdate(id string, score float64) error
	ApplyAttributePatch(id string, patch models.AttributePatch) error
	ApplyDetectionEvent(id string, det *models.Detection) error
	ApplyWifiSignal(sensorID string, sig models.WifiSignal) int
}

// SignalSink 接收 WiFi 信号样本（信号图窗口）
type SignalSink interface {
	Append(sensorID string, sig models.WifiSignal)
}

// DesiredKeys 根据当前记录计算应有的订阅集合
// 占位记录不订阅记录主题；所有带传感器 ID 的记录（包括固定传感器）订阅信号主题
func DesiredKeys(records []models.SurvivorRecord) map[Key]struct{} {
	keys := make(map[Key]struct{}, len(records)*3)
	for _, r := range records {
		if !r.Placeholder {
			keys[Key{ID: r.ID, Kind: KindScores}] = struct{}{}
			keys[Key{ID: r.ID, Kind: KindAttributes}] = struct{}{}
			keys[Key{ID: r.ID, Kind: KindDetections}] = struct{}{}
		}
		if sensor := r.SensorID(); sensor != "" {
			keys[Key{ID: sensor, Kind: KindSignal}] = struct{}{}
		}
	}
	return keys
}

// Tracker 维护当前连接上的订阅集合，并把消息应用到 Store
type Tracker struct {
	store  Store
	sink   SignalSink
	logger *zap.Logger

	mu      sync.Mutex
	session Session
	active  map[Key]Subscription
	desired map[Key]struct{}
	wg      sync.WaitGroup
}

// NewTracker 创建订阅跟踪器；sink 可以为 nil
func NewTracker(store Store, sink SignalSink, logger *zap.Logger) *Tracker {
	return &Tracker{
		store:   store,
		sink:    sink,
		logger:  logger,
		active:  make(map[Key]Subscription),
		desired: make(map[Key]struct{}),
	}
}

// Attach 绑定新连接并按当前期望集合全量订阅
func (t *Tracker) Attach(session Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = session
	t.active = make(map[Key]Subscription)
	t.applyLocked()
}

// Detach 连接断开：所有订阅作废
func (t *Tracker) Detach() {
	t.mu.Lock()
	for key, sub := range t.active {
		_ = sub.Unsubscribe()
		delete(t.active, key)
	}
	t.session = nil
	t.mu.Unlock()
	t.wg.Wait()
}

// Reconcile 设置期望订阅集合，只对差异部分订阅/退订
func (t *Tracker) Reconcile(desired map[Key]struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.desired = desired
	t.applyLocked()
}

func (t *Tracker) applyLocked() {
	if t.session == nil {
		return
	}
	for key, sub := range t.active {
		if _, ok := t.desired[key]; ok {
			continue
		}
		if err := sub.Unsubscribe(); err != nil {
			t.logger.Warn("Failed to unsubscribe", zap.String("destination", sub.Destination()), zap.Error(err))
		}
		delete(t.active, key)
	}
	for key := range t.desired {
		if _, ok := t.active[key]; ok {
			continue
		}
		sub, err := t.session.Subscribe(key.Destination())
		if err != nil {
			// 连接已断开：等待重连后全量重订
			t.logger.Warn("Failed to subscribe", zap.String("destination", key.Destination()), zap.Error(err))
			return
		}
		t.active[key] = sub
		t.wg.Add(1)
		go t.consume(key, sub)
	}
}

// Active 当前生效的订阅键（排序后）
func (t *Tracker) Active() []Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]Key, 0, len(t.active))
	for k := range t.active {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// consume 每个订阅一个 goroutine，按到达顺序处理
func (t *Tracker) consume(key Key, sub Subscription) {
	defer t.wg.Done()
	for {
		select {
		case msg := <-sub.C():
			t.handle(key, msg)
		case <-sub.Done():
			return
		}
	}
}

func (t *Tracker) handle(key Key, msg Message) {
	var err error
	switch key.Kind {
	case KindScores:
		score, ok := ParseScore(msg.Body)
		if !ok {
			t.logger.Warn("Dropping unparsable score message",
				zap.String("survivor_id", key.ID),
				zap.ByteString("body", msg.Body),
			)
			return
		}
		err = t.store.ApplyScoreUpdate(key.ID, score)

	case KindAttributes:
		var patch models.AttributePatch
		if patch, err = DecodeAttributePatch(msg.Body); err == nil {
			err = t.store.ApplyAttributePatch(key.ID, patch)
		}

	case KindDetections:
		var det *models.Detection
		if det, err = DecodeDetection(msg.Body); err == nil {
			err = t.store.ApplyDetectionEvent(key.ID, det)
		}

	case KindSignal:
		var sig models.WifiSignal
		if sig, err = DecodeWifiSignal(msg.Body); err == nil {
			t.store.ApplyWifiSignal(key.ID, sig)
			if t.sink != nil {
				t.sink.Append(key.ID, sig)
			}
		}
	}
	if err != nil {
		t.logger.Warn("Dropping realtime message",
			zap.String("key", key.String()),
			zap.String("destination", msg.Destination),
			zap.Error(err),
		)
	}
}
