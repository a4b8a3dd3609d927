package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rescue-console/internal/models"
)

func record(id string, method models.DetectionMethod, sensor string) models.SurvivorRecord {
	r := models.SurvivorRecord{ID: id, DetectionMethod: method}
	if sensor != "" {
		r.WifiSensorID = &sensor
	}
	return r
}

func TestDesiredKeys(t *testing.T) {
	pinned := record("pinned-wifi-1", models.DetectionWifi, "1")
	pinned.Placeholder = true
	pinned.Pinned = true

	keys := DesiredKeys([]models.SurvivorRecord{
		record("5", models.DetectionCCTV, ""),
		record("6", models.DetectionWifi, "1"),
		pinned,
	})

	assert.Len(t, keys, 7)
	assert.Contains(t, keys, Key{ID: "5", Kind: KindScores})
	assert.Contains(t, keys, Key{ID: "5", Kind: KindAttributes})
	assert.Contains(t, keys, Key{ID: "5", Kind: KindDetections})
	assert.Contains(t, keys, Key{ID: "1", Kind: KindSignal})
	assert.NotContains(t, keys, Key{ID: "pinned-wifi-1", Kind: KindScores})
}

func TestKeyDestination(t *testing.T) {
	assert.Equal(t, "/topic/survivor/5/scores", Key{ID: "5", Kind: KindScores}.Destination())
	assert.Equal(t, "/topic/survivor/5", Key{ID: "5", Kind: KindAttributes}.Destination())
	assert.Equal(t, "/topic/survivor/5/detections", Key{ID: "5", Kind: KindDetections}.Destination())
	assert.Equal(t, "/topic/wifi-sensor/7/signal", Key{ID: "7", Kind: KindSignal}.Destination())
}

func TestTracker_ReconcileDiffs(t *testing.T) {
	store := newFakeStore()
	tr := NewTracker(store, nil, zap.NewNop())
	session := newFakeSession()
	tr.Attach(session)

	tr.Reconcile(DesiredKeys([]models.SurvivorRecord{record("1", models.DetectionCCTV, ""), record("2", models.DetectionCCTV, "")}))
	assert.Equal(t, 6, session.subscribeCount())

	// 只新增 3、移除 1，2 的订阅保持不变
	tr.Reconcile(DesiredKeys([]models.SurvivorRecord{record("2", models.DetectionCCTV, ""), record("3", models.DetectionCCTV, "")}))
	assert.Equal(t, 9, session.subscribeCount())

	active := session.activeDestinations()
	assert.Len(t, active, 6)
	assert.True(t, active["/topic/survivor/2/scores"])
	assert.True(t, active["/topic/survivor/3/detections"])
	assert.False(t, active["/topic/survivor/1"])
	assert.Len(t, tr.Active(), 6)

	tr.Detach()
	assert.Empty(t, session.activeDestinations())
	assert.Empty(t, tr.Active())
}

func TestTracker_SignalSubscriptionIsIdempotent(t *testing.T) {
	tr := NewTracker(newFakeStore(), nil, zap.NewNop())
	session := newFakeSession()
	tr.Attach(session)

	records := []models.SurvivorRecord{record("1", models.DetectionWifi, "7"), record("2", models.DetectionWifi, "7")}
	tr.Reconcile(DesiredKeys(records))
	tr.Reconcile(DesiredKeys(records))

	count := 0
	session.mu.Lock()
	for _, d := range session.subscribed {
		if d == "/topic/wifi-sensor/7/signal" {
			count++
		}
	}
	session.mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestTracker_AppliesMessages(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{}
	tr := NewTracker(store, sink, zap.NewNop())
	session := newFakeSession()
	tr.Attach(session)
	tr.Reconcile(DesiredKeys([]models.SurvivorRecord{record("5", models.DetectionCCTV, "7")}))

	require.True(t, session.publish("/topic/survivor/5/scores", `{"finalRiskScore": 7.2}`))
	require.True(t, session.publish("/topic/survivor/5/scores", "not a score"))
	require.True(t, session.publish("/topic/survivor/5/scores", "14.5"))
	require.True(t, session.publish("/topic/survivor/5/detections", `{"id":3,"cctvId":2}`))
	require.True(t, session.publish("/topic/wifi-sensor/7/signal", `{"sensor_id":7,"survivor_detected":true}`))

	require.Eventually(t, func() bool {
		return len(store.scoreCalls()) == 2 && store.detection("5") != nil && sink.count("7") == 1
	}, time.Second, 5*time.Millisecond)

	// 同一订阅内保持顺序，非法消息被丢弃
	assert.Equal(t, []scoreCall{{"5", 7.2}, {"5", 14.5}}, store.scoreCalls())
	sig, ok := store.signal("7")
	require.True(t, ok)
	assert.True(t, sig.SurvivorDetected)

	tr.Detach()
}

func TestTracker_ReconcileWithoutSessionOnlyRecordsDesired(t *testing.T) {
	tr := NewTracker(newFakeStore(), nil, zap.NewNop())
	tr.Reconcile(DesiredKeys([]models.SurvivorRecord{record("1", models.DetectionCCTV, "")}))
	assert.Empty(t, tr.Active())

	session := newFakeSession()
	tr.Attach(session)
	assert.Len(t, tr.Active(), 3)
	tr.Detach()
}
