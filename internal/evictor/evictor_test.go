package evictor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rescue-console/internal/models"
	"rescue-console/internal/store"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func cctvRecord(id string, lastSeen *time.Time) models.SurvivorRecord {
	return models.SurvivorRecord{ID: id, DetectionMethod: models.DetectionCCTV, LastCctvDetectedAt: lastSeen}
}

func wifiRecord(id string, detected bool, lastDetected *time.Time) models.SurvivorRecord {
	sensor := "1"
	return models.SurvivorRecord{
		ID:                      id,
		DetectionMethod:         models.DetectionWifi,
		WifiSensorID:            &sensor,
		CurrentSurvivorDetected: detected,
		LastSurvivorDetectedAt:  lastDetected,
	}
}

func TestSelectStale_CCTVTimeoutBoundary(t *testing.T) {
	p := DefaultPolicy()
	records := []models.SurvivorRecord{
		cctvRecord("old", ago(p.CCTVTimeout+time.Second)),
		cctvRecord("fresh", ago(p.CCTVTimeout-time.Second)),
		cctvRecord("never", nil),
	}

	assert.Equal(t, []string{"old"}, SelectStale(records, now, p))
}

func TestSelectStale_ConfigurableTimeout(t *testing.T) {
	p := Policy{CCTVTimeout: 60 * time.Second}
	records := []models.SurvivorRecord{cctvRecord("a", ago(30*time.Second)), cctvRecord("b", ago(61*time.Second))}

	assert.Equal(t, []string{"b"}, SelectStale(records, now, p))
}

func TestSelectStale_WifiDisabledByDefault(t *testing.T) {
	records := []models.SurvivorRecord{wifiRecord("w", false, ago(time.Hour))}
	assert.Empty(t, SelectStale(records, now, DefaultPolicy()))
}

func TestSelectStale_WifiPolicyEnabled(t *testing.T) {
	p := DefaultPolicy()
	p.WifiEnabled = true
	records := []models.SurvivorRecord{
		wifiRecord("stale", false, ago(61*time.Second)),
		wifiRecord("recent", false, ago(59*time.Second)),
		wifiRecord("detecting", true, ago(time.Hour)),
		wifiRecord("never", false, nil),
	}

	assert.Equal(t, []string{"stale"}, SelectStale(records, now, p))
}

func TestSelectStale_PinnedExempt(t *testing.T) {
	pinned := cctvRecord("p", ago(time.Hour))
	pinned.Pinned = true
	placeholder := cctvRecord("ph", ago(time.Hour))
	placeholder.Placeholder = true

	assert.Empty(t, SelectStale([]models.SurvivorRecord{pinned, placeholder}, now, DefaultPolicy()))
}

type fakeRemover struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (f *fakeRemover) DeleteSurvivor(ctx context.Context, id string, reason models.DeleteReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id+":"+string(reason))
	if f.fail[id] {
		return errors.New("backend unavailable")
	}
	return nil
}

func TestSweep_RemoteDeleteBeforeLocalRemove(t *testing.T) {
	clock := now
	st := store.NewSurvivorStore(zap.NewNop(), store.WithClock(func() time.Time { return clock }))
	st.Merge([]models.SurvivorRecord{
		{ID: "1", DetectionMethod: models.DetectionCCTV},
		{ID: "2", DetectionMethod: models.DetectionCCTV},
		{ID: "3", DetectionMethod: models.DetectionCCTV},
	})
	require.NoError(t, st.Select("1"))

	// 3 在 5 秒后收到新的检测事件
	clock = now.Add(5 * time.Second)
	require.NoError(t, st.ApplyDetectionEvent("3", &models.Detection{DetectionType: "CCTV"}))

	remover := &fakeRemover{fail: map[string]bool{"2": true}}
	ev := NewEvictor(st, remover, DefaultPolicy(), time.Second, zap.NewNop())
	ev.SetClock(func() time.Time { return now.Add(11 * time.Second) })

	var evicted []string
	ev.OnEvicted(func(ctx context.Context, rec models.SurvivorRecord) { evicted = append(evicted, rec.ID) })

	removed := ev.Sweep(context.Background())

	assert.Equal(t, []string{"1"}, removed)
	assert.Equal(t, []string{"1"}, evicted)
	assert.ElementsMatch(t, []string{"1:TIMEOUT", "2:TIMEOUT"}, remover.calls)

	_, ok := st.Get("1")
	assert.False(t, ok)
	_, ok = st.Get("2")
	assert.True(t, ok, "failed remote delete must keep the record")
	_, ok = st.Get("3")
	assert.True(t, ok)

	_, selected := st.Selected()
	assert.False(t, selected)
}

func TestSweep_PinnedSensorNeverDeleted(t *testing.T) {
	st := store.NewSurvivorStore(zap.NewNop(), store.WithPinnedSensor("1"))
	remover := &fakeRemover{}
	p := DefaultPolicy()
	p.WifiEnabled = true
	ev := NewEvictor(st, remover, p, time.Second, zap.NewNop())
	ev.SetClock(func() time.Time { return time.Now().Add(24 * time.Hour) })

	assert.Empty(t, ev.Sweep(context.Background()))
	assert.Empty(t, remover.calls)
	assert.Equal(t, 1, st.Len())
}

func TestRun_StopsOnCancel(t *testing.T) {
	st := store.NewSurvivorStore(zap.NewNop())
	ev := NewEvictor(st, &fakeRemover{}, DefaultPolicy(), 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ev.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("evictor did not stop")
	}
}
