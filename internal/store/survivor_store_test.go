package store

import (
	"rescue-console/internal/models"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, opts ...Option) (*SurvivorStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewSurvivorStore(zap.NewNop(), opts...), clock
}

func restRecord(id string, method models.DetectionMethod) models.SurvivorRecord {
	return models.SurvivorRecord{
		ID:              id,
		Location:        "Building A",
		Floor:           2,
		Room:            "201",
		Status:          models.StatusTrapped,
		DetectionMethod: method,
		RescueStatus:    models.RescuePending,
	}
}

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }

func TestMerge_NewRecordDefaults(t *testing.T) {
	s, clock := newTestStore(t)

	added := s.Merge([]models.SurvivorRecord{
		restRecord("5", models.DetectionCCTV),
		restRecord("9", models.DetectionWifi),
	})
	assert.Equal(t, []string{"5", "9"}, added)

	cctv, ok := s.Get("5")
	require.True(t, ok)
	assert.Equal(t, 0.0, cctv.RiskScore)
	assert.Nil(t, cctv.LastDetection)
	require.NotNil(t, cctv.LastCctvDetectedAt)
	assert.Equal(t, clock.Now(), *cctv.LastCctvDetectedAt)

	wifi, ok := s.Get("9")
	require.True(t, ok)
	assert.Nil(t, wifi.LastCctvDetectedAt)
	assert.False(t, wifi.CurrentSurvivorDetected)
	assert.Nil(t, wifi.LastSurvivorDetectedAt)
}

func TestMerge_IgnoresRealtimeFieldsInSnapshot(t *testing.T) {
	s, _ := newTestStore(t)

	in := restRecord("5", models.DetectionCCTV)
	in.RiskScore = 42
	in.LastDetection = &models.Detection{ID: 1}
	s.Merge([]models.SurvivorRecord{in})

	rec, _ := s.Get("5")
	assert.Equal(t, 0.0, rec.RiskScore)
	assert.Nil(t, rec.LastDetection)
}

func TestMerge_NeverDeletes(t *testing.T) {
	s, _ := newTestStore(t)
	s.Merge([]models.SurvivorRecord{restRecord("1", models.DetectionCCTV), restRecord("2", models.DetectionCCTV)})

	s.Merge([]models.SurvivorRecord{restRecord("1", models.DetectionCCTV)})

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("2")
	assert.True(t, ok)
}

func TestMerge_DetectionMethodImmutable(t *testing.T) {
	s, _ := newTestStore(t)
	s.Merge([]models.SurvivorRecord{restRecord("1", models.DetectionCCTV)})

	s.Merge([]models.SurvivorRecord{restRecord("1", models.DetectionWifi)})

	rec, _ := s.Get("1")
	assert.Equal(t, models.DetectionCCTV, rec.DetectionMethod)
}

func TestMerge_UpdatesRESTOwnedFields(t *testing.T) {
	s, _ := newTestStore(t)
	s.Merge([]models.SurvivorRecord{restRecord("1", models.DetectionCCTV)})

	in := restRecord("1", models.DetectionCCTV)
	in.Location = "Building B"
	in.Status = models.StatusLying
	in.RescueStatus = models.RescueDispatched
	s.Merge([]models.SurvivorRecord{in})

	rec, _ := s.Get("1")
	assert.Equal(t, "Building B", rec.Location)
	assert.Equal(t, models.StatusLying, rec.Status)
	assert.Equal(t, models.RescueDispatched, rec.RescueStatus)
}

func TestRESTWebSocketRace_DetectionSurvivesMerge(t *testing.T) {
	s, _ := newTestStore(t)
	s.Merge([]models.SurvivorRecord{restRecord("5", models.DetectionCCTV)})

	event := &models.Detection{ID: 77, DetectionType: "CCTV", CctvID: i64(2), DetectedStatus: "LYING_DOWN", Confidence: f64(0.9)}
	require.NoError(t, s.ApplyDetectionEvent("5", event))

	// REST 快照仍然没有检测数据
	s.Merge([]models.SurvivorRecord{restRecord("5", models.DetectionCCTV)})

	rec, _ := s.Get("5")
	require.NotNil(t, rec.LastDetection)
	assert.Equal(t, int64(77), rec.LastDetection.ID)
	assert.Equal(t, int64(2), *rec.LastDetection.CctvID)
	require.NotNil(t, rec.PoseLabel)
	assert.Equal(t, "LYING_DOWN", *rec.PoseLabel)
}

func TestFieldOwnership_InterleavedOperations(t *testing.T) {
	s, clock := newTestStore(t)
	s.Merge([]models.SurvivorRecord{restRecord("3", models.DetectionWifi)})

	require.NoError(t, s.ApplyScoreUpdate("3", 8.5))
	require.NoError(t, s.ApplyDetectionEvent("3", &models.Detection{ID: 1, DetectionType: "WIFI", WifiSensorID: i64(7)}))
	s.Merge([]models.SurvivorRecord{restRecord("3", models.DetectionWifi)})

	clock.Advance(time.Second)
	detectedAt := clock.Now()
	assert.Equal(t, 1, s.ApplyWifiSignal("7", models.WifiSignal{SensorID: 7, SurvivorDetected: true}))
	s.Merge([]models.SurvivorRecord{restRecord("3", models.DetectionWifi)})

	require.NoError(t, s.ApplyScoreUpdate("3", 12))
	s.Merge([]models.SurvivorRecord{restRecord("3", models.DetectionWifi)})

	rec, _ := s.Get("3")
	assert.Equal(t, 12.0, rec.RiskScore)
	require.NotNil(t, rec.LastDetection)
	assert.Equal(t, int64(1), rec.LastDetection.ID)
	assert.Equal(t, "7", rec.SensorID())
	assert.True(t, rec.CurrentSurvivorDetected)
	require.NotNil(t, rec.LastSurvivorDetectedAt)
	assert.Equal(t, detectedAt, *rec.LastSurvivorDetectedAt)
}

func TestApplyWifiSignal_FalseDoesNotEraseTimestamp(t *testing.T) {
	s, clock := newTestStore(t)
	s.Merge([]models.SurvivorRecord{restRecord("3", models.DetectionWifi)})
	require.NoError(t, s.ApplyAttributePatch("3", models.AttributePatch{WifiSensorID: str("7")}))

	t1 := clock.Now()
	s.ApplyWifiSignal("7", models.WifiSignal{SensorID: 7, SurvivorDetected: true})

	clock.Advance(5 * time.Second)
	s.ApplyWifiSignal("7", models.WifiSignal{SensorID: 7, SurvivorDetected: false})

	rec, _ := s.Get("3")
	assert.False(t, rec.CurrentSurvivorDetected)
	require.NotNil(t, rec.LastSurvivorDetectedAt)
	assert.Equal(t, t1, *rec.LastSurvivorDetectedAt)
	assert.Equal(t, models.WifiRecent, rec.WifiStatus(clock.Now()))
}

func TestApplyWifiSignal_UnknownSensor(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Equal(t, 0, s.ApplyWifiSignal("99", models.WifiSignal{SurvivorDetected: true}))
}

func TestApplyAttributePatch_PreservesDetectionAndSensor(t *testing.T) {
	s, _ := newTestStore(t)
	s.Merge([]models.SurvivorRecord{restRecord("3", models.DetectionWifi)})
	require.NoError(t, s.ApplyDetectionEvent("3", &models.Detection{ID: 4, WifiSensorID: i64(7)}))

	floor := 5
	require.NoError(t, s.ApplyAttributePatch("3", models.AttributePatch{Floor: &floor}))

	rec, _ := s.Get("3")
	assert.Equal(t, 5, rec.Floor)
	assert.Equal(t, "Building A", rec.Location)
	assert.Equal(t, "7", rec.SensorID())
	require.NotNil(t, rec.LastDetection)
	assert.Equal(t, int64(4), rec.LastDetection.ID)

	require.NoError(t, s.ApplyAttributePatch("3", models.AttributePatch{WifiSensorID: str("")}))
	rec, _ = s.Get("3")
	assert.Equal(t, "7", rec.SensorID())
}

func TestApplyDetectionEvent_StampsCCTVLiveness(t *testing.T) {
	s, clock := newTestStore(t)
	s.Merge([]models.SurvivorRecord{restRecord("5", models.DetectionCCTV)})

	clock.Advance(30 * time.Second)
	require.NoError(t, s.ApplyDetectionEvent("5", &models.Detection{CctvID: i64(1)}))

	rec, _ := s.Get("5")
	require.NotNil(t, rec.LastCctvDetectedAt)
	assert.Equal(t, clock.Now(), *rec.LastCctvDetectedAt)
}

func TestApplyDetectionEvent_WifiDoesNotStampCCTV(t *testing.T) {
	s, _ := newTestStore(t)
	s.Merge([]models.SurvivorRecord{restRecord("3", models.DetectionWifi)})

	require.NoError(t, s.ApplyDetectionEvent("3", &models.Detection{DetectionType: "WIFI", WifiSensorID: i64(2)}))

	rec, _ := s.Get("3")
	assert.Nil(t, rec.LastCctvDetectedAt)
}

func TestApplyToUnknownID(t *testing.T) {
	s, _ := newTestStore(t)
	assert.ErrorIs(t, s.ApplyScoreUpdate("x", 1), ErrNotFound)
	assert.ErrorIs(t, s.ApplyAttributePatch("x", models.AttributePatch{}), ErrNotFound)
	assert.ErrorIs(t, s.ApplyDetectionEvent("x", &models.Detection{}), ErrNotFound)
	assert.ErrorIs(t, s.Remove("x"), ErrNotFound)
}

func TestSeed_DoesNotOverwriteLiveValues(t *testing.T) {
	s, _ := newTestStore(t)
	s.Merge([]models.SurvivorRecord{restRecord("5", models.DetectionCCTV), restRecord("6", models.DetectionCCTV)})

	require.NoError(t, s.ApplyScoreUpdate("5", 15))
	require.NoError(t, s.Seed("5", models.Seed{RiskScore: f64(3), Detection: &models.Detection{ID: 10, CctvID: i64(4)}}))
	require.NoError(t, s.Seed("6", models.Seed{RiskScore: f64(3)}))

	five, _ := s.Get("5")
	assert.Equal(t, 15.0, five.RiskScore)
	require.NotNil(t, five.LastDetection)
	assert.Equal(t, int64(10), five.LastDetection.ID)

	six, _ := s.Get("6")
	assert.Equal(t, 3.0, six.RiskScore)
}

func TestRemove_ClearsSelection(t *testing.T) {
	s, _ := newTestStore(t)
	s.Merge([]models.SurvivorRecord{restRecord("1", models.DetectionCCTV)})
	require.NoError(t, s.Select("1"))

	require.NoError(t, s.Remove("1"))

	_, ok := s.Selected()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestPinnedSensor(t *testing.T) {
	s, _ := newTestStore(t, WithPinnedSensor("1"))

	ranked := s.Ranked()
	require.Len(t, ranked, 1)
	assert.Equal(t, PinnedID("1"), ranked[0].ID)
	assert.True(t, ranked[0].Pinned)
	assert.ErrorIs(t, s.Remove(PinnedID("1")), ErrPinnedRecord)

	// 真实记录到达后，同一传感器只显示真实记录
	s.Merge([]models.SurvivorRecord{restRecord("3", models.DetectionWifi)})
	require.NoError(t, s.ApplyAttributePatch("3", models.AttributePatch{WifiSensorID: str("1")}))

	ranked = s.Ranked()
	require.Len(t, ranked, 1)
	assert.Equal(t, "3", ranked[0].ID)
	assert.Equal(t, 2, s.Len())
}

func TestRanked_ReRanksAfterScoreUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	s.Merge([]models.SurvivorRecord{
		restRecord("a", models.DetectionCCTV),
		restRecord("b", models.DetectionCCTV),
		restRecord("w", models.DetectionWifi),
	})
	require.NoError(t, s.ApplyScoreUpdate("a", 4))
	require.NoError(t, s.ApplyScoreUpdate("b", 9))

	ranked := s.Ranked()
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"w", "b", "a"}, []string{ranked[0].ID, ranked[1].ID, ranked[2].ID})
	assert.Equal(t, []int{0, 1, 2}, []int{ranked[0].Rank, ranked[1].Rank, ranked[2].Rank})

	b, _ := s.Get("b")
	assert.Equal(t, 1, b.Rank)
}

func TestOnChange_NotifiedOnMutation(t *testing.T) {
	s, _ := newTestStore(t)

	var calls int
	var last []models.SurvivorRecord
	s.OnChange(func(ranked []models.SurvivorRecord) {
		calls++
		last = ranked
	})

	s.Merge([]models.SurvivorRecord{restRecord("1", models.DetectionCCTV)})
	require.NoError(t, s.ApplyScoreUpdate("1", 2))
	// 无变化的合并不通知
	s.Merge([]models.SurvivorRecord{restRecord("1", models.DetectionCCTV)})

	assert.Equal(t, 2, calls)
	require.Len(t, last, 1)
	assert.Equal(t, 2.0, last[0].RiskScore)
}

func TestConcurrentMutations(t *testing.T) {
	s, _ := newTestStore(t)
	s.Merge([]models.SurvivorRecord{restRecord("1", models.DetectionCCTV), restRecord("2", models.DetectionWifi)})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.ApplyScoreUpdate("1", float64(i))
		}(i)
		go func() {
			defer wg.Done()
			s.Merge([]models.SurvivorRecord{restRecord("1", models.DetectionCCTV)})
			_ = s.Ranked()
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, s.Len())
}
