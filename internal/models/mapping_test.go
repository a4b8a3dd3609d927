package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToSurvivorRecord_MapsEnums(t *testing.T) {
	a := &APISurvivor{
		ID:              5,
		CurrentStatus:   "LYING_DOWN",
		DetectionMethod: "CCTV",
		RescueStatus:    "IN_RESCUE",
		Location: &APILocation{
			BuildingName: "Main Hall",
			Floor:        3,
			RoomNumber:   "301",
			FullAddress:  "Main Hall 3F 301",
		},
	}

	rec := a.ToSurvivorRecord()

	assert.Equal(t, "5", rec.ID)
	assert.Equal(t, StatusLying, rec.Status)
	assert.Equal(t, DetectionCCTV, rec.DetectionMethod)
	assert.Equal(t, RescueDispatched, rec.RescueStatus)
	assert.Equal(t, "Main Hall", rec.Location)
	assert.Equal(t, 3, rec.Floor)
	assert.Equal(t, "Main Hall 3F 301", rec.Room)
	assert.Zero(t, rec.RiskScore)
	assert.Nil(t, rec.LastDetection)
}

func TestToSurvivorRecord_MissingLocation(t *testing.T) {
	a := &APISurvivor{ID: 7, CurrentStatus: "???", DetectionMethod: "WIFI", RescueStatus: "CANCELED"}

	rec := a.ToSurvivorRecord()

	assert.Equal(t, "Unknown", rec.Location)
	assert.Equal(t, "-", rec.Room)
	assert.Equal(t, StatusStanding, rec.Status)
	assert.Equal(t, DetectionWifi, rec.DetectionMethod)
	assert.Equal(t, RescuePending, rec.RescueStatus)
}

func TestWifiStatus(t *testing.T) {
	now := time.Now()
	sensor := "7"

	rec := SurvivorRecord{}
	assert.Equal(t, WifiDetectionStatus(""), rec.WifiStatus(now))

	rec.WifiSensorID = &sensor
	assert.Equal(t, WifiNone, rec.WifiStatus(now))

	recent := now.Add(-5 * time.Minute)
	rec.LastSurvivorDetectedAt = &recent
	assert.Equal(t, WifiRecent, rec.WifiStatus(now))

	old := now.Add(-11 * time.Minute)
	rec.LastSurvivorDetectedAt = &old
	assert.Equal(t, WifiNone, rec.WifiStatus(now))

	rec.CurrentSurvivorDetected = true
	assert.Equal(t, WifiDetected, rec.WifiStatus(now))
}

func TestDetectionIsCCTV(t *testing.T) {
	cctv := int64(2)
	assert.True(t, (&Detection{DetectionType: "CCTV"}).IsCCTV())
	assert.False(t, (&Detection{DetectionType: "WIFI", CctvID: &cctv}).IsCCTV())
	assert.True(t, (&Detection{CctvID: &cctv}).IsCCTV())
	assert.False(t, (&Detection{}).IsCCTV())
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, "high", RiskLevel(18))
	assert.Equal(t, "medium", RiskLevel(12.5))
	assert.Equal(t, "low", RiskLevel(0))
}
