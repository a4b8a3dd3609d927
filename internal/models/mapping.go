package models

import "strconv"

var statusMap = map[string]SurvivorStatus{
	"CONSCIOUS":   StatusConscious,
	"UNCONSCIOUS": StatusUnconscious,
	"INJURED":     StatusInjured,
	"TRAPPED":     StatusTrapped,
	"LYING_DOWN":  StatusLying,
	"STANDING":    StatusStanding,
	"FALLING":     StatusFalling,
	"CRAWLING":    StatusCrawling,
	"SITTING":     StatusSitting,
}

// MapStatus 后端状态 -> 界面状态，未知值按 standing 处理
func MapStatus(s string) SurvivorStatus {
	if v, ok := statusMap[s]; ok {
		return v
	}
	return StatusStanding
}

// MapDetectionMethod 后端探测方式 -> 界面探测方式
// 未分类的记录按 cctv 处理（与占位记录一致）
func MapDetectionMethod(s string) DetectionMethod {
	if s == "WIFI" {
		return DetectionWifi
	}
	return DetectionCCTV
}

// MapRescueStatus 后端救援状态 -> 界面救援状态（CANCELED 视为 pending）
func MapRescueStatus(s string) RescueStatus {
	switch BackendRescueStatus(s) {
	case BackendInRescue:
		return RescueDispatched
	case BackendRescued:
		return RescueRescued
	default:
		return RescuePending
	}
}

// ToSurvivorRecord 将后端实体转换为 REST 字段的记录（实时字段为空）
func (a *APISurvivor) ToSurvivorRecord() SurvivorRecord {
	rec := SurvivorRecord{
		ID:              strconv.FormatInt(a.ID, 10),
		Location:        "Unknown",
		Room:            "-",
		Status:          MapStatus(a.CurrentStatus),
		DetectionMethod: MapDetectionMethod(a.DetectionMethod),
		RescueStatus:    MapRescueStatus(a.RescueStatus),
	}
	if a.Location != nil {
		if a.Location.BuildingName != "" {
			rec.Location = a.Location.BuildingName
		}
		rec.Floor = a.Location.Floor
		switch {
		case a.Location.FullAddress != "":
			rec.Room = a.Location.FullAddress
		case a.Location.RoomNumber != "":
			rec.Room = a.Location.RoomNumber
		}
	}
	return rec
}
