package models

import "time"

// DetectionMethod 探测方式，记录生命周期内不可变
type DetectionMethod string

const (
	DetectionWifi DetectionMethod = "wifi"
	DetectionCCTV DetectionMethod = "cctv"
)

// RescueStatus 救援状态（界面语义）
type RescueStatus string

const (
	RescuePending    RescueStatus = "pending"
	RescueDispatched RescueStatus = "dispatched"
	RescueRescued    RescueStatus = "rescued"
)

// SurvivorStatus 姿态/状态标签（CCTV 语义）
type SurvivorStatus string

const (
	StatusConscious   SurvivorStatus = "conscious"
	StatusUnconscious SurvivorStatus = "unconscious"
	StatusInjured     SurvivorStatus = "injured"
	StatusTrapped     SurvivorStatus = "trapped"
	StatusLying       SurvivorStatus = "lying"
	StatusStanding    SurvivorStatus = "standing"
	StatusFalling     SurvivorStatus = "falling"
	StatusCrawling    SurvivorStatus = "crawling"
	StatusSitting     SurvivorStatus = "sitting"
)

// SurvivorRecord 一个被跟踪的生存者（一个疑似有人的物理位置）
//
// 字段归属：
//   - REST 快照：ID、Location/Floor/Room、Status、DetectionMethod、RescueStatus
//   - 实时通道：RiskScore、LastDetection、PoseLabel/PoseConfidence、WifiSensorID、
//     CurrentSurvivorDetected、LastSurvivorDetectedAt、LastCctvDetectedAt、WifiRealtime
//   - 排序引擎：Rank
type SurvivorRecord struct {
	ID        string  `json:"id"`
	Rank      int     `json:"rank"` // 0 = 未排名（WiFi）
	RiskScore float64 `json:"risk_score"`

	Location string         `json:"location"`
	Floor    int            `json:"floor"`
	Room     string         `json:"room"`
	Status   SurvivorStatus `json:"status"`

	DetectionMethod DetectionMethod `json:"detection_method"`
	RescueStatus    RescueStatus    `json:"rescue_status"`

	LastDetection  *Detection `json:"last_detection,omitempty"`
	PoseLabel      *string    `json:"pose_label,omitempty"`
	PoseConfidence *float64   `json:"pose_confidence,omitempty"`

	WifiSensorID            *string     `json:"wifi_sensor_id,omitempty"`
	CurrentSurvivorDetected bool        `json:"current_survivor_detected"`
	LastSurvivorDetectedAt  *time.Time  `json:"last_survivor_detected_at,omitempty"`
	WifiRealtime            *WifiSignal `json:"wifi_realtime,omitempty"`

	LastCctvDetectedAt *time.Time `json:"last_cctv_detected_at,omitempty"`

	// Placeholder 合成记录（摄像头占位、固定传感器），不对应后端实体
	Placeholder bool `json:"placeholder"`
	// Pinned 固定传感器卡片，禁止手动和自动删除
	Pinned bool `json:"pinned"`
}

// CctvID 返回最近一次检测对应的摄像头 ID
func (r *SurvivorRecord) CctvID() (int64, bool) {
	if r.LastDetection == nil || r.LastDetection.CctvID == nil {
		return 0, false
	}
	return *r.LastDetection.CctvID, true
}

// SensorID 返回 WiFi 传感器 ID（空字符串表示无）
func (r *SurvivorRecord) SensorID() string {
	if r.WifiSensorID == nil {
		return ""
	}
	return *r.WifiSensorID
}

// WifiDetectionStatus WiFi 探测状态
type WifiDetectionStatus string

const (
	WifiDetected WifiDetectionStatus = "detected"
	WifiRecent   WifiDetectionStatus = "recent"
	WifiNone     WifiDetectionStatus = "none"
)

// RecentWifiWindow "最近探测" 的时间窗口
const RecentWifiWindow = 10 * time.Minute

// WifiStatus 计算 WiFi 探测状态；没有传感器时返回空字符串
// false 信号不会清除 LastSurvivorDetectedAt，所以 10 分钟内仍显示 recent
func (r *SurvivorRecord) WifiStatus(now time.Time) WifiDetectionStatus {
	if r.WifiSensorID == nil {
		return ""
	}
	if r.CurrentSurvivorDetected {
		return WifiDetected
	}
	if r.LastSurvivorDetectedAt != nil && now.Sub(*r.LastSurvivorDetectedAt) < RecentWifiWindow {
		return WifiRecent
	}
	return WifiNone
}

// RiskLevel 风险等级：high >= 18, medium >= 12, 其余 low
func RiskLevel(score float64) string {
	switch {
	case score >= 18:
		return "high"
	case score >= 12:
		return "medium"
	default:
		return "low"
	}
}
