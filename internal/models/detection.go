package models

import "time"

// Detection 检测事件（姿态/摄像头 或 WiFi 关联）
type Detection struct {
	ID               int64    `json:"id"`
	SurvivorID       int64    `json:"survivorId"`
	DetectionType    string   `json:"detectionType,omitempty"` // "CCTV" | "WIFI"
	CctvID           *int64   `json:"cctvId,omitempty"`
	WifiSensorID     *int64   `json:"wifiSensorId,omitempty"`
	DetectedAt       string   `json:"detectedAt,omitempty"`
	DetectedStatus   string   `json:"detectedStatus,omitempty"`
	AIAnalysisResult string   `json:"aiAnalysisResult,omitempty"`
	AIModelVersion   string   `json:"aiModelVersion,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"` // 仅 CCTV
	ImageURL         *string  `json:"imageUrl,omitempty"`
	VideoURL         *string  `json:"videoUrl,omitempty"`
	RawData          string   `json:"rawData,omitempty"`
}

// IsCCTV 判断检测事件是否来自摄像头
// detectionType 缺失时以 cctvId 为准
func (d *Detection) IsCCTV() bool {
	switch d.DetectionType {
	case "CCTV":
		return true
	case "WIFI":
		return false
	}
	return d.CctvID != nil
}

// WifiSignal WiFi CSI 信号样本
type WifiSignal struct {
	SensorID            int64     `json:"sensor_id"`
	Timestamp           string    `json:"timestamp,omitempty"`
	CSIAmplitudeSummary []float64 `json:"csi_amplitude_summary,omitempty"`
	SurvivorDetected    bool      `json:"survivor_detected"`
	SurvivorNumber      string    `json:"survivor_number,omitempty"`
	Confidence          *float64  `json:"confidence,omitempty"`
	AnalysisResult      string    `json:"analysis_result,omitempty"`
	DetectedStatus      string    `json:"detected_status,omitempty"`
}

// AttributePatch 生存者属性补丁（/topic/survivor/{id}）
// 不携带检测状态；nil 字段表示未提供
type AttributePatch struct {
	Location     *string
	Floor        *int
	Room         *string
	Status       *SurvivorStatus
	RescueStatus *RescueStatus
	WifiSensorID *string
}

// Seed REST 补充的实时字段初值，只在实时通道尚未送达时生效
type Seed struct {
	RiskScore *float64
	Detection *Detection
}

// SignalPoint 信号窗口中的一帧
type SignalPoint struct {
	ReceivedAt time.Time `json:"received_at"`
	Amplitudes []float64 `json:"amplitudes"`
}
