package models

// 后端 REST 响应结构

// APILocation 位置
type APILocation struct {
	ID           int64  `json:"id,omitempty"`
	BuildingName string `json:"buildingName"`
	Floor        int    `json:"floor"`
	RoomNumber   string `json:"roomNumber"`
	FullAddress  string `json:"fullAddress,omitempty"`
}

// APISurvivor 后端生存者实体
type APISurvivor struct {
	ID              int64        `json:"id"`
	SurvivorNumber  int64        `json:"survivorNumber"`
	Location        *APILocation `json:"location"`
	CurrentStatus   string       `json:"currentStatus"`
	DetectionMethod string       `json:"detectionMethod"` // "WIFI" | "CCTV"
	RescueStatus    string       `json:"rescueStatus"`    // WAITING | IN_RESCUE | RESCUED | CANCELED
}

// PriorityAssessment 风险评估
type PriorityAssessment struct {
	ID                    int64   `json:"id"`
	SurvivorID            int64   `json:"survivorId"`
	FinalRiskScore        float64 `json:"finalRiskScore"`
	StatusScore           float64 `json:"statusScore"`
	EnvironmentScore      float64 `json:"environmentScore"`
	ConfidenceCoefficient float64 `json:"confidenceCoefficient"`
	AssessedAt            string  `json:"assessedAt"`
}

// AIAnalysis AI 分析结果
type AIAnalysis struct {
	SurvivorID                 int64   `json:"survivorId"`
	SurvivorNumber             int64   `json:"survivorNumber"`
	AIAnalysisResult           string  `json:"aiAnalysisResult"`
	LocationID                 int64   `json:"locationId"`
	FullAddress                string  `json:"fullAddress"`
	CurrentStatus              string  `json:"currentStatus"`
	CurrentStatusDescription   string  `json:"currentStatusDescription"`
	DetectionMethod            string  `json:"detectionMethod"`
	DetectionMethodDescription string  `json:"detectionMethodDescription"`
	StatusScore                float64 `json:"statusScore"`
	EnvironmentScore           float64 `json:"environmentScore"`
	ConfidenceCoefficient      float64 `json:"confidenceCoefficient"`
	FinalRiskScore             float64 `json:"finalRiskScore"`
}

// WifiSensor WiFi 传感器
type WifiSensor struct {
	ID           int64        `json:"id"`
	SensorCode   string       `json:"sensorCode"`
	Location     *APILocation `json:"location"`
	IsActive     bool         `json:"isActive"`
	LastActiveAt *string      `json:"lastActiveAt"`
}

// CctvInfo 摄像头
type CctvInfo struct {
	ID           int64        `json:"id"`
	CctvCode     string       `json:"cctvCode"`
	Location     *APILocation `json:"location"`
	IsActive     bool         `json:"isActive"`
	LastActiveAt *string      `json:"lastActiveAt"`
}

// RecentSurvivorRecord 超时归档的生存者快照
type RecentSurvivorRecord struct {
	ID               int64    `json:"id"`
	SurvivorID       int64    `json:"survivorId"`
	SurvivorNumber   int64    `json:"survivorNumber"`
	BuildingName     *string  `json:"buildingName,omitempty"`
	Floor            *int     `json:"floor,omitempty"`
	RoomNumber       *string  `json:"roomNumber,omitempty"`
	FullAddress      *string  `json:"fullAddress,omitempty"`
	LastDetectedAt   *string  `json:"lastDetectedAt,omitempty"`
	LastPose         *string  `json:"lastPose,omitempty"`
	LastRiskScore    *float64 `json:"lastRiskScore,omitempty"`
	DetectionMethod  *string  `json:"detectionMethod,omitempty"`
	CctvID           *int64   `json:"cctvId,omitempty"`
	WifiSensorID     *int64   `json:"wifiSensorId,omitempty"`
	AIAnalysisResult *string  `json:"aiAnalysisResult,omitempty"`
	AISummary        *string  `json:"aiSummary,omitempty"`
	ArchivedAt       string   `json:"archivedAt"`
}

// BackendRescueStatus 后端救援状态枚举
type BackendRescueStatus string

const (
	BackendWaiting  BackendRescueStatus = "WAITING"
	BackendInRescue BackendRescueStatus = "IN_RESCUE"
	BackendRescued  BackendRescueStatus = "RESCUED"
	BackendCanceled BackendRescueStatus = "CANCELED"
)

// DeleteReason 删除原因
type DeleteReason string

const (
	DeleteManual  DeleteReason = "MANUAL"
	DeleteTimeout DeleteReason = "TIMEOUT"
)
