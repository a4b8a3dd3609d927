package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"rescue-console/internal/models"
	"strconv"
	"strings"
)

// ScoreParser 单一格式的分数解析策略
type ScoreParser func(body []byte) (float64, bool)

// scoreParsers 按优先级排列
var scoreParsers = []ScoreParser{
	parseBareNumber,
	parseScoreObject,
	parseFirstNumber,
}

// ParseScore 依次尝试：纯数字 -> {finalRiskScore|score} 对象 -> 文本中的第一个数字
// 负数和无法识别的内容返回 false
func ParseScore(body []byte) (float64, bool) {
	for _, p := range scoreParsers {
		if v, ok := p(body); ok {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, false
			}
			return v, true
		}
	}
	return 0, false
}

func parseBareNumber(body []byte) (float64, bool) {
	s := strings.TrimSpace(string(body))
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseScoreObject(body []byte) (float64, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return 0, false
	}
	for _, field := range []string{"finalRiskScore", "score"} {
		raw, ok := obj[field]
		if !ok {
			continue
		}
		if v, ok := parseBareNumber(raw); ok {
			return v, true
		}
	}
	return 0, false
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

func parseFirstNumber(body []byte) (float64, bool) {
	m := numberPattern.Find(body)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(m), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// flexString 兼容数字和字符串两种 JSON 表示
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type attributeBody struct {
	Location      *models.APILocation `json:"location"`
	CurrentStatus *string             `json:"currentStatus"`
	RescueStatus  *string             `json:"rescueStatus"`
	WifiSensorID  *flexString         `json:"wifiSensorId"`
}

// DecodeAttributePatch 解析 /topic/survivor/{id} 的属性补丁
// 检测相关字段一律忽略
func DecodeAttributePatch(body []byte) (models.AttributePatch, error) {
	var in attributeBody
	if err := json.Unmarshal(body, &in); err != nil {
		return models.AttributePatch{}, fmt.Errorf("failed to decode attribute patch: %w", err)
	}

	var patch models.AttributePatch
	if in.Location != nil {
		loc := in.Location.BuildingName
		if loc == "" {
			loc = "Unknown"
		}
		floor := in.Location.Floor
		room := in.Location.FullAddress
		if room == "" {
			room = in.Location.RoomNumber
		}
		if room == "" {
			room = "-"
		}
		patch.Location = &loc
		patch.Floor = &floor
		patch.Room = &room
	}
	if in.CurrentStatus != nil {
		st := models.MapStatus(*in.CurrentStatus)
		patch.Status = &st
	}
	if in.RescueStatus != nil {
		rs := models.MapRescueStatus(*in.RescueStatus)
		patch.RescueStatus = &rs
	}
	if in.WifiSensorID != nil && *in.WifiSensorID != "" {
		s := string(*in.WifiSensorID)
		patch.WifiSensorID = &s
	}
	return patch, nil
}

// DecodeDetection 解析检测事件
func DecodeDetection(body []byte) (*models.Detection, error) {
	var det models.Detection
	if err := json.Unmarshal(body, &det); err != nil {
		return nil, fmt.Errorf("failed to decode detection event: %w", err)
	}
	return &det, nil
}

// DecodeWifiSignal 解析 WiFi CSI 信号
func DecodeWifiSignal(body []byte) (models.WifiSignal, error) {
	var sig models.WifiSignal
	if err := json.Unmarshal(body, &sig); err != nil {
		return models.WifiSignal{}, fmt.Errorf("failed to decode wifi signal: %w", err)
	}
	return sig, nil
}
