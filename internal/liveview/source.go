// Package liveview 实时画面选择与会话池
//
// 每个显示位映射到一个媒体源：CCTV 记录对应 HLS 播放列表，WiFi 记录对应信号图。
// 底层会话按稳定的 tile key（摄像头/传感器）复用，记录短暂离开显示范围不会重建流；
// 最后一个使用者离开后经过宽限期才真正释放。
package liveview

import (
	"fmt"
	"rescue-console/internal/models"
	"strconv"
)

// SourceKind 媒体源类型
type SourceKind string

const (
	SourceVideo SourceKind = "video"
	SourceGraph SourceKind = "graph"
	SourceNone  SourceKind = "none"
)

// Source 一个显示位的媒体源
type Source struct {
	Kind      SourceKind `json:"kind"`
	TileKey   string     `json:"tile_key"`
	StreamURL string     `json:"stream_url,omitempty"`
	CctvID    *int64     `json:"cctv_id,omitempty"`
	SensorID  string     `json:"sensor_id,omitempty"`
}

// StreamURL 摄像头的 HLS 播放列表地址
func StreamURL(apiBase string, cctvID int64) string {
	return fmt.Sprintf("%s/streams/cctv%d/playlist.m3u8", apiBase, cctvID)
}

// SourceFor 根据记录计算媒体源
// WiFi 记录（或带传感器的记录）显示信号图；有摄像头的记录显示视频；否则无媒体
func SourceFor(rec models.SurvivorRecord, apiBase string) Source {
	if rec.DetectionMethod == models.DetectionWifi {
		if sensor := rec.SensorID(); sensor != "" {
			return Source{Kind: SourceGraph, TileKey: "wifi:" + sensor, SensorID: sensor}
		}
		return Source{Kind: SourceNone, TileKey: "record:" + rec.ID}
	}
	if cctvID, ok := rec.CctvID(); ok {
		id := cctvID
		return Source{
			Kind:      SourceVideo,
			TileKey:   "cctv:" + strconv.FormatInt(cctvID, 10),
			StreamURL: StreamURL(apiBase, cctvID),
			CctvID:    &id,
		}
	}
	return Source{Kind: SourceNone, TileKey: "record:" + rec.ID}
}
