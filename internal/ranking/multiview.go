package ranking

import (
	"fmt"
	"rescue-console/internal/models"
)

// DefaultMaxTiles 多画面同时显示的最大数量
const DefaultMaxTiles = 6

// MultiViewOptions 多画面配置
type MultiViewOptions struct {
	FixedCCTVIDs []int64 // 始终显示的摄像头（按配置顺序占据前几个位置）
	MaxTiles     int
}

// MultiView 根据排序结果生成多画面列表
//
// 固定摄像头优先占位：有检测时显示该摄像头排序最靠前的记录，
// 没有检测时用风险分为 0 的占位记录补齐；剩余位置按排序顺序追加其他摄像头和 WiFi 传感器
func MultiView(ranked []models.SurvivorRecord, opts MultiViewOptions) []models.SurvivorRecord {
	maxTiles := opts.MaxTiles
	if maxTiles <= 0 {
		maxTiles = DefaultMaxTiles
	}

	fixed := make(map[int64]bool, len(opts.FixedCCTVIDs))
	for _, id := range opts.FixedCCTVIDs {
		fixed[id] = true
	}

	// 每个固定摄像头取排序最靠前的记录
	byCamera := make(map[int64]models.SurvivorRecord)
	for _, r := range ranked {
		if r.DetectionMethod != models.DetectionCCTV {
			continue
		}
		if cctvID, ok := r.CctvID(); ok && fixed[cctvID] {
			if _, exists := byCamera[cctvID]; !exists {
				byCamera[cctvID] = r
			}
		}
	}

	tiles := make([]models.SurvivorRecord, 0, maxTiles)
	placed := make(map[string]bool)
	for _, cctvID := range opts.FixedCCTVIDs {
		if len(tiles) >= maxTiles {
			return tiles
		}
		if placed[cameraKey(cctvID)] {
			continue
		}
		placed[cameraKey(cctvID)] = true
		if r, ok := byCamera[cctvID]; ok {
			tiles = append(tiles, r)
			placed[r.ID] = true
			continue
		}
		tiles = append(tiles, CameraPlaceholder(cctvID))
	}

	for _, r := range ranked {
		if len(tiles) >= maxTiles {
			break
		}
		if placed[r.ID] {
			continue
		}
		if cctvID, ok := r.CctvID(); ok && r.DetectionMethod == models.DetectionCCTV && fixed[cctvID] {
			continue
		}
		placed[r.ID] = true
		tiles = append(tiles, r)
	}
	return tiles
}

// CameraPlaceholder 没有检测时的摄像头占位记录
func CameraPlaceholder(cctvID int64) models.SurvivorRecord {
	id := cctvID
	return models.SurvivorRecord{
		ID:              fmt.Sprintf("placeholder-cctv-%d", cctvID),
		RiskScore:       0,
		Location:        fmt.Sprintf("CCTV %d", cctvID),
		Room:            "-",
		Status:          models.StatusStanding,
		DetectionMethod: models.DetectionCCTV,
		RescueStatus:    models.RescuePending,
		LastDetection: &models.Detection{
			DetectionType: "CCTV",
			CctvID:        &id,
		},
		Placeholder: true,
	}
}

func cameraKey(cctvID int64) string {
	return fmt.Sprintf("cctv:%d", cctvID)
}
