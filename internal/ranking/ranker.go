// Package ranking 计算生存者列表的显示顺序
//
// 排序规则：
//   - WiFi 记录固定排在最前，rank = 0，同一传感器只显示一条（先出现者优先）
//   - CCTV 记录同一摄像头只显示一条（风险分最高者优先），按风险分降序稳定排序，rank 从 1 开始
package ranking

import (
	"rescue-console/internal/models"
	"sort"
)

// Rank 对记录做分组、去重、排序并分配 rank
// 输入顺序即 "先出现" 顺序；函数不修改输入切片
func Rank(records []models.SurvivorRecord) []models.SurvivorRecord {
	wifi := make([]models.SurvivorRecord, 0)
	cctv := make([]models.SurvivorRecord, 0, len(records))
	for _, r := range records {
		if r.DetectionMethod == models.DetectionWifi {
			wifi = append(wifi, r)
		} else {
			cctv = append(cctv, r)
		}
	}

	wifi = dedupBySensor(wifi)
	cctv = dedupByCamera(cctv)

	sort.SliceStable(cctv, func(i, j int) bool {
		return cctv[i].RiskScore > cctv[j].RiskScore
	})

	out := make([]models.SurvivorRecord, 0, len(wifi)+len(cctv))
	for _, r := range wifi {
		r.Rank = 0
		out = append(out, r)
	}
	for i, r := range cctv {
		r.Rank = i + 1
		out = append(out, r)
	}
	return out
}

// dedupBySensor 一个物理传感器只保留一条记录
// 先出现的真实记录优先；只有没有真实记录时才显示占位记录
func dedupBySensor(records []models.SurvivorRecord) []models.SurvivorRecord {
	chosen := make(map[string]int) // sensorID -> out 下标
	out := make([]models.SurvivorRecord, 0, len(records))
	for _, r := range records {
		sensorID := r.SensorID()
		if sensorID == "" {
			out = append(out, r)
			continue
		}
		idx, seen := chosen[sensorID]
		if !seen {
			chosen[sensorID] = len(out)
			out = append(out, r)
			continue
		}
		if out[idx].Placeholder && !r.Placeholder {
			out[idx] = r
		}
	}
	return out
}

// dedupByCamera 一个摄像头只保留风险分最高的记录，分数相同时先出现者优先
// 保留记录占据该摄像头第一次出现的位置，以保证后续稳定排序的确定性
func dedupByCamera(records []models.SurvivorRecord) []models.SurvivorRecord {
	chosen := make(map[int64]int)
	out := make([]models.SurvivorRecord, 0, len(records))
	for _, r := range records {
		cctvID, ok := r.CctvID()
		if !ok {
			out = append(out, r)
			continue
		}
		idx, seen := chosen[cctvID]
		if !seen {
			chosen[cctvID] = len(out)
			out = append(out, r)
			continue
		}
		if r.RiskScore > out[idx].RiskScore {
			out[idx] = r
		}
	}
	return out
}
