// Package export 生成最近生存者归档的 Excel 文件
package export

import (
	"bytes"
	"fmt"
	"rescue-console/internal/models"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// SheetName 工作表名称
const SheetName = "Recent Survivors"

// RecentSurvivorHeader 导出表头
var RecentSurvivorHeader = []string{
	"Survivor ID",
	"Survivor Number",
	"Detection Method",
	"Building",
	"Floor",
	"Room",
	"Full Address",
	"Last Pose",
	"Last Risk Score",
	"Risk Level",
	"CCTV ID",
	"WiFi Sensor ID",
	"Last Detected At",
	"Archived At",
	"AI Summary",
}

var columnWidths = []float64{
	12, // Survivor ID
	16, // Survivor Number
	16, // Detection Method
	20, // Building
	8,  // Floor
	12, // Room
	30, // Full Address
	14, // Last Pose
	14, // Last Risk Score
	10, // Risk Level
	10, // CCTV ID
	14, // WiFi Sensor ID
	22, // Last Detected At
	22, // Archived At
	60, // AI Summary
}

// GenerateRecentSurvivors 生成归档导出文件；records 为空时只有表头
func GenerateRecentSurvivors(records []models.RecentSurvivorRecord) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo 需要文件保持打开，不能 defer Close

	index, err := f.NewSheet(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range RecentSurvivorHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for rowIdx, rec := range records {
		row := rowIdx + 2 // 第 1 行是表头
		for colIdx, value := range rowValues(rec) {
			if value == nil || value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(SheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, colIdx+1, err)
			}
		}
	}

	// 冻结表头
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// rowValues 按表头顺序返回一行的值
func rowValues(rec models.RecentSurvivorRecord) []interface{} {
	method := ""
	if rec.DetectionMethod != nil {
		method = string(models.MapDetectionMethod(*rec.DetectionMethod))
	}
	var score, level interface{}
	if rec.LastRiskScore != nil {
		score = *rec.LastRiskScore
		level = models.RiskLevel(*rec.LastRiskScore)
	}
	var floor interface{}
	if rec.Floor != nil {
		floor = *rec.Floor
	}
	return []interface{}{
		rec.SurvivorID,
		rec.SurvivorNumber,
		method,
		str(rec.BuildingName),
		floor,
		str(rec.RoomNumber),
		str(rec.FullAddress),
		str(rec.LastPose),
		score,
		level,
		id(rec.CctvID),
		id(rec.WifiSensorID),
		str(rec.LastDetectedAt),
		rec.ArchivedAt,
		str(rec.AISummary),
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func id(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}
