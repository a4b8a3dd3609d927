package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"rescue-console/internal/client"
	"rescue-console/internal/liveview"
	"rescue-console/internal/models"
	"rescue-console/internal/store"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Console 控制台服务（service.ConsoleService 实现）
type Console interface {
	Ranked() []models.SurvivorRecord
	Survivor(id string) (models.SurvivorRecord, bool)
	Select(id string) error
	Selected() (models.SurvivorRecord, bool)
	Tiles() []liveview.Tile
	Signal(sensorID string) []models.SignalPoint
	Analysis(ctx context.Context, id string) (*models.AIAnalysis, error)
	Dispatch(ctx context.Context, id, operator string) (models.SurvivorRecord, error)
	ReportFalsePositive(ctx context.Context, id, operator string) error
	History(ctx context.Context, id string, limit int) ([]*models.OperatorAction, error)
	RecentSurvivors(ctx context.Context, hours int) ([]models.RecentSurvivorRecord, error)
	DeleteRecent(ctx context.Context, id int64, operator string) error
	ExportRecent(ctx context.Context, hours int) ([]byte, error)
	WifiSensors(ctx context.Context) ([]models.WifiSensor, error)
	WifiSensor(ctx context.Context, id int64) (*models.WifiSensor, error)
	Cctvs(ctx context.Context) ([]models.CctvInfo, error)
	Cctv(ctx context.Context, id int64) (*models.CctvInfo, error)
	Connected() bool
	Tracked() int
	LastPublished(ctx context.Context) (time.Time, bool)
}

// SurvivorView 列表项：记录 + 派生的风险等级与 WiFi 探测状态
type SurvivorView struct {
	models.SurvivorRecord
	RiskLevel  string                     `json:"risk_level"`
	WifiStatus models.WifiDetectionStatus `json:"wifi_status,omitempty"`
}

// ConsoleHandler 操作端接口
type ConsoleHandler struct {
	console Console
	logger  *zap.Logger
	now     func() time.Time
}

func NewConsoleHandler(console Console, logger *zap.Logger) *ConsoleHandler {
	return &ConsoleHandler{console: console, logger: logger, now: time.Now}
}

func (h *ConsoleHandler) view(rec models.SurvivorRecord, now time.Time) SurvivorView {
	return SurvivorView{
		SurvivorRecord: rec,
		RiskLevel:      models.RiskLevel(rec.RiskScore),
		WifiStatus:     rec.WifiStatus(now),
	}
}

// ListSurvivors GET /api/v1/survivors
func (h *ConsoleHandler) ListSurvivors(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	ranked := h.console.Ranked()
	out := make([]SurvivorView, 0, len(ranked))
	for _, rec := range ranked {
		out = append(out, h.view(rec, now))
	}
	reply(w, map[string]any{
		"items": out,
		"total": len(out),
	})
}

// GetSurvivor GET /api/v1/survivors/{id}
func (h *ConsoleHandler) GetSurvivor(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.console.Survivor(chi.URLParam(r, "id"))
	if !ok {
		fail(w, "survivor not found")
		return
	}
	reply(w, h.view(rec, h.now()))
}

// GetAnalysis GET /api/v1/survivors/{id}/analysis
func (h *ConsoleHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	analysis, err := h.console.Analysis(r.Context(), id)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			fail(w, "analysis not available")
			return
		}
		h.logger.Error("Failed to load analysis", zap.String("survivor_id", id), zap.Error(err))
		fail(w, "failed to load analysis")
		return
	}
	reply(w, analysis)
}

// GetHistory GET /api/v1/survivors/{id}/actions
func (h *ConsoleHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actions, err := h.console.History(r.Context(), id, queryInt(r, "limit", 50))
	if err != nil {
		h.logger.Error("Failed to list operator actions", zap.String("survivor_id", id), zap.Error(err))
		fail(w, "failed to list actions")
		return
	}
	if actions == nil {
		actions = []*models.OperatorAction{}
	}
	reply(w, actions)
}

// Dispatch POST /api/v1/survivors/{id}/dispatch
func (h *ConsoleHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.console.Dispatch(r.Context(), id, operator(r))
	if err != nil {
		fail(w, h.actionMessage("dispatch", id, err))
		return
	}
	reply(w, h.view(rec, h.now()))
}

// ReportFalsePositive DELETE /api/v1/survivors/{id}
func (h *ConsoleHandler) ReportFalsePositive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.console.ReportFalsePositive(r.Context(), id, operator(r)); err != nil {
		fail(w, h.actionMessage("delete", id, err))
		return
	}
	reply(w, map[string]any{"id": id})
}

// actionMessage 操作失败时返回给操作员的提示
func (h *ConsoleHandler) actionMessage(action, id string, err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "survivor not found"
	case errors.Is(err, store.ErrPinnedRecord):
		return "pinned sensor cannot be modified"
	}
	h.logger.Error("Operator action failed",
		zap.String("action", action),
		zap.String("survivor_id", id),
		zap.Error(err),
	)
	return fmt.Sprintf("failed to %s survivor", action)
}

// GetSelection GET /api/v1/selection
func (h *ConsoleHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.console.Selected()
	if !ok {
		reply(w, nil)
		return
	}
	reply(w, h.view(rec, h.now()))
}

// SaveSelection PUT /api/v1/selection，body: {"id": "..."}，空 id 取消选择
func (h *ConsoleHandler) SaveSelection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		fail(w, "invalid body")
		return
	}
	if err := h.console.Select(body.ID); err != nil {
		fail(w, "survivor not found")
		return
	}
	reply(w, map[string]any{"id": body.ID})
}

// GetMultiView GET /api/v1/multiview
func (h *ConsoleHandler) GetMultiView(w http.ResponseWriter, r *http.Request) {
	reply(w, h.console.Tiles())
}

// GetSignal GET /api/v1/sensors/{sensorId}/signal
func (h *ConsoleHandler) GetSignal(w http.ResponseWriter, r *http.Request) {
	sensorID := chi.URLParam(r, "sensorId")
	reply(w, map[string]any{
		"sensor_id": sensorID,
		"points":    h.console.Signal(sensorID),
	})
}

// ListRecentSurvivors GET /api/v1/recent-survivors?hours=N
func (h *ConsoleHandler) ListRecentSurvivors(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", client.DefaultRecentHours)
	records, err := h.console.RecentSurvivors(r.Context(), hours)
	if err != nil {
		h.logger.Error("Failed to list recent survivors", zap.Int("hours", hours), zap.Error(err))
		fail(w, "failed to list recent survivors")
		return
	}
	if records == nil {
		records = []models.RecentSurvivorRecord{}
	}
	reply(w, map[string]any{
		"items": records,
		"total": len(records),
		"hours": hours,
	})
}

// DeleteRecentSurvivor DELETE /api/v1/recent-survivors/{id}
func (h *ConsoleHandler) DeleteRecentSurvivor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, "invalid id")
		return
	}
	if err := h.console.DeleteRecent(r.Context(), id, operator(r)); err != nil {
		h.logger.Error("Failed to delete recent survivor", zap.Int64("id", id), zap.Error(err))
		fail(w, "failed to delete recent survivor")
		return
	}
	reply(w, map[string]any{"id": id})
}

// ExportRecentSurvivors GET /api/v1/recent-survivors/export?hours=N
func (h *ConsoleHandler) ExportRecentSurvivors(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", client.DefaultRecentHours)
	data, err := h.console.ExportRecent(r.Context(), hours)
	if err != nil {
		h.logger.Error("Failed to export recent survivors", zap.Int("hours", hours), zap.Error(err))
		fail(w, "failed to export recent survivors")
		return
	}
	filename := fmt.Sprintf("recent_survivors_%s.xlsx", h.now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ListWifiSensors GET /api/v1/wifi-sensors
func (h *ConsoleHandler) ListWifiSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := h.console.WifiSensors(r.Context())
	if err != nil {
		h.logger.Error("Failed to list wifi sensors", zap.Error(err))
		fail(w, "failed to list wifi sensors")
		return
	}
	if sensors == nil {
		sensors = []models.WifiSensor{}
	}
	reply(w, sensors)
}

// GetWifiSensor GET /api/v1/wifi-sensors/{id}
func (h *ConsoleHandler) GetWifiSensor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, "invalid id")
		return
	}
	sensor, err := h.console.WifiSensor(r.Context(), id)
	if err != nil {
		fail(w, h.lookupMessage("wifi sensor", id, err))
		return
	}
	reply(w, sensor)
}

// ListCctvs GET /api/v1/cctvs
func (h *ConsoleHandler) ListCctvs(w http.ResponseWriter, r *http.Request) {
	cctvs, err := h.console.Cctvs(r.Context())
	if err != nil {
		h.logger.Error("Failed to list cctvs", zap.Error(err))
		fail(w, "failed to list cctvs")
		return
	}
	if cctvs == nil {
		cctvs = []models.CctvInfo{}
	}
	reply(w, cctvs)
}

// GetCctv GET /api/v1/cctvs/{id}
func (h *ConsoleHandler) GetCctv(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, "invalid id")
		return
	}
	cctv, err := h.console.Cctv(r.Context(), id)
	if err != nil {
		fail(w, h.lookupMessage("cctv", id, err))
		return
	}
	reply(w, cctv)
}

func (h *ConsoleHandler) lookupMessage(kind string, id int64, err error) string {
	if errors.Is(err, client.ErrNotFound) {
		return kind + " not found"
	}
	h.logger.Error("Failed to load "+kind, zap.Int64("id", id), zap.Error(err))
	return "failed to load " + kind
}

// Health GET /healthz
func (h *ConsoleHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"realtime_connected": h.console.Connected(),
		"tracked":            h.console.Tracked(),
	}
	if at, ok := h.console.LastPublished(r.Context()); ok {
		status["published_at"] = at
	}
	reply(w, status)
}
