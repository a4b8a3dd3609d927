// Package client 检测数据后端 REST 客户端
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"rescue-console/common/config"
	"rescue-console/internal/models"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrNotFound 后端返回 404
var ErrNotFound = errors.New("resource not found")

// DefaultRecentHours 最近记录默认查询范围
const DefaultRecentHours = 48

// StatusError 非 2xx 响应
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// BackendClient 检测数据后端客户端
type BackendClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewBackendClient 创建后端客户端
func NewBackendClient(cfg config.BackendConfig, logger *zap.Logger) *BackendClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.APIBase).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json")

	// 只重试网络错误和 5xx，变更请求由调用方决定是否重试
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if r == nil || r.Request == nil {
			return err != nil
		}
		if r.Request.Method != http.MethodGet {
			return false
		}
		return err != nil || r.StatusCode() >= http.StatusInternalServerError
	})

	return &BackendClient{
		httpClient: client,
		logger:     logger,
	}
}

// check 把 resty 的结果转换成错误
func (c *BackendClient) check(resp *resty.Response, err error, method, path string) error {
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.IsError() {
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Body:       truncate(resp.String(), 200),
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ListSurvivors GET /survivors
func (c *BackendClient) ListSurvivors(ctx context.Context) ([]models.APISurvivor, error) {
	var survivors []models.APISurvivor
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&survivors).
		Get("/survivors")
	if err := c.check(resp, err, http.MethodGet, "/survivors"); err != nil {
		return nil, err
	}
	return survivors, nil
}

// UpdateRescueStatus PATCH /survivors/{id}/rescue-status
func (c *BackendClient) UpdateRescueStatus(ctx context.Context, id string, status models.BackendRescueStatus) error {
	path := "/survivors/" + id + "/rescue-status"
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("rescueStatus", string(status)).
		Patch(path)
	if err := c.check(resp, err, http.MethodPatch, path); err != nil {
		return err
	}
	c.logger.Info("Updated rescue status",
		zap.String("survivor_id", id),
		zap.String("rescue_status", string(status)),
	)
	return nil
}

// DeleteSurvivor DELETE /survivors/{id}?reason=
func (c *BackendClient) DeleteSurvivor(ctx context.Context, id string, reason models.DeleteReason) error {
	path := "/survivors/" + id
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("reason", string(reason)).
		Delete(path)
	if err := c.check(resp, err, http.MethodDelete, path); err != nil {
		return err
	}
	c.logger.Info("Deleted survivor",
		zap.String("survivor_id", id),
		zap.String("reason", string(reason)),
	)
	return nil
}

// LatestDetection GET /detections/survivor/{id}/latest
func (c *BackendClient) LatestDetection(ctx context.Context, id string) (*models.Detection, error) {
	path := "/detections/survivor/" + id + "/latest"
	var det models.Detection
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&det).
		Get(path)
	if err := c.check(resp, err, http.MethodGet, path); err != nil {
		return nil, err
	}
	if body := strings.TrimSpace(resp.String()); body == "" || body == "null" {
		return nil, fmt.Errorf("%s %s: %w", http.MethodGet, path, ErrNotFound)
	}
	return &det, nil
}

// Analysis GET /detections/survivor/{id}/analysis，每次都绕过缓存
func (c *BackendClient) Analysis(ctx context.Context, id string) (*models.AIAnalysis, error) {
	path := "/detections/survivor/" + id + "/analysis"
	var analysis models.AIAnalysis
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("_t", strconv.FormatInt(time.Now().UnixMilli(), 10)).
		SetHeader("Cache-Control", "no-cache, no-store, must-revalidate").
		SetHeader("Pragma", "no-cache").
		SetHeader("Expires", "0").
		SetResult(&analysis).
		Get(path)
	if err := c.check(resp, err, http.MethodGet, path); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// LatestPriority GET /survivors/{id}/priority-score-latest
func (c *BackendClient) LatestPriority(ctx context.Context, id string) (*models.PriorityAssessment, error) {
	path := "/survivors/" + id + "/priority-score-latest"
	var pa models.PriorityAssessment
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&pa).
		Get(path)
	if err := c.check(resp, err, http.MethodGet, path); err != nil {
		return nil, err
	}
	return &pa, nil
}

// ListWifiSensors GET /wifi-sensors
func (c *BackendClient) ListWifiSensors(ctx context.Context) ([]models.WifiSensor, error) {
	var sensors []models.WifiSensor
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&sensors).
		Get("/wifi-sensors")
	if err := c.check(resp, err, http.MethodGet, "/wifi-sensors"); err != nil {
		return nil, err
	}
	return sensors, nil
}

// WifiSensor 在传感器列表中查找指定 ID
func (c *BackendClient) WifiSensor(ctx context.Context, sensorID int64) (*models.WifiSensor, error) {
	sensors, err := c.ListWifiSensors(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sensors {
		if sensors[i].ID == sensorID {
			return &sensors[i], nil
		}
	}
	return nil, fmt.Errorf("wifi sensor %d: %w", sensorID, ErrNotFound)
}

// ListCctvs GET /cctvs
func (c *BackendClient) ListCctvs(ctx context.Context) ([]models.CctvInfo, error) {
	var cctvs []models.CctvInfo
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&cctvs).
		Get("/cctvs")
	if err := c.check(resp, err, http.MethodGet, "/cctvs"); err != nil {
		return nil, err
	}
	return cctvs, nil
}

// Cctv GET /cctvs/{id}
func (c *BackendClient) Cctv(ctx context.Context, cctvID int64) (*models.CctvInfo, error) {
	path := "/cctvs/" + strconv.FormatInt(cctvID, 10)
	var info models.CctvInfo
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&info).
		Get(path)
	if err := c.check(resp, err, http.MethodGet, path); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListRecentSurvivors GET /recent-survivors?hours=N
func (c *BackendClient) ListRecentSurvivors(ctx context.Context, hours int) ([]models.RecentSurvivorRecord, error) {
	if hours <= 0 {
		hours = DefaultRecentHours
	}
	var records []models.RecentSurvivorRecord
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("hours", strconv.Itoa(hours)).
		SetResult(&records).
		Get("/recent-survivors")
	if err := c.check(resp, err, http.MethodGet, "/recent-survivors"); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteRecentSurvivor DELETE /recent-survivors/{id}
func (c *BackendClient) DeleteRecentSurvivor(ctx context.Context, id int64) error {
	path := "/recent-survivors/" + strconv.FormatInt(id, 10)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Delete(path)
	return c.check(resp, err, http.MethodDelete, path)
}
