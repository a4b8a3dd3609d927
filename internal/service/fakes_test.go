package service

import (
	"context"
	"errors"
	"sync"

	"rescue-console/internal/client"
	"rescue-console/internal/models"
)

var errBackendDown = errors.New("backend down")

// fakeBackend 同时实现 SurvivorSource 与 ActionBackend
type fakeBackend struct {
	mu sync.Mutex

	survivors  []models.APISurvivor
	listErr    error
	priority   map[string]float64
	detections map[string]*models.Detection

	// 在 ListSurvivors 返回前执行（用于模拟请求期间取消）
	onList func()

	// 前 N 次调用返回 errBackendDown
	priorityFailures  int
	detectionFailures int

	updateErr error
	deleteErr error

	priorityCalls  []string
	detectionCalls []string
	updates        []string
	deletes        []string
	recentDeletes  []int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		priority:   make(map[string]float64),
		detections: make(map[string]*models.Detection),
	}
}

func (f *fakeBackend) ListSurvivors(ctx context.Context) ([]models.APISurvivor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onList != nil {
		f.onList()
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.APISurvivor, len(f.survivors))
	copy(out, f.survivors)
	return out, nil
}

func (f *fakeBackend) LatestPriority(ctx context.Context, id string) (*models.PriorityAssessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priorityCalls = append(f.priorityCalls, id)
	if f.priorityFailures > 0 {
		f.priorityFailures--
		return nil, errBackendDown
	}
	score, ok := f.priority[id]
	if !ok {
		return nil, client.ErrNotFound
	}
	return &models.PriorityAssessment{FinalRiskScore: score}, nil
}

func (f *fakeBackend) LatestDetection(ctx context.Context, id string) (*models.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detectionCalls = append(f.detectionCalls, id)
	if f.detectionFailures > 0 {
		f.detectionFailures--
		return nil, errBackendDown
	}
	det, ok := f.detections[id]
	if !ok {
		return nil, client.ErrNotFound
	}
	return det, nil
}

func (f *fakeBackend) UpdateRescueStatus(ctx context.Context, id string, status models.BackendRescueStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, id+":"+string(status))
	return nil
}

func (f *fakeBackend) DeleteSurvivor(ctx context.Context, id string, reason models.DeleteReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, id+":"+string(reason))
	return nil
}

func (f *fakeBackend) DeleteRecentSurvivor(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.recentDeletes = append(f.recentDeletes, id)
	return nil
}

// fakeJournal 内存操作日志
type fakeJournal struct {
	mu      sync.Mutex
	actions []*models.OperatorAction
}

func (j *fakeJournal) Record(ctx context.Context, action *models.OperatorAction) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.actions = append(j.actions, action)
	return nil
}

func (j *fakeJournal) ListBySurvivor(ctx context.Context, survivorID string, limit int) ([]*models.OperatorAction, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*models.OperatorAction
	for _, a := range j.actions {
		if a.SurvivorID == survivorID {
			out = append(out, a)
		}
	}
	return out, nil
}

type publishedEvent struct {
	eventType  string
	survivorID string
	reason     string
}

// fakeEvents 内存事件发布
type fakeEvents struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (e *fakeEvents) PublishEvent(ctx context.Context, eventType string, rec models.SurvivorRecord, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, publishedEvent{eventType: eventType, survivorID: rec.ID, reason: reason})
	return nil
}

func apiSurvivor(id int64, method string) models.APISurvivor {
	return models.APISurvivor{
		ID:              id,
		SurvivorNumber:  id,
		Location:        &models.APILocation{BuildingName: "Block A", Floor: 2, RoomNumber: "201"},
		CurrentStatus:   "LYING_DOWN",
		DetectionMethod: method,
		RescueStatus:    "WAITING",
	}
}
