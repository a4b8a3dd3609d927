package service

import (
	"context"
	"fmt"
	"rescue-console/internal/models"
	"rescue-console/internal/publisher"
	"rescue-console/internal/repository"
	"rescue-console/internal/store"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ActionBackend 操作员动作调用的后端接口
type ActionBackend interface {
	UpdateRescueStatus(ctx context.Context, id string, status models.BackendRescueStatus) error
	DeleteSurvivor(ctx context.Context, id string, reason models.DeleteReason) error
	DeleteRecentSurvivor(ctx context.Context, id int64) error
}

// ActionStore 操作员动作修改的存储
type ActionStore interface {
	Get(id string) (models.SurvivorRecord, bool)
	UpdateRescueStatus(id string, status models.RescueStatus) error
	Remove(id string) error
}

// EventPublisher 生存者事件发布
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, rec models.SurvivorRecord, reason string) error
}

// ActionService 操作员动作：派遣救援、误报删除、归档删除
// 只有后端调用成功后才修改本地存储
type ActionService struct {
	backend ActionBackend
	store   ActionStore
	journal repository.ActionJournal
	events  EventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

// NewActionService 创建操作服务；journal、events 可以为 nil
func NewActionService(backend ActionBackend, st ActionStore, journal repository.ActionJournal, events EventPublisher, logger *zap.Logger) *ActionService {
	if journal == nil {
		journal = repository.NopJournal{}
	}
	return &ActionService{
		backend: backend,
		store:   st,
		journal: journal,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

// lookup 查找可操作的记录；固定/占位记录不可操作
func (s *ActionService) lookup(id string) (models.SurvivorRecord, error) {
	rec, ok := s.store.Get(id)
	if !ok {
		return rec, store.ErrNotFound
	}
	if rec.Pinned || rec.Placeholder {
		return rec, store.ErrPinnedRecord
	}
	return rec, nil
}

// Dispatch 派遣救援：后端 IN_RESCUE 成功后本地标记 dispatched
func (s *ActionService) Dispatch(ctx context.Context, id, operator string) (models.SurvivorRecord, error) {
	rec, err := s.lookup(id)
	if err != nil {
		return rec, err
	}

	if err := s.backend.UpdateRescueStatus(ctx, id, models.BackendInRescue); err != nil {
		s.record(ctx, rec, models.ActionDispatch, "", operator, err)
		return rec, fmt.Errorf("failed to dispatch rescue: %w", err)
	}
	if err := s.store.UpdateRescueStatus(id, models.RescueDispatched); err != nil {
		// 记录在后端调用期间被移除
		s.logger.Warn("Survivor gone after dispatch", zap.String("survivor_id", id), zap.Error(err))
	}
	rec.RescueStatus = models.RescueDispatched

	s.logger.Info("Rescue dispatched",
		zap.String("survivor_id", id),
		zap.String("operator", operator),
	)
	s.record(ctx, rec, models.ActionDispatch, "", operator, nil)
	s.publish(ctx, publisher.EventDispatched, rec, "")
	return rec, nil
}

// ReportFalsePositive 误报删除：后端删除成功后本地移除
func (s *ActionService) ReportFalsePositive(ctx context.Context, id, operator string) error {
	rec, err := s.lookup(id)
	if err != nil {
		return err
	}

	reason := string(models.DeleteManual)
	if err := s.backend.DeleteSurvivor(ctx, id, models.DeleteManual); err != nil {
		s.record(ctx, rec, models.ActionFalsePositive, reason, operator, err)
		return fmt.Errorf("failed to delete survivor: %w", err)
	}
	if err := s.store.Remove(id); err != nil {
		s.logger.Warn("Survivor gone before local removal", zap.String("survivor_id", id), zap.Error(err))
	}

	s.logger.Info("False positive removed",
		zap.String("survivor_id", id),
		zap.String("operator", operator),
	)
	s.record(ctx, rec, models.ActionFalsePositive, reason, operator, nil)
	s.publish(ctx, publisher.EventRemoved, rec, reason)
	return nil
}

// DeleteRecent 删除归档中的生存者记录
func (s *ActionService) DeleteRecent(ctx context.Context, id int64, operator string) error {
	err := s.backend.DeleteRecentSurvivor(ctx, id)
	s.record(ctx, models.SurvivorRecord{ID: strconv.FormatInt(id, 10)}, models.ActionRecentDelete, "", operator, err)
	if err != nil {
		return fmt.Errorf("failed to delete recent survivor: %w", err)
	}
	return nil
}

// OnEvicted 超时淘汰回调：写操作日志并发布事件
func (s *ActionService) OnEvicted(ctx context.Context, rec models.SurvivorRecord) {
	reason := string(models.DeleteTimeout)
	s.record(ctx, rec, models.ActionEvict, reason, "system", nil)
	s.publish(ctx, publisher.EventEvicted, rec, reason)
}

// History 某条记录的操作日志
func (s *ActionService) History(ctx context.Context, id string, limit int) ([]*models.OperatorAction, error) {
	return s.journal.ListBySurvivor(ctx, id, limit)
}

func (s *ActionService) record(ctx context.Context, rec models.SurvivorRecord, typ models.ActionType, reason, operator string, cause error) {
	action := &models.OperatorAction{
		SurvivorID: rec.ID,
		ActionType: typ,
		Reason:     reason,
		Operator:   operator,
		Success:    cause == nil,
		CreatedAt:  s.now(),
	}
	if cause != nil {
		action.Error = cause.Error()
	}
	if rec.DetectionMethod != "" {
		action.Details = map[string]interface{}{
			"detection_method": string(rec.DetectionMethod),
			"risk_score":       rec.RiskScore,
			"location":         rec.Location,
			"floor":            rec.Floor,
			"room":             rec.Room,
		}
	}
	if err := s.journal.Record(ctx, action); err != nil {
		s.logger.Warn("Failed to journal operator action",
			zap.String("survivor_id", rec.ID),
			zap.String("action_type", string(typ)),
			zap.Error(err),
		)
	}
}

func (s *ActionService) publish(ctx context.Context, eventType string, rec models.SurvivorRecord, reason string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, eventType, rec, reason); err != nil {
		s.logger.Warn("Failed to publish survivor event",
			zap.String("survivor_id", rec.ID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
