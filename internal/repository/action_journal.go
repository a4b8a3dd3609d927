// Package repository 操作日志持久化
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"rescue-console/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ActionJournal 操作日志
type ActionJournal interface {
	Record(ctx context.Context, action *models.OperatorAction) error
	ListBySurvivor(ctx context.Context, survivorID string, limit int) ([]*models.OperatorAction, error)
}

// NopJournal 未启用日志时使用
type NopJournal struct{}

func (NopJournal) Record(ctx context.Context, action *models.OperatorAction) error { return nil }

func (NopJournal) ListBySurvivor(ctx context.Context, survivorID string, limit int) ([]*models.OperatorAction, error) {
	return nil, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS operator_actions (
		action_id   UUID PRIMARY KEY,
		survivor_id VARCHAR(64) NOT NULL,
		action_type VARCHAR(32) NOT NULL,
		reason      VARCHAR(32),
		operator    VARCHAR(128),
		success     BOOLEAN NOT NULL,
		error       TEXT,
		details     JSONB,
		created_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_operator_actions_survivor ON operator_actions (survivor_id, created_at DESC);
`

// PostgresActionJournal 基于 PostgreSQL 的操作日志
type PostgresActionJournal struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresActionJournal 创建操作日志仓库
func NewPostgresActionJournal(db *sql.DB, logger *zap.Logger) *PostgresActionJournal {
	return &PostgresActionJournal{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（幂等）
func (r *PostgresActionJournal) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create operator_actions table: %w", err)
	}
	return nil
}

// Record 写入一条操作日志；ActionID/CreatedAt 为空时自动生成
func (r *PostgresActionJournal) Record(ctx context.Context, action *models.OperatorAction) error {
	if action == nil {
		return fmt.Errorf("action is required")
	}
	if action.SurvivorID == "" {
		return fmt.Errorf("survivor_id is required")
	}
	if action.ActionID == "" {
		action.ActionID = uuid.New().String()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now()
	}

	var details interface{}
	if len(action.Details) > 0 {
		b, err := json.Marshal(action.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal details: %w", err)
		}
		details = string(b)
	}

	query := `
		INSERT INTO operator_actions (
			action_id,
			survivor_id,
			action_type,
			reason,
			operator,
			success,
			error,
			details,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		action.ActionID,
		action.SurvivorID,
		string(action.ActionType),
		nullString(action.Reason),
		nullString(action.Operator),
		action.Success,
		nullString(action.Error),
		details,
		action.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record operator action: %w", err)
	}

	r.logger.Debug("Recorded operator action",
		zap.String("action_id", action.ActionID),
		zap.String("survivor_id", action.SurvivorID),
		zap.String("action_type", string(action.ActionType)),
	)
	return nil
}

// ListBySurvivor 按时间倒序查询某个生存者的操作日志
func (r *PostgresActionJournal) ListBySurvivor(ctx context.Context, survivorID string, limit int) ([]*models.OperatorAction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT action_id, survivor_id, action_type, reason, operator, success, error, details, created_at
		FROM operator_actions
		WHERE survivor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, survivorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operator actions: %w", err)
	}
	defer rows.Close()

	var actions []*models.OperatorAction
	for rows.Next() {
		var (
			a          models.OperatorAction
			actionType string
			reason     sql.NullString
			operator   sql.NullString
			errText    sql.NullString
			details    sql.NullString
		)
		if err := rows.Scan(&a.ActionID, &a.SurvivorID, &actionType, &reason, &operator, &a.Success, &errText, &details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan operator action: %w", err)
		}
		a.ActionType = models.ActionType(actionType)
		a.Reason = reason.String
		a.Operator = operator.String
		a.Error = errText.String
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &a.Details); err != nil {
				r.logger.Warn("Failed to unmarshal action details", zap.String("action_id", a.ActionID), zap.Error(err))
			}
		}
		actions = append(actions, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operator actions: %w", err)
	}
	return actions, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
