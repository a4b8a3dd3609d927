package models

import "time"

// ActionType 操作类型
type ActionType string

const (
	ActionDispatch      ActionType = "dispatch"
	ActionFalsePositive ActionType = "false_positive"
	ActionEvict         ActionType = "evict"
	ActionRecentDelete  ActionType = "recent_delete"
)

// OperatorAction 操作日志（调度、误报删除、超时淘汰）
type OperatorAction struct {
	ActionID   string                 `json:"action_id"`
	SurvivorID string                 `json:"survivor_id"`
	ActionType ActionType             `json:"action_type"`
	Reason     string                 `json:"reason,omitempty"`
	Operator   string                 `json:"operator,omitempty"`
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}
