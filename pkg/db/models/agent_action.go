package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/stockline-hq/stockline-backend/pkg/enums"
)

// AgentAction is an automated recommendation awaiting a human decision.
// Created by the reasoning process; only transitioned here, and only once:
// pending_approval is the sole non-terminal state.
type AgentAction struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	AgentType  enums.AgentType         `gorm:"column:agent_type;type:agent_type_enum;not null"`
	Status     enums.AgentActionStatus `gorm:"column:status;type:agent_action_status_enum;not null;default:'pending_approval'"`
	Plan       json.RawMessage         `gorm:"column:plan;type:jsonb;not null"`
	Rationale  string                  `gorm:"column:rationale;not null"`
	ResolvedBy *uuid.UUID              `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt *time.Time              `gorm:"column:resolved_at"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
}
