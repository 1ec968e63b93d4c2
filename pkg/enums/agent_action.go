package enums

import "fmt"

// AgentActionStatus maps to the agent_action_status_enum enum in Postgres.
type AgentActionStatus string

const (
	AgentActionStatusPendingApproval AgentActionStatus = "pending_approval"
	AgentActionStatusExecuted        AgentActionStatus = "executed"
	AgentActionStatusDismissed       AgentActionStatus = "dismissed"
)

var validAgentActionStatuses = []AgentActionStatus{
	AgentActionStatusPendingApproval,
	AgentActionStatusExecuted,
	AgentActionStatusDismissed,
}

// IsValid reports whether the value matches the canonical agent action status enum.
func (s AgentActionStatus) IsValid() bool {
	for _, candidate := range validAgentActionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// AgentType names the automated recommendation family an action belongs to.
// The plan payload schema is keyed by this value.
type AgentType string

const (
	AgentTypeReorder     AgentType = "reorder"
	AgentTypePriceChange AgentType = "price_change"
)

var validAgentTypes = []AgentType{
	AgentTypeReorder,
	AgentTypePriceChange,
}

// IsValid reports whether the value matches a supported agent type.
func (t AgentType) IsValid() bool {
	for _, candidate := range validAgentTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseAgentType converts raw input into AgentType.
func ParseAgentType(value string) (AgentType, error) {
	for _, candidate := range validAgentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid agent type %q", value)
}
