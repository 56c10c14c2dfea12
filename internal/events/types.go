// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	PlanCalculated           EventType = "PLAN_CALCULATED"
	AllocationTargetsChanged EventType = "ALLOCATION_TARGETS_CHANGED"
	AllocationRulesChanged   EventType = "ALLOCATION_RULES_CHANGED"
	HoldingsChanged          EventType = "HOLDINGS_CHANGED"
	DeploymentCalculated     EventType = "DEPLOYMENT_CALCULATED"
	CacheInvalidated         EventType = "CACHE_INVALIDATED"
	BackupCompleted          EventType = "BACKUP_COMPLETED"
	ErrorOccurred            EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every event type the system emits
var AllEventTypes = []EventType{
	PlanCalculated,
	AllocationTargetsChanged,
	AllocationRulesChanged,
	HoldingsChanged,
	DeploymentCalculated,
	CacheInvalidated,
	BackupCompleted,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
