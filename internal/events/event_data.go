package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// PlanCalculatedData contains data for PlanCalculated events
type PlanCalculatedData struct {
	AccountID       int64   `json:"account_id"`
	PlanID          string  `json:"plan_id"`
	Portfolios      int     `json:"portfolios"`
	CappedPositions int     `json:"capped_positions"`
	TotalValue      float64 `json:"total_value"`
	Cached          bool    `json:"cached"`
}

// EventType returns the event type for PlanCalculatedData
func (d *PlanCalculatedData) EventType() EventType {
	return PlanCalculated
}

// AllocationTargetsChangedData contains data for AllocationTargetsChanged events
type AllocationTargetsChangedData struct {
	AccountID  int64 `json:"account_id"`
	Portfolios int   `json:"portfolios"`
}

// EventType returns the event type for AllocationTargetsChangedData
func (d *AllocationTargetsChangedData) EventType() EventType {
	return AllocationTargetsChanged
}

// AllocationRulesChangedData contains data for AllocationRulesChanged events
type AllocationRulesChangedData struct {
	AccountID    int64   `json:"account_id"`
	MaxPerStock  float64 `json:"max_per_stock"`
	MaxPerETF    float64 `json:"max_per_etf"`
	MaxPerCrypto float64 `json:"max_per_crypto"`
}

// EventType returns the event type for AllocationRulesChangedData
func (d *AllocationRulesChangedData) EventType() EventType {
	return AllocationRulesChanged
}

// HoldingsChangedData contains data for HoldingsChanged events
type HoldingsChangedData struct {
	AccountID int64  `json:"account_id"`
	HoldingID int64  `json:"holding_id"`
	Action    string `json:"action"` // created, deleted
}

// EventType returns the event type for HoldingsChangedData
func (d *HoldingsChangedData) EventType() EventType {
	return HoldingsChanged
}

// DeploymentCalculatedData contains data for DeploymentCalculated events
type DeploymentCalculatedData struct {
	AccountID       int64  `json:"account_id"`
	Mode            string `json:"mode"`
	Amount          string `json:"amount"`
	Recommendations int    `json:"recommendations"`
}

// EventType returns the event type for DeploymentCalculatedData
func (d *DeploymentCalculatedData) EventType() EventType {
	return DeploymentCalculated
}

// CacheInvalidatedData contains data for CacheInvalidated events
type CacheInvalidatedData struct {
	AccountID int64  `json:"account_id"`
	Reason    string `json:"reason"`
}

// EventType returns the event type for CacheInvalidatedData
func (d *CacheInvalidatedData) EventType() EventType {
	return CacheInvalidated
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Files      []string `json:"files"`
	SizeBytes  int64    `json:"size_bytes"`
	Uploaded   bool     `json:"uploaded"`
	DurationMs int64    `json:"duration_ms"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
