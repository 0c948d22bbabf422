package schema

// ValidationResult is one per-block issue found while validating an uploaded schedule.
type ValidationResult struct {
	ScheduleID    int64              `json:"schedule_id"`
	BlockID       int64              `json:"block_id"`
	Status        ValidationStatus   `json:"status"`
	IssueType     string             `json:"issue_type,omitempty"`
	Category      ValidationCategory `json:"category"`
	Criticality   Criticality        `json:"criticality"`
	FieldName     string             `json:"field_name,omitempty"`
	CurrentValue  string             `json:"current_value,omitempty"`
	ExpectedValue string             `json:"expected_value,omitempty"`
	Description   string             `json:"description"`
}
