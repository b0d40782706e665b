package models

// Endpoint is a tenant-owned inbound webhook URL. Secret holds the sealed
// value as stored; it is never serialized.
type Endpoint struct {
	ID                 string            `json:"id"`
	OrganizationID     string            `json:"organization_id"`
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	Secret             string            `json:"-"`
	PayloadType        string            `json:"payload_type,omitempty"` // empty means auto-detect
	Events             []string          `json:"events"`                 // JSON array in DB
	IsActive           bool              `json:"is_active"`
	HeaderRules        map[string]string `json:"header_rules,omitempty"` // JSON object in DB
	Retry              RetryPolicy       `json:"retry_config"`
	TotalRequests      int64             `json:"total_requests"`
	SuccessfulRequests int64             `json:"successful_requests"`
	FailedRequests     int64             `json:"failed_requests"`
	LastTriggeredAt    *int64            `json:"last_triggered_at,omitempty"`
	CreatedBy          string            `json:"created_by,omitempty"`
	CreatedAt          int64             `json:"created_at"`
	UpdatedAt          int64             `json:"updated_at"`
}

// RetryPolicy is advisory metadata for the sender; the service never retries.
type RetryPolicy struct {
	MaxAttempts  int `json:"max_attempts" validate:"gte=0"`
	DelaySeconds int `json:"delay_seconds" validate:"gte=0"`
}

func (e *Endpoint) HasSecret() bool {
	return e.Secret != ""
}
