package leads

const (
	StatusNew     = "new"
	DefaultSource = "webhook"
)

type Lead struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	Name           string                 `json:"name"`
	Email          string                 `json:"email,omitempty"`
	Phone          string                 `json:"phone,omitempty"`
	Company        string                 `json:"company,omitempty"`
	Source         string                 `json:"source"`
	Value          float64                `json:"value"`
	Status         string                 `json:"status"` // new, contacted, qualified, won, lost
	CustomFields   map[string]interface{} `json:"custom_fields,omitempty"` // JSON
	EndpointID     string                 `json:"endpoint_id,omitempty"`
	CreatedAt      int64                  `json:"created_at"`
	UpdatedAt      int64                  `json:"updated_at"`
}

type Note struct {
	ID             string `json:"id"`
	LeadID         string `json:"lead_id"`
	OrganizationID string `json:"organization_id"`
	Body           string `json:"body"`
	CreatedAt      int64  `json:"created_at"`
}

type Tag struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Color          string `json:"color"`
	CreatedAt      int64  `json:"created_at"`
}
