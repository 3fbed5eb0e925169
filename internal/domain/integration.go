package domain

import "time"

// DefaultConfig holds the lead defaults chosen in the dialog before the popup opens.
type DefaultConfig struct {
	LeadStatus string `json:"lead_status" validate:"required,max=50"`
	AssigneeID string `json:"assignee_id,omitempty" validate:"max=64"`
}

// ExternalAccountChoice is a selectable target on the provider side (a Facebook Page,
// a Google Ads account, a LinkedIn organization).
type ExternalAccountChoice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Integration is the persisted link between a tenant and an ad platform account.
type Integration struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenant_id"`
	Provider      Provider      `json:"provider"`
	PageID        string        `json:"page_id,omitempty"`
	PageName      string        `json:"page_name,omitempty"`
	DefaultConfig DefaultConfig `json:"default_config"`
	Manual        bool          `json:"manual"`
	WebhookKey    string        `json:"webhook_key,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsLinked reports whether the integration completed either the OAuth or the manual setup.
func (i *Integration) IsLinked() bool {
	if i == nil {
		return false
	}
	return i.PageName != "" || i.Manual
}
