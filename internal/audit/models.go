package audit

import "time"

// Event is an append-only audit record scoped to one company.
//
// Events are never updated or deleted. Actor and IP capture are best-effort.
type Event struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"companyId"`
	Type      EventType `json:"type"`

	ActorUserID string `json:"actorUserId,omitempty"`
	ActorRole   string `json:"actorRole,omitempty"`
	IPAddress   string `json:"ipAddress,omitempty"`

	// TargetID is the affected record, e.g. a SAML configuration id.
	TargetID string `json:"targetId,omitempty"`
	Message  string `json:"message,omitempty"`
	// Metadata is optional JSON, stored as JSONB.
	Metadata string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

type EventType string

const (
	EventTypeSignUp      EventType = "user_signed_up"
	EventTypeSAMLCreated EventType = "saml_configured"
	EventTypeSAMLUpdated EventType = "saml_updated"
	EventTypeSAMLDeleted EventType = "saml_deleted"
)
