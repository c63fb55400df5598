package audit

import (
	"context"
	"time"

	id "tokengate/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	// Examples: module lifecycle changes, transfer rejections, recorded transfers.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	// Examples: unauthorized admin operations.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Token     id.TokenID    `json:"token,omitempty"`
	Subject   string        `json:"subject,omitempty"`
	Action    string        `json:"action"`
	Module    string        `json:"module,omitempty"`
	Decision  string        `json:"decision,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Amount    string        `json:"amount,omitempty"`
	// ActorID tracks who performed the action when different from Subject.
	// Used for admin operations on module configuration.
	ActorID string `json:"actor_id,omitempty"`
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string `json:"request_id,omitempty"`
}

// Store persists audit events. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
}

type AuditEvent string

const (
	// Module lifecycle events
	EventModuleEnabled       AuditEvent = "module_enabled"
	EventModuleDisabled      AuditEvent = "module_disabled"
	EventModuleConfigUpdated AuditEvent = "module_config_updated"

	// Evaluation events
	EventTransferRejected AuditEvent = "transfer_rejected"
	EventTransferRecorded AuditEvent = "transfer_recorded"

	// Rule table events
	EventRestrictionsUpdated  AuditEvent = "restrictions_updated"
	EventCountryRuleChanged   AuditEvent = "country_rule_changed"
	EventBilateralRuleChanged AuditEvent = "bilateral_rule_changed"

	// Access control events
	EventAdminUnauthorized AuditEvent = "admin_unauthorized"
)

// eventCategories maps each audit event to its category.
// Compliance: legal/regulatory significance, long retention required.
// Security: security monitoring and alerting.
var eventCategories = map[AuditEvent]EventCategory{
	EventModuleEnabled:        CategoryCompliance,
	EventModuleDisabled:       CategoryCompliance,
	EventModuleConfigUpdated:  CategoryCompliance,
	EventTransferRejected:     CategoryCompliance,
	EventTransferRecorded:     CategoryCompliance,
	EventRestrictionsUpdated:  CategoryCompliance,
	EventCountryRuleChanged:   CategoryCompliance,
	EventBilateralRuleChanged: CategoryCompliance,
	EventAdminUnauthorized:    CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
