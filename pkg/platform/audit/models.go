package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// Categories drive routing: compliance events are persisted synchronously,
// everything else is buffered.
type EventCategory string

const (
	// CategoryCompliance covers decisions with regulatory significance:
	// approvals, verification results, chain evolution. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers denied or suspicious actions that feed alerting.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity; may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// ActorID is the principal that performed the action (verifier, approver, system).
	ActorID string
	// Subject is the entity acted on: a verifier, request, change or composite token id.
	Subject  string
	Action   string
	Decision string
	Reason   string
	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string
	ClientIP  string
	UserAgent string
	// Attributes carries small action-specific values (tier, hashes, counts).
	Attributes map[string]string
}

type AuditEvent string

const (
	// Verifier directory
	EventVerifierRegistered         AuditEvent = "verifier_registered"
	EventVerifierApproved           AuditEvent = "verifier_approved"
	EventVerifierRejected           AuditEvent = "verifier_rejected"
	EventVerifierSuspended          AuditEvent = "verifier_suspended"
	EventVerifierReinstated         AuditEvent = "verifier_reinstated"
	EventVerifierCredentialsRenewed AuditEvent = "verifier_credentials_renewed"
	EventVerifiersAssigned          AuditEvent = "verifiers_assigned"
	EventReputationUpdated          AuditEvent = "verifier_reputation_updated"

	// Verification requests
	EventVerificationRequested AuditEvent = "verification_requested"
	EventVerificationResult    AuditEvent = "verification_result_submitted"
	EventVerificationCompleted AuditEvent = "verification_completed"
	EventUnauthorizedVerifier  AuditEvent = "unauthorized_verifier"

	// Approval workflow
	EventChangeCreated        AuditEvent = "change_created"
	EventChangeSubmitted      AuditEvent = "change_submitted"
	EventApprovalDecision     AuditEvent = "approval_decision_recorded"
	EventChangeApproved       AuditEvent = "change_approved"
	EventChangeRejected       AuditEvent = "change_rejected"
	EventChangeArchived       AuditEvent = "change_archived"
	EventUnauthorizedApprover AuditEvent = "unauthorized_approver"

	// Evolution chain
	EventChainInitialized    AuditEvent = "chain_initialized"
	EventChainEvolved        AuditEvent = "chain_evolved"
	EventEvolutionDenied     AuditEvent = "evolution_denied"
	EventIntegrityViolation  AuditEvent = "integrity_violation"
	EventVerificationModeSet AuditEvent = "verification_mode_set"

	// Delivery
	EventWebhookDeliveryFailed AuditEvent = "webhook_delivery_failed"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventVerifierRegistered:    CategoryCompliance,
	EventVerifierApproved:      CategoryCompliance,
	EventVerifierRejected:      CategoryCompliance,
	EventVerificationResult:    CategoryCompliance,
	EventVerificationCompleted: CategoryCompliance,
	EventApprovalDecision:      CategoryCompliance,
	EventChangeApproved:        CategoryCompliance,
	EventChangeRejected:        CategoryCompliance,
	EventChangeArchived:        CategoryCompliance,
	EventChainInitialized:      CategoryCompliance,
	EventChainEvolved:          CategoryCompliance,
	EventVerificationModeSet:   CategoryCompliance,

	EventVerifierSuspended:    CategorySecurity,
	EventUnauthorizedVerifier: CategorySecurity,
	EventUnauthorizedApprover: CategorySecurity,
	EventEvolutionDenied:      CategorySecurity,
	EventIntegrityViolation:   CategorySecurity,

	EventVerifierReinstated:         CategoryOperations,
	EventVerifierCredentialsRenewed: CategoryOperations,
	EventVerifiersAssigned:          CategoryOperations,
	EventReputationUpdated:          CategoryOperations,
	EventVerificationRequested:      CategoryOperations,
	EventChangeCreated:              CategoryOperations,
	EventChangeSubmitted:            CategoryOperations,
	EventWebhookDeliveryFailed:      CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Emitter is what services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
