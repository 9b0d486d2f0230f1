// Package external declares the named-interface-only contracts for
// collaborators that live outside this orchestrator's scope (§1:
// "treated as external collaborators with named interfaces only").
// Nothing in this package carries business logic; the interfaces exist
// so the rest of the codebase can reference these collaborators without
// reimplementing them.
package external

import "context"

// CredentialStore owns issuing and rotating per-tenant provider
// credentials. The orchestrator only reads what CredentialStore has
// already written into a Client document (see models.Client); it never
// issues or rotates secrets itself.
type CredentialStore interface {
	IssueCredentials(ctx context.Context, clientID, provider string) error
	RotateCredentials(ctx context.Context, clientID, provider string) error
}

// ConversationMemoryStore owns the downstream speech-bot's per-call
// conversation memory. The orchestrator's ContextFlags only say whether
// to include global/agent context; populating that context is this
// collaborator's responsibility.
type ConversationMemoryStore interface {
	LoadContext(ctx context.Context, callUUID string) (map[string]interface{}, error)
	AppendTurn(ctx context.Context, callUUID string, turn map[string]interface{}) error
}

// FileUploadNotifier owns accepting and validating a client's uploaded
// contact list, then notifying the orchestrator of a new listID. The
// orchestrator's ContactStore only reads lists that already exist.
type FileUploadNotifier interface {
	NotifyListReady(ctx context.Context, clientID, listID string) error
}

// ReportQuery owns analytics/reporting over historical call and
// campaign data. Out of scope per §1; the orchestrator exposes only the
// single-row GET /api/v1/calls/:callUUID lookup, not aggregate reports.
type ReportQuery interface {
	CampaignSummary(ctx context.Context, campaignID string) (map[string]interface{}, error)
}
