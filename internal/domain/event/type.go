package event

// Type identifies the type of domain event
type Type string

const (
	TypeIssuanceIssued Type = "issuance.issued"
	TypeIssuanceVoided Type = "issuance.voided"
	TypePresetUpdated  Type = "preset.updated"
	TypeIntentQueued   Type = "intent.queued"
	TypeIntentSynced   Type = "intent.synced"
	TypeIntentFailed   Type = "intent.failed"
	TypeIntentDiscard  Type = "intent.discarded"
	TypeOutageToggled  Type = "simulation.outage_toggled"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeIssuanceIssued,
		TypeIssuanceVoided,
		TypePresetUpdated,
		TypeIntentQueued,
		TypeIntentSynced,
		TypeIntentFailed,
		TypeIntentDiscard,
		TypeOutageToggled:
		return true
	default:
		return false
	}
}

// All returns every defined event type
func All() []Type {
	return []Type{
		TypeIssuanceIssued,
		TypeIssuanceVoided,
		TypePresetUpdated,
		TypeIntentQueued,
		TypeIntentSynced,
		TypeIntentFailed,
		TypeIntentDiscard,
		TypeOutageToggled,
	}
}
