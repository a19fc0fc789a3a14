package workflow

// State represents a lifecycle state of an issuance or an offline intent
type State string

const (
	// Offline intent states
	StateQueued  State = "QUEUED"
	StatePosting State = "POSTING"
	StateSynced  State = "SYNCED"
	StateFailed  State = "FAILED" // shared: failed intent replay, failed provider call

	// Issuance states
	StateIssued State = "ISSUED"
	StateVoided State = "VOIDED"
)

var validStates = map[State]bool{
	StateQueued:  true,
	StatePosting: true,
	StateSynced:  true,
	StateFailed:  true,
	StateIssued:  true,
	StateVoided:  true,
}

var terminalStates = map[State]bool{
	StateSynced: true,
	StateVoided: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
