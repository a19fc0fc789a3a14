package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerSync    Trigger = "SYNC"
	TriggerSucceed Trigger = "SUCCEED"
	TriggerFail    Trigger = "FAIL"
	TriggerVoid    Trigger = "VOID"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
