package updater

// State is a step of the transaction.
type State int

// Transaction states in the order they are entered.
const (
	StateIdle State = iota
	StateLocked
	StateBackedUp
	StateDownloading
	StateEvaluating
	StateCommitted
	StateRolledBack
	StateReleased
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLocked:
		return "locked"
	case StateBackedUp:
		return "backed-up"
	case StateDownloading:
		return "downloading"
	case StateEvaluating:
		return "evaluating"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled-back"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}
