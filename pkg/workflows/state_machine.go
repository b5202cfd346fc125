package workflows

// Stage names of the project lifecycle, in order
const (
	StageSurvey  = "survey"
	StageDesign  = "design"
	StageBidding = "bidding"
	StagePM      = "pm"
	StageClosed  = "closed"
)

// StateMachine enforces project status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a state machine over the fixed stage sequence.
// Every stage moves exactly one step forward; closed is terminal.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			StageSurvey:  {StageDesign},
			StageDesign:  {StageBidding},
			StageBidding: {StagePM},
			StagePM:      {StageClosed},
			StageClosed:  {},
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

// Next returns the single successor of a stage, false for closed or unknown stages
func (sm *StateMachine) Next(from string) (string, bool) {
	allowed := sm.GetAllowedTransitions(from)
	if len(allowed) == 0 {
		return "", false
	}
	return allowed[0], true
}

// IsTerminal reports whether no transition leaves the stage
func (sm *StateMachine) IsTerminal(stage string) bool {
	allowed, exists := sm.allowedTransitions[stage]
	return exists && len(allowed) == 0
}
