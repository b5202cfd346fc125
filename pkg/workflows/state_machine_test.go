package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateMachineOnlyStepsForward(t *testing.T) {
	sm := NewStateMachine()
	stages := []string{StageSurvey, StageDesign, StageBidding, StagePM, StageClosed}

	for i, from := range stages {
		for j, to := range stages {
			assert.Equal(t, j == i+1, sm.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStateMachineNext(t *testing.T) {
	sm := NewStateMachine()

	next, ok := sm.Next(StageSurvey)
	assert.True(t, ok)
	assert.Equal(t, StageDesign, next)

	next, ok = sm.Next(StagePM)
	assert.True(t, ok)
	assert.Equal(t, StageClosed, next)

	_, ok = sm.Next(StageClosed)
	assert.False(t, ok)

	_, ok = sm.Next("completed")
	assert.False(t, ok)
}

func TestStateMachineTerminal(t *testing.T) {
	sm := NewStateMachine()

	assert.True(t, sm.IsTerminal(StageClosed))
	assert.False(t, sm.IsTerminal(StagePM))
	assert.False(t, sm.IsTerminal("unknown"))
	assert.Empty(t, sm.GetAllowedTransitions("unknown"))
}
