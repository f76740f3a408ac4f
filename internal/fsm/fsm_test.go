package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPathWithoutSummary(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateRecording, next)

	next, err = Transition(next, EventStop)
	require.NoError(t, err)
	require.Equal(t, StateStopped, next)

	next, err = Transition(next, EventTranscribe)
	require.NoError(t, err)
	require.Equal(t, StateTranscribing, next)

	next, err = Transition(next, EventTranscribed)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionHappyPathWithSummary(t *testing.T) {
	steps := []struct {
		event Event
		want  State
	}{
		{EventStart, StateRecording},
		{EventStop, StateStopped},
		{EventTranscribe, StateTranscribing},
		{EventSummarize, StateSummarizing},
		{EventSummarized, StateIdle},
	}

	state := StateIdle
	for _, step := range steps {
		next, err := Transition(state, step.event)
		require.NoError(t, err)
		require.Equal(t, step.want, next)
		state = next
	}
}

func TestTransitionFailFromAnyStateGoesError(t *testing.T) {
	states := []State{StateIdle, StateRecording, StateStopped, StateTranscribing, StateSummarizing, StateError}
	for _, state := range states {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateError, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle stop invalid", state: StateIdle, event: EventStop, want: StateIdle, wantErr: true},
		{name: "idle cancel invalid", state: StateIdle, event: EventCancel, want: StateIdle, wantErr: true},
		{name: "recording start invalid", state: StateRecording, event: EventStart, want: StateRecording, wantErr: true},
		{name: "recording transcribe invalid", state: StateRecording, event: EventTranscribe, want: StateRecording, wantErr: true},
		{name: "stopped stop invalid", state: StateStopped, event: EventStop, want: StateStopped, wantErr: true},
		{name: "transcribing stop invalid", state: StateTranscribing, event: EventStop, want: StateTranscribing, wantErr: true},
		{name: "transcribing cancel invalid", state: StateTranscribing, event: EventCancel, want: StateTranscribing, wantErr: true},
		{name: "summarizing stop invalid", state: StateSummarizing, event: EventStop, want: StateSummarizing, wantErr: true},
		{name: "summarizing start invalid", state: StateSummarizing, event: EventStart, want: StateSummarizing, wantErr: true},
		{name: "error start invalid", state: StateError, event: EventStart, want: StateError, wantErr: true},
		{name: "error reset valid", state: StateError, event: EventReset, want: StateIdle, wantErr: false},
		{name: "recording cancel valid", state: StateRecording, event: EventCancel, want: StateIdle, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}

func TestBusy(t *testing.T) {
	require.False(t, Busy(StateIdle))
	require.False(t, Busy(StateError))
	require.True(t, Busy(StateRecording))
	require.True(t, Busy(StateStopped))
	require.True(t, Busy(StateTranscribing))
	require.True(t, Busy(StateSummarizing))
}
