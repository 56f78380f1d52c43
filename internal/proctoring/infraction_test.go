package proctoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateFocus(t *testing.T) {
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("focused resets the clock", func(t *testing.T) {
		since := t0
		d := EvaluateFocus(true, &since, t0.Add(10*time.Second))
		assert.False(t, d.ShouldWarn)
		assert.Nil(t, d.FocusLostSince)
	})

	t.Run("first unfocused tick starts the clock without warning", func(t *testing.T) {
		d := EvaluateFocus(false, nil, t0)
		assert.False(t, d.ShouldWarn)
		if assert.NotNil(t, d.FocusLostSince) {
			assert.Equal(t, t0, *d.FocusLostSince)
		}
	})

	t.Run("warns at the threshold", func(t *testing.T) {
		since := t0
		d := EvaluateFocus(false, &since, t0.Add(1999*time.Millisecond))
		assert.False(t, d.ShouldWarn)

		d = EvaluateFocus(false, &since, t0.Add(2000*time.Millisecond))
		assert.True(t, d.ShouldWarn)
	})

	t.Run("never requests logout", func(t *testing.T) {
		since := t0
		d := EvaluateFocus(false, &since, t0.Add(time.Hour))
		assert.True(t, d.ShouldWarn)
		// FocusDecision has no logout field at all; the clock survives.
		assert.Equal(t, since, *d.FocusLostSince)
	})
}

func TestEvaluateAudio(t *testing.T) {
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	since := t0

	cases := []struct {
		name       string
		elapsed    time.Duration
		wantWarn   bool
		wantLogout bool
	}{
		{"below warning threshold", 3999 * time.Millisecond, false, false},
		{"at warning threshold", 4000 * time.Millisecond, true, false},
		{"between thresholds", 10 * time.Second, true, false},
		{"at logout threshold", 15 * time.Second, true, true},
		{"late tick jumps straight to logout", 40 * time.Second, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := EvaluateAudio(true, &since, t0.Add(tc.elapsed))
			assert.Equal(t, tc.wantWarn, d.ShouldWarn)
			assert.Equal(t, tc.wantLogout, d.ShouldLogout)
		})
	}

	t.Run("silence resets the clock", func(t *testing.T) {
		d := EvaluateAudio(false, &since, t0.Add(time.Minute))
		assert.False(t, d.ShouldWarn)
		assert.False(t, d.ShouldLogout)
		assert.Nil(t, d.AudioStartedSince)
	})

	t.Run("first audio tick starts the clock", func(t *testing.T) {
		d := EvaluateAudio(true, nil, t0)
		assert.False(t, d.ShouldWarn)
		if assert.NotNil(t, d.AudioStartedSince) {
			assert.Equal(t, t0, *d.AudioStartedSince)
		}
	})
}
