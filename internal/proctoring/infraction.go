package proctoring

import "time"

// Infraction thresholds. Focus loss only ever warns; sustained audio
// escalates from warning to forced logout.
const (
	FocusLostThreshold    = 2 * time.Second
	AudioWarningThreshold = 4 * time.Second
	AudioLogoutThreshold  = 15 * time.Second
)

type FocusDecision struct {
	ShouldWarn     bool
	FocusLostSince *time.Time
}

type AudioDecision struct {
	ShouldWarn        bool
	ShouldLogout      bool
	AudioStartedSince *time.Time
}

// EvaluateFocus decides what to do about the window-focus signal. The
// evaluator is stateless: the caller persists FocusLostSince between ticks
// and feeds it back in. A late tick simply computes a larger elapsed time,
// so missed ticks never lose an infraction.
func EvaluateFocus(isFocused bool, focusLostSince *time.Time, now time.Time) FocusDecision {
	if isFocused {
		return FocusDecision{}
	}
	since := focusLostSince
	if since == nil {
		since = &now
	}
	return FocusDecision{
		ShouldWarn:     now.Sub(*since) >= FocusLostThreshold,
		FocusLostSince: since,
	}
}

// EvaluateAudio decides what to do about the background-audio signal.
// The logout threshold is strictly greater than the warning threshold, so
// a logout decision implies the warning age was already reached.
func EvaluateAudio(audioDetected bool, audioStartedSince *time.Time, now time.Time) AudioDecision {
	if !audioDetected {
		return AudioDecision{}
	}
	since := audioStartedSince
	if since == nil {
		since = &now
	}
	elapsed := now.Sub(*since)
	return AudioDecision{
		ShouldWarn:        elapsed >= AudioWarningThreshold,
		ShouldLogout:      elapsed >= AudioLogoutThreshold,
		AudioStartedSince: since,
	}
}

func FocusWarningMessage() string {
	return "FOCUS ON YOUR EXAMINATION"
}

func AudioWarningMessage() string {
	return "YOU WILL BE LOGGED OUT OF THIS EXAMINATION IF THIS NOISE IS NOT STOPPED NOW!"
}

// LogoutMessage returns the student-facing message for a forced logout.
func LogoutMessage(reason string) string {
	switch reason {
	case "audio":
		return "You have been logged out due to continuous background noise."
	case "focus":
		return "You have been logged out due to prolonged loss of focus."
	default:
		return "You have been logged out from the examination."
	}
}
