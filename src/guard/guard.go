// Package guard implements the admission check that throttles automated
// reply generation per conversation.
package guard

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Tunables for the admission check.
const (
	// MaxMessageRunes is the longest message the guard will admit.
	MaxMessageRunes = 400

	// Cooldown is the minimum interval between two automated replies.
	Cooldown = 8 * time.Second

	// WindowSize is how many recent user messages the flood check inspects.
	WindowSize = 4

	// repeatThreshold is how many identical recent messages trigger a denial.
	repeatThreshold = 2
)

// Reason explains a denial. Reasons are for logs only and are never shown to
// the end user.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonEmpty    Reason = "empty_message"
	ReasonTooLong  Reason = "message_too_long"
	ReasonCooldown Reason = "cooldown_active"
	ReasonRepeated Reason = "repeated_message"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allow  bool
	Reason Reason
}

// ShouldAllowAI decides whether an automated reply may be generated for the
// message. It is pure: identical arguments always produce identical results.
// lastReply is the time of the last successful automated reply; the zero
// value means none has been issued. recent holds the previously recorded
// user messages, oldest first; only the last WindowSize entries are checked.
func ShouldAllowAI(message string, lastReply time.Time, recent []string, now time.Time) Decision {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return Decision{Allow: false, Reason: ReasonEmpty}
	}
	if utf8.RuneCountInString(msg) > MaxMessageRunes {
		return Decision{Allow: false, Reason: ReasonTooLong}
	}
	if !lastReply.IsZero() && now.Sub(lastReply) < Cooldown {
		return Decision{Allow: false, Reason: ReasonCooldown}
	}

	window := recent
	if len(window) > WindowSize {
		window = window[len(window)-WindowSize:]
	}
	identical := 0
	for _, prev := range window {
		if strings.TrimSpace(prev) == msg {
			identical++
		}
	}
	if identical >= repeatThreshold {
		return Decision{Allow: false, Reason: ReasonRepeated}
	}

	return Decision{Allow: true, Reason: ReasonNone}
}

// AppendToWindow records a message in a rolling window bounded to WindowSize,
// dropping the oldest entry when full.
func AppendToWindow(window []string, message string) []string {
	window = append(window, message)
	if len(window) > WindowSize {
		window = window[len(window)-WindowSize:]
	}
	return window
}
