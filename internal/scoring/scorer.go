package scoring

import (
	"revinar.io/go.gate/internal/telemetry"
)

// Indicator tags appended to a Result in rule order.
const (
	IndicatorInsufficientInteraction = "insufficient_interaction"
	IndicatorUniformMouseMovement    = "uniform_mouse_movement"
	IndicatorAbnormalMouseSpeed      = "abnormal_mouse_speed"
	IndicatorAbnormalKeyHoldTime     = "abnormal_key_hold_time"
	IndicatorAbnormalTypingRhythm    = "abnormal_typing_rhythm"
	IndicatorMismatchedUserAgent     = "mismatched_user_agent"
	IndicatorAutomationDetected      = "automation_detected"
	IndicatorMissingStorageAPIs      = "missing_storage_apis"
	IndicatorSuspiciouslyFast        = "suspiciously_fast_interaction"

	IndicatorBlacklistedUserAgent = "blacklisted_user_agent"
	IndicatorLowMouseActivity     = "insufficient_mouse_activity"
	IndicatorNoKeyboardActivity   = "no_keyboard_activity"
	IndicatorRoboticTypingRhythm  = "robotic_typing_rhythm"
	IndicatorShortTimeOnPage      = "short_time_on_page"
	IndicatorMissingWebGL         = "missing_webgl"
	IndicatorCookiesDisabled      = "cookies_disabled"
)

// Context carries the request-scoped facts a scorer may compare the payload
// against. Both fields may be empty when no session or user-agent is known.
type Context struct {
	RequestUserAgent string
	SessionUserAgent string
	ClientIP         string
}

// Result is the output of one scoring pass. Exactly one of HumanProbability
// and BotScore is meaningful depending on Mode; Human is the threshold
// decision either way. Results are pure function output and are never stored
// beyond the response and the audit trail.
type Result struct {
	Mode             string   `json:"mode"`
	HumanProbability float64  `json:"human_probability,omitempty"` // [0,1], higher = more human
	BotScore         float64  `json:"bot_score,omitempty"`         // [0,100], higher = more bot-like
	Indicators       []string `json:"indicators,omitempty"`
	Human            bool     `json:"human"`
}

// ScoreValue returns the scalar for audit/metrics regardless of mode.
func (r Result) ScoreValue() float64 {
	if r.Mode == "botrisk" {
		return r.BotScore
	}
	return r.HumanProbability
}

// Scorer converts a telemetry payload into a Result. Implementations must be
// deterministic for identical input, must not fail, and must treat absent or
// malformed sub-objects as "no signal".
type Scorer interface {
	Score(p *telemetry.Payload, ctx Context) Result
	Mode() string
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boolTrue(b *bool) bool {
	return b != nil && *b
}
