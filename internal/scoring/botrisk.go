package scoring

import (
	"strings"

	"revinar.io/go.gate/internal/telemetry"
)

// Weights are the per-category penalty weights for the bot-risk strategy.
type Weights struct {
	UserAgent       float64
	BrowserFeatures float64
	MouseMovements  float64
	Keyboard        float64
	TimeOnPage      float64
}

// DefaultWeights mirrors the tuning the heuristics were calibrated with.
var DefaultWeights = Weights{
	UserAgent:       10,
	BrowserFeatures: 20,
	MouseMovements:  15,
	Keyboard:        10,
	TimeOnPage:      10,
}

// DefaultUABlacklist is matched case-insensitively as substrings of the
// request user-agent.
var DefaultUABlacklist = []string{
	"bot", "crawl", "spider", "curl", "wget", "scrape", "headless",
	"python-requests", "go-http-client", "java", "phantomjs", "selenium",
}

// BotRiskScorer grades a payload on a 0–100 scale, higher meaning more
// bot-like. It accumulates weighted penalties and clamps the sum.
type BotRiskScorer struct {
	// Threshold is the score above which the client is treated as a bot.
	// 70 in the default configuration.
	Threshold float64
	Weights   Weights
	Blacklist []string
}

func NewBotRiskScorer(threshold float64) *BotRiskScorer {
	return &BotRiskScorer{
		Threshold: threshold,
		Weights:   DefaultWeights,
		Blacklist: DefaultUABlacklist,
	}
}

func (s *BotRiskScorer) Mode() string { return "botrisk" }

// BlacklistedUA reports whether ua contains any blacklisted substring.
func (s *BotRiskScorer) BlacklistedUA(ua string) bool {
	lower := strings.ToLower(ua)
	for _, term := range s.Blacklist {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

func (s *BotRiskScorer) Score(p *telemetry.Payload, ctx Context) Result {
	result := Result{Mode: s.Mode(), Indicators: []string{}}
	if p == nil {
		p = &telemetry.Payload{}
	}

	score := 0.0

	if s.BlacklistedUA(ctx.RequestUserAgent) {
		result.Indicators = append(result.Indicators, IndicatorBlacklistedUserAgent)
		score += s.Weights.UserAgent
	}

	// Real users produce at least a handful of pointer events.
	if p.Mouse == nil || p.Mouse.MovementCount < 5 {
		result.Indicators = append(result.Indicators, IndicatorLowMouseActivity)
		score += s.Weights.MouseMovements * 0.7
	}

	if p.Keyboard == nil || p.Keyboard.KeyPressCount < 1 {
		result.Indicators = append(result.Indicators, IndicatorNoKeyboardActivity)
		score += s.Weights.Keyboard * 0.5
	}

	// Near-perfect keystroke rhythm is a scripted-input tell.
	if p.Keyboard != nil && p.Keyboard.TypingRhythm > 0.9 {
		result.Indicators = append(result.Indicators, IndicatorRoboticTypingRhythm)
		score += s.Weights.Keyboard * 0.5
	}

	if p.TimeOnPageSeconds < 3 {
		result.Indicators = append(result.Indicators, IndicatorShortTimeOnPage)
		score += s.Weights.TimeOnPage
	}

	if p.WebGL == nil || !p.WebGL.Available {
		result.Indicators = append(result.Indicators, IndicatorMissingWebGL)
		score += s.Weights.BrowserFeatures * 0.7
	}

	if p.Environment == nil || !boolTrue(p.Environment.CookiesEnabled) {
		result.Indicators = append(result.Indicators, IndicatorCookiesDisabled)
		score += s.Weights.BrowserFeatures * 0.3
	}

	result.BotScore = clamp(score, 0, 100)
	result.Human = result.BotScore <= s.Threshold
	return result
}
