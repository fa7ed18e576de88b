package scoring

import (
	"revinar.io/go.gate/internal/telemetry"
)

// MinInteractionEvents is the floor below which a payload is scored 0.1
// without further analysis.
const MinInteractionEvents = 5

// HumanProbabilityScorer grades a payload on a 0.0–1.0 scale, higher meaning
// more human-like. It starts from a neutral 0.5 and applies additive
// adjustments for each behavioral and environmental signal.
type HumanProbabilityScorer struct {
	// Threshold is the probability above which the client passes. 0.7 in the
	// default configuration.
	Threshold float64
}

func NewHumanProbabilityScorer(threshold float64) *HumanProbabilityScorer {
	return &HumanProbabilityScorer{Threshold: threshold}
}

func (s *HumanProbabilityScorer) Mode() string { return "human" }

func (s *HumanProbabilityScorer) Score(p *telemetry.Payload, ctx Context) Result {
	result := Result{Mode: s.Mode(), Indicators: []string{}}
	if p == nil {
		p = &telemetry.Payload{}
	}

	totalEvents := p.TotalEvents()
	if totalEvents < MinInteractionEvents {
		result.Indicators = append(result.Indicators, IndicatorInsufficientInteraction)
		result.HumanProbability = 0.1
		result.Human = result.HumanProbability > s.Threshold
		return result
	}

	probability := 0.5

	if m := p.Mouse; m != nil {
		// Natural movement has varied speeds and directions.
		if m.MovementCount > 10 {
			probability += 0.1
		}
		if m.UniqueDirections > 4 {
			probability += 0.1
		}
		if m.UniqueDirections < 3 && m.MovementCount > 5 {
			result.Indicators = append(result.Indicators, IndicatorUniformMouseMovement)
			probability -= 0.1
		}
		if m.AverageSpeed > 0.05 && m.AverageSpeed < 2.0 {
			probability += 0.1
		} else {
			result.Indicators = append(result.Indicators, IndicatorAbnormalMouseSpeed)
			probability -= 0.1
		}
	}

	if k := p.Keyboard; k != nil {
		if k.KeyPressCount > 5 {
			probability += 0.1
		}
		// Humans typically hold keys for tens of milliseconds, not zero and
		// not indefinitely.
		if k.AverageKeyHoldTime > 30 && k.AverageKeyHoldTime < 300 {
			probability += 0.1
		} else if k.KeyPressCount > 0 {
			result.Indicators = append(result.Indicators, IndicatorAbnormalKeyHoldTime)
			probability -= 0.1
		}
		if k.AverageTimeBetweenKeys > 70 && k.AverageTimeBetweenKeys < 500 {
			probability += 0.1
		} else if k.KeyPressCount > 1 {
			result.Indicators = append(result.Indicators, IndicatorAbnormalTypingRhythm)
			probability -= 0.1
		}
	}

	if tch := p.Touch; tch != nil {
		if tch.TouchCount > 3 {
			probability += 0.1
		}
		// Multi-touch is a strong human signal.
		if tch.MultiTouchUsed {
			probability += 0.15
		}
	}

	if env := p.Environment; env != nil {
		if ctx.SessionUserAgent != "" && env.UserAgent != ctx.SessionUserAgent {
			result.Indicators = append(result.Indicators, IndicatorMismatchedUserAgent)
			probability -= 0.2
		}

		if p.Features != nil && p.Features.AutomationDetected {
			result.Indicators = append(result.Indicators, IndicatorAutomationDetected)
			probability -= 0.3
		}

		if !boolTrue(env.HasLocalStorage) || !boolTrue(env.HasSessionStorage) {
			result.Indicators = append(result.Indicators, IndicatorMissingStorageAPIs)
			probability -= 0.1
		}

		if p.TotalInteractionTime < 1000 && totalEvents > 10 {
			result.Indicators = append(result.Indicators, IndicatorSuspiciouslyFast)
			probability -= 0.2
		}
	}

	// Most automation either lacks WebGL or reports generic drivers.
	if p.WebGL != nil && p.WebGL.Available {
		probability += 0.05
	}

	result.HumanProbability = clamp(probability, 0, 1)
	result.Human = result.HumanProbability > s.Threshold
	return result
}
