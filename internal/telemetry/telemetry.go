package telemetry

// Payload is the client-submitted behavioral/environment record scored by the
// engine. Every field is untrusted and optional: absent or malformed
// sub-objects degrade to "no signal" during scoring, never to an error.
// Optional fields are omitted when empty.
type Payload struct {
	SessionID string `json:"sessionId,omitempty"`

	Mouse    *MouseStats    `json:"mouseStats,omitempty"`
	Keyboard *KeyboardStats `json:"keyboardStats,omitempty"`
	Touch    *TouchStats    `json:"touchStats,omitempty"`

	Environment *Environment `json:"environment,omitempty"`
	WebGL       *WebGLInfo   `json:"webgl,omitempty"`
	Features    *Features    `json:"features,omitempty"`

	// EventSummary carries raw event counts; scoring falls back to the
	// per-category stats when it is absent.
	EventSummary *EventSummary `json:"eventSummary,omitempty"`

	TimeOnPageSeconds    float64 `json:"timeOnPage,omitempty"`
	TotalInteractionTime float64 `json:"totalInteractionTime,omitempty"` // ms
}

// --- Interaction counters ---

type MouseStats struct {
	MovementCount    int     `json:"movementCount"`
	TotalDistance    float64 `json:"totalDistance,omitempty"`
	UniqueDirections int     `json:"uniqueDirections,omitempty"`
	AverageSpeed     float64 `json:"averageSpeed,omitempty"`
}

type KeyboardStats struct {
	KeyPressCount          int     `json:"keyPressCount"`
	AverageKeyHoldTime     float64 `json:"averageKeyHoldTime,omitempty"`     // ms
	AverageTimeBetweenKeys float64 `json:"averageTimeBetweenKeys,omitempty"` // ms
	// TypingRhythm is a client-computed consistency metric in [0,1];
	// values near 1 mean metronome-perfect keystroke intervals.
	TypingRhythm float64 `json:"typingRhythm,omitempty"`
}

type TouchStats struct {
	TouchCount     int  `json:"touchCount"`
	MultiTouchUsed bool `json:"multiTouchUsed,omitempty"`
}

type EventSummary struct {
	MouseEvents    int `json:"mouseEvents,omitempty"`
	KeyboardEvents int `json:"keyboardEvents,omitempty"`
	TouchEvents    int `json:"touchEvents,omitempty"`
}

// --- Environment descriptors ---

type Environment struct {
	UserAgent       string `json:"userAgent,omitempty"`
	ScreenWidth     int    `json:"screenWidth,omitempty"`
	ScreenHeight    int    `json:"screenHeight,omitempty"`
	ViewportWidth   int    `json:"viewportWidth,omitempty"`
	ViewportHeight  int    `json:"viewportHeight,omitempty"`
	TZOffsetMinutes int    `json:"timezoneOffset,omitempty"`

	CookiesEnabled    *bool `json:"cookiesEnabled,omitempty"`
	HasLocalStorage   *bool `json:"hasLocalStorage,omitempty"`
	HasSessionStorage *bool `json:"hasSessionStorage,omitempty"`
}

type WebGLInfo struct {
	Available bool   `json:"available"`
	Vendor    string `json:"vendor,omitempty"`
	Renderer  string `json:"renderer,omitempty"`
}

// --- Derived flags ---

// Features holds client-derived flags. AutomationDetected is computed from
// known automation markers (webdriver property and friends) on the client and
// is therefore an untrusted signal with fixed weight, not ground truth.
type Features struct {
	AutomationDetected bool `json:"automationDetected,omitempty"`
}

// TotalEvents returns the combined interaction event count used for the
// minimum-interaction gate. The explicit event summary wins when present;
// otherwise the per-category stats are summed.
func (p *Payload) TotalEvents() int {
	if p.EventSummary != nil {
		return p.EventSummary.MouseEvents + p.EventSummary.KeyboardEvents + p.EventSummary.TouchEvents
	}
	total := 0
	if p.Mouse != nil {
		total += p.Mouse.MovementCount
	}
	if p.Keyboard != nil {
		total += p.Keyboard.KeyPressCount
	}
	if p.Touch != nil {
		total += p.Touch.TouchCount
	}
	return total
}
