// Package challenge generates, tracks and grades the short-lived arithmetic
// puzzles used to re-qualify suspicious clients.
package challenge

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand"
	"strings"
	"sync"
	"time"
)

// TTL is the absolute challenge lifetime.
const TTL = 5 * time.Minute

// KindMath is the only challenge kind currently issued.
const KindMath = "math"

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty maps a configuration string to a Difficulty, falling back
// to Medium for anything unknown.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case Easy:
		return Easy
	case Hard:
		return Hard
	default:
		return Medium
	}
}

// Challenge is one active puzzle. The answer is the exact integer evaluation
// of the problem in canonical string form; it never leaves the engine.
type Challenge struct {
	ID         string     `json:"id"`
	Kind       string     `json:"type"`
	Problem    string     `json:"problem"`
	Difficulty Difficulty `json:"-"`
	Answer     string     `json:"-"`
	Expiry     time.Time  `json:"-"`
}

// Outcome is the result class of one grading attempt.
type Outcome int

const (
	// NotFound: unknown id. Protocol misuse; there is nothing to reissue
	// against, so no replacement challenge is handed back.
	NotFound Outcome = iota
	// Expired: the id was known but stale. The entry is dropped and a fresh
	// challenge of the same difficulty accompanies the result so the client
	// is never dead-ended.
	Expired
	// Incorrect: answer mismatch. The old entry is dropped and replaced,
	// which keeps a single problem from being brute-forced.
	Incorrect
	// Correct: exact match post-trim. The entry is consumed.
	Correct
)

func (o Outcome) String() string {
	switch o {
	case Expired:
		return "expired"
	case Incorrect:
		return "incorrect"
	case Correct:
		return "correct"
	default:
		return "not_found"
	}
}

// GradeResult couples the outcome with the replacement challenge issued on
// the Expired and Incorrect paths.
type GradeResult struct {
	Outcome Outcome
	Next    *Challenge
}

// Engine owns the active-challenge table. All read-modify-write sequences
// (check-expiry-then-delete, grade-then-replace) run under one mutex, so a
// challenge cannot be double-graded by concurrent submissions.
type Engine struct {
	mu     sync.Mutex
	active map[string]*Challenge
	now    func() time.Time
	intn   func(n int) int
}

func NewEngine() *Engine {
	return &Engine{
		active: make(map[string]*Challenge),
		now:    time.Now,
		intn:   mrand.Intn,
	}
}

// Generate creates and registers a new challenge of the given difficulty.
func (e *Engine) Generate(d Difficulty) (*Challenge, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generateLocked(d)
}

func (e *Engine) generateLocked(d Difficulty) (*Challenge, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}

	c := &Challenge{
		ID:         id,
		Kind:       KindMath,
		Difficulty: d,
		Expiry:     e.now().Add(TTL),
	}

	switch d {
	case Easy:
		a, b := e.intn(10), e.intn(10)
		c.Problem = fmt.Sprintf("%d + %d", a, b)
		c.Answer = fmt.Sprintf("%d", a+b)
	case Hard:
		a, b, x, y := e.intn(20), e.intn(20), e.intn(10), e.intn(10)
		c.Problem = fmt.Sprintf("(%d + %d) * %d - %d", a, b, x, y)
		c.Answer = fmt.Sprintf("%d", (a+b)*x-y)
	default:
		a, b, x := e.intn(20), e.intn(20), e.intn(10)
		c.Problem = fmt.Sprintf("%d + %d - %d", a, b, x)
		c.Answer = fmt.Sprintf("%d", a+b-x)
	}

	e.active[c.ID] = c
	return c, nil
}

// Grade consumes the identified challenge and classifies the submitted
// answer. Entries are single-use: every path except NotFound removes the
// graded entry.
func (e *Engine) Grade(id, answer string) (GradeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.active[id]
	if !ok {
		return GradeResult{Outcome: NotFound}, nil
	}

	delete(e.active, id)

	if e.now().After(c.Expiry) {
		next, err := e.generateLocked(c.Difficulty)
		if err != nil {
			return GradeResult{}, err
		}
		return GradeResult{Outcome: Expired, Next: next}, nil
	}

	if strings.TrimSpace(answer) == c.Answer {
		return GradeResult{Outcome: Correct}, nil
	}

	next, err := e.generateLocked(c.Difficulty)
	if err != nil {
		return GradeResult{}, err
	}
	return GradeResult{Outcome: Incorrect, Next: next}, nil
}

// Active reports the current table size.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

func newID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
