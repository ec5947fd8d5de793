// Package dice parses "dN" notation and rolls dice.
package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"sync"
)

var (
	// ErrInvalidNotation is returned when a dice type is not "d" followed by a number.
	ErrInvalidNotation = errors.New("dice type must look like d20")
	// ErrInvalidDiceSpec is returned when sides or count is out of range.
	ErrInvalidDiceSpec = errors.New("dice sides and count must be positive")
)

var notation = regexp.MustCompile(`^[dD]([0-9]+)$`)

// ParseSides returns N for "dN".
func ParseSides(diceType string) (int, error) {
	m := notation.FindStringSubmatch(diceType)
	if m == nil {
		return 0, ErrInvalidNotation
	}
	sides, err := strconv.Atoi(m[1])
	if err != nil || sides <= 0 {
		return 0, ErrInvalidNotation
	}
	return sides, nil
}

// Spec one homogeneous roll such as 3d6+2
type Spec struct {
	Sides    int
	Count    int
	Modifier int
}

// Result of a Spec
type Result struct {
	Rolls []int
	Total int
}

// Roller rolls dice from a seeded source. Safe for concurrent use.
type Roller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoller returns a Roller seeded from crypto/rand.
func NewRoller() (*Roller, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSeededRoller(seed), nil
}

// NewSeededRoller returns a deterministic Roller.
func NewSeededRoller(seed int64) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// Roll rolls Count dice with Sides faces; Total is their sum plus Modifier.
func (r *Roller) Roll(spec Spec) (Result, error) {
	if spec.Sides <= 0 || spec.Count <= 0 {
		return Result{}, ErrInvalidDiceSpec
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rolls := make([]int, spec.Count)
	total := 0
	for i := range rolls {
		rolls[i] = rollDie(r.rng, spec.Sides)
		total += rolls[i]
	}
	return Result{Rolls: rolls, Total: total + spec.Modifier}, nil
}

// rollDie rolls a single die with the provided number of sides.
func rollDie(rng *rand.Rand, sides int) int {
	return rng.Intn(sides) + 1
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
