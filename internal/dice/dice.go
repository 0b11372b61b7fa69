// Package dice parses dice notation and rolls it.
package dice

import (
	"fmt"                      // Error wrapping
	"math/rand/v2"             // Random number generation
	"strconv"                  // String conversion
	"strings"                  // Notation parsing
	"sync"                     // Guards the shared generator
	"tabletop/internal/domain" // Validation errors
)

// Limits on a single roll request.
const (
	MaxCount = 100
	MaxSize  = 1000
)

// Spec is a parsed dice expression such as 3d6.
type Spec struct {
	Count int
	Size  int
}

func (s Spec) String() string {
	return fmt.Sprintf("%dd%d", s.Count, s.Size)
}

// Parse accepts "[count]d<size>" or a bare "<size>". The count defaults to 1.
func Parse(notation string) (Spec, error) {
	n := strings.ToLower(strings.TrimSpace(notation)) // Accept 2D6 as well
	if n == "" {
		return Spec{}, fmt.Errorf("%w: empty dice notation", domain.ErrValidation)
	}

	count, size := "1", n // A bare number is one die
	if i := strings.IndexByte(n, 'd'); i >= 0 {
		if i > 0 {
			count = n[:i] // Empty means one die
		}
		size = n[i+1:]
	}

	c, err := strconv.Atoi(count)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: dice count %q is not a number", domain.ErrValidation, count)
	}
	s, err := strconv.Atoi(size)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: die size %q is not a number", domain.ErrValidation, size)
	}
	if c < 1 || c > MaxCount {
		return Spec{}, fmt.Errorf("%w: dice count must be between 1 and %d", domain.ErrValidation, MaxCount)
	}
	if s < 1 || s > MaxSize {
		return Spec{}, fmt.Errorf("%w: die size must be between 1 and %d", domain.ErrValidation, MaxSize)
	}
	return Spec{Count: c, Size: s}, nil
}

// Result is the outcome of one roll.
type Result struct {
	Notation string `json:"dice"`
	Rolls    []int  `json:"rolls"`
	Modifier int    `json:"modifier"`
	Total    int    `json:"total"`
}

// Describe renders the chat line announcing the roll.
func (r Result) Describe(username, reason string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎲 %s rolled %s", username, r.Notation)
	if r.Modifier > 0 {
		fmt.Fprintf(&b, " +%d", r.Modifier)
	} else if r.Modifier < 0 {
		fmt.Fprintf(&b, " %d", r.Modifier)
	}
	if reason != "" {
		fmt.Fprintf(&b, " for %s", reason)
	}
	parts := make([]string, len(r.Rolls))
	for i, v := range r.Rolls {
		parts[i] = strconv.Itoa(v)
	}
	fmt.Fprintf(&b, ": [%s] = **%d**", strings.Join(parts, ", "), r.Total)
	return b.String()
}

// Roller draws uniformly distributed die faces. The zero value uses the
// runtime random source.
type Roller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoller returns a roller backed by the runtime's random source.
func NewRoller() *Roller {
	return &Roller{}
}

// NewSeededRoller returns a deterministic roller, for tests and replays.
func NewSeededRoller(seed uint64) *Roller {
	return &Roller{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *Roller) face(size int) int {
	if r.rng == nil {
		return rand.IntN(size) + 1 // Runtime source is safe for concurrent use
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(size) + 1
}

// Roll rolls spec and adds modifier. notation is echoed back verbatim.
func (r *Roller) Roll(notation string, spec Spec, modifier int) Result {
	res := Result{Notation: notation, Rolls: make([]int, spec.Count), Modifier: modifier}
	sum := 0
	for i := range res.Rolls {
		res.Rolls[i] = r.face(spec.Size)
		sum += res.Rolls[i]
	}
	res.Total = sum + modifier // Modifier applies once, not per die
	return res
}
