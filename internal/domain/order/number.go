package order

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	defaultNumberPrefix = "ORD"
	defaultNumberDigits = 4
	// MaxNumberDigits keeps the random suffix space within int range.
	MaxNumberDigits = 9
	// localPicks bounds how many candidates Next draws while skipping numbers
	// this process already issued today.
	localPicks = 8
)

// NumberSource produces candidate order numbers.
type NumberSource interface {
	Next() string
}

// NumberGenerator issues order numbers of the form
// <prefix><YYYYMMDD><random digits>. It remembers the numbers it issued for
// the current day in a bloom filter and avoids handing them out twice. The
// database unique constraint stays the source of truth across processes.
type NumberGenerator struct {
	prefix string
	digits int
	now    func() time.Time
	intn   func(n int) int

	mu   sync.Mutex
	day  string
	seen *bloom.BloomFilter
}

// NewNumberGenerator creates a generator. Empty prefix and non-positive digits
// fall back to "ORD" and 4; digits above MaxNumberDigits are clamped.
func NewNumberGenerator(prefix string, digits int) *NumberGenerator {
	if prefix == "" {
		prefix = defaultNumberPrefix
	}
	if digits <= 0 {
		digits = defaultNumberDigits
	}
	digits = min(digits, MaxNumberDigits)
	space := uint(1)
	for range digits {
		space *= 10
	}
	return &NumberGenerator{
		prefix: prefix,
		digits: digits,
		now:    time.Now,
		intn:   rand.IntN,
		seen:   bloom.NewWithEstimates(space, 0.01),
	}
}

// Next returns a candidate number for today.
func (g *NumberGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := g.now().Format("20060102")
	if day != g.day {
		g.day = day
		g.seen.ClearAll()
	}

	var candidate string
	for range localPicks {
		candidate = g.format(day, g.intn(g.space()))
		if !g.seen.TestString(candidate) {
			break
		}
	}
	g.seen.AddString(candidate)
	return candidate
}

// Prefix returns the fixed leading part of every number.
func (g *NumberGenerator) Prefix() string {
	return g.prefix
}

func (g *NumberGenerator) space() int {
	n := 1
	for range g.digits {
		n *= 10
	}
	return n
}

func (g *NumberGenerator) format(day string, suffix int) string {
	var b strings.Builder
	b.Grow(len(g.prefix) + len(day) + g.digits)
	b.WriteString(g.prefix)
	b.WriteString(day)
	fmt.Fprintf(&b, "%0*d", g.digits, suffix)
	return b.String()
}
