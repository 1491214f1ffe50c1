package service

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

const (
	referenceAlphabet       = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	referenceCheckedTries   = 5
	referenceSuffixLen      = 5
	referenceFallbackSuffix = 9
)

// ReferenceChecker answers whether a reference is already in use.
type ReferenceChecker interface {
	ReferenceTaken(ctx context.Context, reference string) (bool, error)
}

// ReferenceGenerator allocates booking references of the form
// RES-<base36 millis>-<5 chars>.  After five taken candidates it falls
// back to RES-<decimal millis>-<9 chars> without checking; the unique
// index of the store is the final guard.
type ReferenceGenerator struct {
	checker ReferenceChecker
	now     func() time.Time
	random  func(n int) string
}

// NewReferenceGenerator returns a generator using the wall clock and
// math/rand.
func NewReferenceGenerator(checker ReferenceChecker) *ReferenceGenerator {
	return &ReferenceGenerator{
		checker: checker,
		now:     time.Now,
		random:  randomString,
	}
}

// WithClock replaces the time source.
func (g *ReferenceGenerator) WithClock(now func() time.Time) *ReferenceGenerator {
	g.now = now
	return g
}

// WithRandom replaces the source of random suffixes.
func (g *ReferenceGenerator) WithRandom(random func(n int) string) *ReferenceGenerator {
	g.random = random
	return g
}

// Next returns a reference that was free when checked, or the unchecked
// fallback.  It only fails when the existence check itself fails.
func (g *ReferenceGenerator) Next(ctx context.Context) (string, error) {
	for i := 0; i < referenceCheckedTries; i++ {
		ms := g.now().UnixMilli()
		candidate := "RES-" + strings.ToUpper(strconv.FormatInt(ms, 36)) + "-" + g.random(referenceSuffixLen)
		taken, err := g.checker.ReferenceTaken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check reference: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return fmt.Sprintf("RES-%d-%s", g.now().UnixMilli(), g.random(referenceFallbackSuffix)), nil
}

func randomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = referenceAlphabet[rand.Intn(len(referenceAlphabet))]
	}
	return string(b)
}
