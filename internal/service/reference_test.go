package service_test

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/achtaA-a/projet-de-fin/internal/service"
)

var referencePattern = regexp.MustCompile(`^RES-[0-9A-Z]+-[0-9A-Z]{5}$`)

// claimingChecker marks a reference as used the moment it is checked, the
// way a unique insert would.
type claimingChecker struct {
	seen sync.Map
}

func (c *claimingChecker) ReferenceTaken(ctx context.Context, ref string) (bool, error) {
	_, loaded := c.seen.LoadOrStore(ref, struct{}{})
	return loaded, nil
}

type takenChecker struct{ calls int }

func (c *takenChecker) ReferenceTaken(ctx context.Context, ref string) (bool, error) {
	c.calls++
	return true, nil
}

type failingChecker struct{}

func (failingChecker) ReferenceTaken(ctx context.Context, ref string) (bool, error) {
	return false, errors.New("store down")
}

func TestReferenceFormat(t *testing.T) {
	at := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	g := service.NewReferenceGenerator(&claimingChecker{}).
		WithClock(func() time.Time { return at })

	ref, err := g.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !referencePattern.MatchString(ref) {
		t.Fatalf("reference %q does not match %s", ref, referencePattern)
	}
	wantPrefix := "RES-" + strings.ToUpper(strconv.FormatInt(at.UnixMilli(), 36)) + "-"
	if !strings.HasPrefix(ref, wantPrefix) {
		t.Fatalf("reference %q should start with %q", ref, wantPrefix)
	}
}

func TestReferenceFallbackAfterFiveTakenCandidates(t *testing.T) {
	at := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	checker := &takenChecker{}
	g := service.NewReferenceGenerator(checker).
		WithClock(func() time.Time { return at }).
		WithRandom(func(n int) string { return strings.Repeat("Z", n) })

	ref, err := g.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checker.calls != 5 {
		t.Fatalf("expected 5 checked candidates, got %d", checker.calls)
	}
	want := "RES-" + strconv.FormatInt(at.UnixMilli(), 10) + "-ZZZZZZZZZ"
	if ref != want {
		t.Fatalf("expected fallback %q, got %q", want, ref)
	}
}

func TestReferenceCheckerFailure(t *testing.T) {
	g := service.NewReferenceGenerator(failingChecker{})
	if _, err := g.Next(context.Background()); err == nil {
		t.Fatal("expected error when the existence check fails")
	}
}

func TestReferenceUniqueUnderConcurrency(t *testing.T) {
	const total = 10000
	g := service.NewReferenceGenerator(&claimingChecker{})

	refs := make([]string, total)
	var wg sync.WaitGroup
	for w := 0; w < 50; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < total; i += 50 {
				ref, err := g.Next(context.Background())
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				refs[i] = ref
			}
		}(w)
	}
	wg.Wait()

	seen := make(map[string]struct{}, total)
	for _, ref := range refs {
		if !strings.HasPrefix(ref, "RES-") {
			t.Fatalf("malformed reference %q", ref)
		}
		if _, dup := seen[ref]; dup {
			t.Fatalf("duplicate reference %q", ref)
		}
		seen[ref] = struct{}{}
	}
}
