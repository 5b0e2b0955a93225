package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/marcel-gle/gb-qr-tracker/repository"
)

// prefixScanWorkers bounds the fan-out of the read-only existence scans that
// seed the taken set. Purely a round-trip optimization.
const prefixScanWorkers = 8

// IDAllocator hands out collision-free link ids for one import run. All rows
// sharing a base draw from the same in-memory taken set, so they can never
// collide with each other even before any write lands. Collisions with
// concurrent runs remain possible and are handled by the writer's one-shot
// retry.
type IDAllocator struct {
	links repository.LinkRepository

	mu      sync.Mutex
	taken   map[string]map[string]struct{} // base -> existing and assigned ids
	store   map[string]map[string]struct{} // base -> ids seen in the link store
	claimed map[string]map[string]struct{} // base -> ids handed out by ClaimNext
}

func NewIDAllocator(links repository.LinkRepository) *IDAllocator {
	return &IDAllocator{
		links:   links,
		taken:   make(map[string]map[string]struct{}),
		store:   make(map[string]map[string]struct{}),
		claimed: make(map[string]map[string]struct{}),
	}
}

// BaseID computes the pre-collision id candidate for a row, by priority:
// explicit id column, email domain (when identity mode is on), normalized
// business name, then the sequential campaign fallback.
func BaseID(explicitID, email, businessName, campaignCode string, rowIndex int, deriveFromIdentity bool) string {
	if b := SanitizeID(explicitID); b != "" {
		return b
	}
	if deriveFromIdentity {
		if b := EmailDomainSlug(email); b != "" {
			return b
		}
	}
	if slug := NormalizeBusinessName(businessName); slug != "" {
		return SanitizeID(slug)
	}
	code := strings.ToUpper(SanitizeID(campaignCode))
	if code == "" {
		code = "L"
	}
	return fmt.Sprintf("%s-%d", code, rowIndex+1)
}

// Preload scans the link store once per distinct base and seeds the taken
// sets. Scans are fanned out over a small worker pool.
func (a *IDAllocator) Preload(ctx context.Context, bases []string) error {
	distinct := make([]string, 0, len(bases))
	seen := make(map[string]struct{}, len(bases))
	for _, b := range bases {
		if b == "" {
			continue
		}
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		distinct = append(distinct, b)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefixScanWorkers)
	for _, base := range distinct {
		g.Go(func() error {
			ids, err := a.links.ListIDsWithPrefix(gctx, base)
			if err != nil {
				return fmt.Errorf("prefix scan for base %s: %w", base, err)
			}
			a.mu.Lock()
			a.recordStoreIDs(base, ids)
			a.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// Allocate returns the final id for the base: the base itself when free, else
// base-n for the smallest unused n >= 1. The returned id is immediately
// marked taken.
func (a *IDAllocator) Allocate(base string) (string, error) {
	if base == "" {
		return "", ErrEmptyBase
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	set := a.ensureSet(a.taken, base)
	if _, used := set[base]; !used {
		set[base] = struct{}{}
		return base, nil
	}
	for n := 1; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, used := set[candidate]; !used {
			set[candidate] = struct{}{}
			return candidate, nil
		}
	}
}

// Reallocate re-queries live variants of the base and hands out the next free
// suffix. Used after a create collision with a concurrent run, where the
// preloaded taken set is known stale.
func (a *IDAllocator) Reallocate(ctx context.Context, base string) (string, error) {
	if base == "" {
		return "", ErrEmptyBase
	}

	ids, err := a.links.ListIDsWithPrefix(ctx, base)
	if err != nil {
		return "", fmt.Errorf("rescan for base %s: %w", base, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.recordStoreIDs(base, ids)
	set := a.ensureSet(a.taken, base)
	for n := 1; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, used := set[candidate]; !used {
			set[candidate] = struct{}{}
			return candidate, nil
		}
	}
}

// ClaimNext walks the id sequence base, base-1, base-2, ... and hands out the
// first id not yet claimed by this run, reporting whether it already exists in
// the link store. Rows of a skip-existing re-run thereby line up with the ids
// the original run allocated: the first same-base row claims the bare base,
// the second base-1, and so on, and only ids beyond the stored ones come back
// as fresh.
func (a *IDAllocator) ClaimNext(base string) (string, bool, error) {
	if base == "" {
		return "", false, ErrEmptyBase
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	stored := a.store[base]
	claimed := a.ensureSet(a.claimed, base)
	for n := 0; ; n++ {
		candidate := base
		if n > 0 {
			candidate = base + "-" + strconv.Itoa(n)
		}
		if _, done := claimed[candidate]; done {
			continue
		}
		claimed[candidate] = struct{}{}
		if _, exists := stored[candidate]; exists {
			return candidate, true, nil
		}
		a.ensureSet(a.taken, base)[candidate] = struct{}{}
		return candidate, false, nil
	}
}

// recordStoreIDs merges store-scan results into both the taken sets and the
// store snapshot. Callers hold the mutex.
func (a *IDAllocator) recordStoreIDs(base string, ids []string) {
	taken := a.ensureSet(a.taken, base)
	stored := a.ensureSet(a.store, base)
	for _, id := range ids {
		taken[id] = struct{}{}
		stored[id] = struct{}{}
	}
}

func (a *IDAllocator) ensureSet(m map[string]map[string]struct{}, base string) map[string]struct{} {
	set, ok := m[base]
	if !ok {
		set = make(map[string]struct{})
		m[base] = set
	}
	return set
}
