package sequencer

import "sync"

// PackageStatus is the terminal state of one package in the sequence.
type PackageStatus string

const (
	StatusPublished PackageStatus = "published"
	StatusFailed    PackageStatus = "failed"
	StatusSkipped   PackageStatus = "skipped"
)

// TierResult records how one tier fared.
type TierResult struct {
	Published bool
	Packages  map[string]PackageStatus
	Errors    map[string]error
}

// Report summarizes a Publish run: which tiers completed, which package
// failed, and which packages were never attempted. It tells a human exactly
// what is left to re-run by hand.
type Report struct {
	mu    sync.Mutex
	Tiers []TierResult
}

func newReport(tiers []Tier) *Report {
	r := &Report{Tiers: make([]TierResult, len(tiers))}
	for i, tier := range tiers {
		r.Tiers[i] = TierResult{
			Packages: make(map[string]PackageStatus, len(tier.Packages)),
			Errors:   make(map[string]error),
		}
		for _, pkg := range tier.Packages {
			r.Tiers[i].Packages[pkg.Name] = StatusSkipped
		}
	}
	return r
}

func (r *Report) markPublished(tier int, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tiers[tier].Packages[name] = StatusPublished
}

func (r *Report) markFailed(tier int, name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tiers[tier].Packages[name] = StatusFailed
	r.Tiers[tier].Errors[name] = err
}

// PublishedTiers returns how many leading tiers published completely.
func (r *Report) PublishedTiers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, tier := range r.Tiers {
		if !tier.Published {
			break
		}
		n++
	}
	return n
}

// Status returns the terminal status of one package, searching all tiers.
func (r *Report) Status(name string) (PackageStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tier := range r.Tiers {
		if st, ok := tier.Packages[name]; ok {
			return st, true
		}
	}
	return "", false
}
