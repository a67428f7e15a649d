// Package sequencer drives the dependency-ordered registry publication: it
// layers the package graph into tiers, publishes tier by tier, and inserts a
// propagation wait at every tier boundary so a dependent publish never races
// the registry's eventually consistent index.
package sequencer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vk/shipgrid/internal/ctxlog"
	"github.com/vk/shipgrid/internal/dag"
	"github.com/vk/shipgrid/internal/registrypub"
	"github.com/vk/shipgrid/internal/release"
)

// Sequencer publishes a release graph in dependency order.
type Sequencer struct {
	Publisher registrypub.Publisher
	Waiter    registrypub.Waiter

	// Serial forces sequential publishes within a tier. Packages in one
	// tier share no edges, so concurrency is safe; serial remains available
	// for registries that throttle parallel uploads.
	Serial bool
}

// Tier is one layer of the publish plan: packages with no edges among them,
// all of whose dependencies live in earlier tiers.
type Tier struct {
	Packages []release.Package
}

// Plan computes the publish order for the given packages. It performs no
// I/O: a cycle or an unresolvable dependency is reported before any publish
// call is made.
func Plan(packages []release.Package) ([]Tier, error) {
	byName := make(map[string]release.Package, len(packages))
	g := dag.New()
	for _, pkg := range packages {
		if _, dup := byName[pkg.Name]; dup {
			return nil, fmt.Errorf("duplicate package %q in release graph", pkg.Name)
		}
		byName[pkg.Name] = pkg
		g.AddNode(pkg.Name)
	}
	for _, pkg := range packages {
		for _, dep := range pkg.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("package %q depends on %q, which is not in the release graph", pkg.Name, dep)
			}
			if err := g.AddEdge(dep, pkg.Name); err != nil {
				return nil, err
			}
		}
	}

	layers, err := g.Tiers()
	if err != nil {
		return nil, err
	}

	tiers := make([]Tier, len(layers))
	for i, layer := range layers {
		tier := Tier{Packages: make([]release.Package, len(layer))}
		for j, name := range layer {
			tier.Packages[j] = byName[name]
		}
		tiers[i] = tier
	}
	return tiers, nil
}

// Publish walks the tiers in order. Each tier is published fully, then the
// waiter runs once before the next tier starts. On the first failed publish
// the remaining tiers are not attempted: their preconditions cannot be met.
// The returned Report always covers every tier, attempted or not.
func (s *Sequencer) Publish(ctx context.Context, tiers []Tier) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	report := newReport(tiers)

	for i, tier := range tiers {
		logger.Info("🚀 Publishing tier.", "tier", i, "packages", len(tier.Packages))

		// Packages never attempted keep their initial skipped status.
		if err := s.publishTier(ctx, i, tier, report); err != nil {
			return report, err
		}
		report.Tiers[i].Published = true

		// Settle between tiers only; nothing depends on the final one.
		if i < len(tiers)-1 {
			if err := s.Waiter.Wait(ctx, tier.Packages); err != nil {
				return report, fmt.Errorf("waiting after tier %d: %w", i, err)
			}
		}
	}

	logger.Info("🏁 All tiers published.", "tiers", len(tiers))
	return report, nil
}

func (s *Sequencer) publishTier(ctx context.Context, idx int, tier Tier, report *Report) error {
	if s.Serial {
		for _, pkg := range tier.Packages {
			if err := s.Publisher.Publish(ctx, pkg); err != nil {
				report.markFailed(idx, pkg.Name, err)
				return err
			}
			report.markPublished(idx, pkg.Name)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, pkg := range tier.Packages {
		g.Go(func() error {
			if err := s.Publisher.Publish(gctx, pkg); err != nil {
				report.markFailed(idx, pkg.Name, err)
				return err
			}
			report.markPublished(idx, pkg.Name)
			return nil
		})
	}
	return g.Wait()
}
