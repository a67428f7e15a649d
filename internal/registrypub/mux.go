package registrypub

import (
	"context"
	"fmt"

	"github.com/vk/shipgrid/internal/release"
)

// PublisherMux routes each package to the publisher of the registry it is
// bound to. Package registries are resolved against the manifest before
// sequencing, so every package arrives here with its registry name set.
type PublisherMux map[string]Publisher

// Publish dispatches to the package's registry publisher.
func (m PublisherMux) Publish(ctx context.Context, pkg release.Package) error {
	p, ok := m[pkg.Registry]
	if !ok {
		return &PublishError{
			Package: pkg.Name,
			Cause:   fmt.Errorf("no publisher configured for registry %q", pkg.Registry),
		}
	}
	return p.Publish(ctx, pkg)
}

// WaiterMux settles each registry independently: the prior tier's packages
// are grouped by registry and each group is waited out with that registry's
// own strategy. A tier may publish to several registries at once.
type WaiterMux map[string]Waiter

// Wait runs every involved registry's wait, in the order the packages first
// reference them.
func (m WaiterMux) Wait(ctx context.Context, prior []release.Package) error {
	groups := make(map[string][]release.Package)
	var order []string
	for _, pkg := range prior {
		if _, seen := groups[pkg.Registry]; !seen {
			order = append(order, pkg.Registry)
		}
		groups[pkg.Registry] = append(groups[pkg.Registry], pkg)
	}

	for _, name := range order {
		w, ok := m[name]
		if !ok {
			return fmt.Errorf("no waiter configured for registry %q", name)
		}
		if err := w.Wait(ctx, groups[name]); err != nil {
			return err
		}
	}
	return nil
}
