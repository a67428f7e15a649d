package manifest

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/shipgrid/internal/ctxlog"
	"github.com/vk/shipgrid/internal/fsutil"
)

// fileSchema is the top-level HCL layout of a manifest tree.
type fileSchema struct {
	Project    *Project   `hcl:"project,block"`
	Registries []Registry `hcl:"registry,block"`
	Packages   []Package  `hcl:"package,block"`
	Channels   []Channel  `hcl:"channel,block"`
	Tap        *Tap       `hcl:"tap,block"`
}

// projectOnly is the first decoding pass: just the project block, so its
// values can be offered as variables to the rest of the manifest.
type projectOnly struct {
	Project *Project `hcl:"project,block"`
	Remain  hcl.Body `hcl:",remain"`
}

// Load reads every .hcl file under path (or the single file), merges them,
// and decodes the manifest. The project block is decoded first and exposed
// to later expressions as the variables `project` and `binary`.
func Load(ctx context.Context, path string) (*Manifest, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("discovering manifest files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl manifest files found under %s", path)
	}
	logger.Debug("Manifest files discovered.", "count", len(files))

	parser := hclparse.NewParser()
	parsed := make([]*hcl.File, 0, len(files))
	for _, file := range files {
		f, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %w", file, diags)
		}
		parsed = append(parsed, f)
	}
	body := hcl.MergeFiles(parsed)

	var head projectOnly
	if diags := gohcl.DecodeBody(body, nil, &head); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode project block: %w", diags)
	}
	if head.Project == nil || head.Project.Name == "" {
		return nil, fmt.Errorf("manifest must declare a project block with a name")
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"project": cty.StringVal(head.Project.Name),
			"binary":  cty.StringVal(head.Project.BinaryName),
		},
	}

	var schema fileSchema
	if diags := gohcl.DecodeBody(body, evalCtx, &schema); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest: %w", diags)
	}

	m := &Manifest{
		Project:    *schema.Project,
		Registries: schema.Registries,
		Packages:   schema.Packages,
		Channels:   schema.Channels,
		Tap:        schema.Tap,
	}
	if err := m.validate(); err != nil {
		return nil, err
	}

	logger.Debug("Manifest loaded.",
		"packages", len(m.Packages),
		"channels", len(m.Channels),
		"registries", len(m.Registries),
	)
	return m, nil
}

// validate checks the manifest's internal references and parses durations.
func (m *Manifest) validate() error {
	registries := make(map[string]bool, len(m.Registries))
	for i := range m.Registries {
		reg := &m.Registries[i]
		if registries[reg.Name] {
			return fmt.Errorf("registry %q declared twice", reg.Name)
		}
		registries[reg.Name] = true

		reg.settleDelay = 0
		if reg.SettleDelay != "" {
			d, err := time.ParseDuration(reg.SettleDelay)
			if err != nil {
				return fmt.Errorf("registry %q: bad settle_delay: %w", reg.Name, err)
			}
			reg.settleDelay = d
		}

		switch reg.WaitStrategy {
		case "", "delay":
		case "poll":
			if reg.IndexURL == "" {
				return fmt.Errorf("registry %q: wait_strategy \"poll\" requires index_url", reg.Name)
			}
		default:
			return fmt.Errorf("registry %q: unknown wait_strategy %q", reg.Name, reg.WaitStrategy)
		}
	}

	if len(m.Packages) > 0 && len(m.Registries) == 0 {
		return fmt.Errorf("manifest declares packages but no registry block")
	}

	packages := make(map[string]bool, len(m.Packages))
	for _, pkg := range m.Packages {
		if packages[pkg.Name] {
			return fmt.Errorf("package %q declared twice", pkg.Name)
		}
		packages[pkg.Name] = true
	}
	for _, pkg := range m.Packages {
		if pkg.Path == "" {
			return fmt.Errorf("package %q: path is required", pkg.Name)
		}
		if pkg.Registry != "" && !registries[pkg.Registry] {
			return fmt.Errorf("package %q references unknown registry %q", pkg.Name, pkg.Registry)
		}
		if pkg.Registry == "" && len(m.Registries) > 1 {
			return fmt.Errorf("package %q must name its registry; the manifest declares %d", pkg.Name, len(m.Registries))
		}
		for _, dep := range pkg.DependsOn {
			if !packages[dep] {
				return fmt.Errorf("package %q depends on unknown package %q", pkg.Name, dep)
			}
		}
	}

	channels := make(map[string]bool, len(m.Channels))
	for _, ch := range m.Channels {
		if channels[ch.Name] {
			return fmt.Errorf("channel %q declared twice", ch.Name)
		}
		channels[ch.Name] = true
	}

	if m.Tap != nil && (m.Tap.Repository == "" || m.Tap.Formula == "") {
		return fmt.Errorf("tap block requires repository and formula")
	}

	return nil
}

// DefaultRegistry returns the registry used by packages that do not name
// one. With a single registry block that block is the default; with more,
// packages must be explicit.
func (m *Manifest) DefaultRegistry() (Registry, error) {
	if len(m.Registries) == 1 {
		return m.Registries[0], nil
	}
	return Registry{}, fmt.Errorf("manifest declares %d registries; packages must name theirs", len(m.Registries))
}

// RegistryFor resolves a package's registry.
func (m *Manifest) RegistryFor(pkg Package) (Registry, error) {
	if pkg.Registry == "" {
		return m.DefaultRegistry()
	}
	for _, reg := range m.Registries {
		if reg.Name == pkg.Registry {
			return reg, nil
		}
	}
	return Registry{}, fmt.Errorf("package %q references unknown registry %q", pkg.Name, pkg.Registry)
}
