// Package resource supplies the metadata of managed resources.
//
// FileProvider reads a resources.yaml file and reloads it when the file
// changes on disk. StaticProvider serves a fixed list.
package resource

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"steward/internal/api"
	"steward/pkg/logging"
)

// Provider resolves resource metadata. Results are read-only.
type Provider interface {
	Get(ctx context.Context, ref api.ResourceRef) (api.Resource, error)
	List(ctx context.Context) ([]api.Resource, error)
}

// Definition is one entry of resources.yaml.
type Definition struct {
	Kind        string            `yaml:"kind"`
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Host        string            `yaml:"host"`
	Platform    string            `yaml:"platform,omitempty"`
	Groups      []string          `yaml:"groups,omitempty"`
	ServiceName string            `yaml:"serviceName,omitempty"`
	InstanceDir string            `yaml:"instanceDir"`
	Properties  map[string]string `yaml:"properties,omitempty"`
}

// File is the top level of resources.yaml.
type File struct {
	Resources []Definition `yaml:"resources"`
}

// toResource validates d and converts it.
func (d Definition) toResource() (api.Resource, error) {
	kind, err := api.ParseResourceKind(d.Kind)
	if err != nil {
		return api.Resource{}, err
	}
	if strings.TrimSpace(d.ID) == "" {
		return api.Resource{}, fmt.Errorf("%s resource without id", kind)
	}
	name := d.Name
	if name == "" {
		name = d.ID
	}
	if d.Host == "" {
		return api.Resource{}, fmt.Errorf("%s/%s has no host", kind, d.ID)
	}

	platform := api.PlatformWindows
	switch strings.ToLower(d.Platform) {
	case "", "windows":
	case "linux":
		platform = api.PlatformLinux
	default:
		return api.Resource{}, fmt.Errorf("%s/%s has unknown platform %q", kind, d.ID, d.Platform)
	}

	return api.Resource{
		Ref:         api.ResourceRef{Kind: kind, ID: d.ID},
		Name:        name,
		Host:        d.Host,
		Platform:    platform,
		Groups:      d.Groups,
		ServiceName: d.ServiceName,
		InstanceDir: d.InstanceDir,
		Properties:  d.Properties,
	}, nil
}

// Parse decodes resources.yaml content.
func Parse(data []byte) ([]api.Resource, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse resources: %w", err)
	}

	seen := make(map[api.ResourceRef]bool, len(f.Resources))
	out := make([]api.Resource, 0, len(f.Resources))
	for i, d := range f.Resources {
		res, err := d.toResource()
		if err != nil {
			return nil, fmt.Errorf("resource %d: %w", i, err)
		}
		if seen[res.Ref] {
			return nil, fmt.Errorf("resource %d: duplicate %s", i, res.Ref)
		}
		seen[res.Ref] = true
		out = append(out, res)
	}
	return out, nil
}

type index struct {
	byRef map[api.ResourceRef]api.Resource
}

func newIndex(resources []api.Resource) index {
	idx := index{byRef: make(map[api.ResourceRef]api.Resource, len(resources))}
	for _, res := range resources {
		idx.byRef[res.Ref] = res
	}
	return idx
}

func (idx index) get(ref api.ResourceRef) (api.Resource, error) {
	res, ok := idx.byRef[ref]
	if !ok {
		return api.Resource{}, api.NewResourceNotFoundError(ref)
	}
	return res, nil
}

func (idx index) list() []api.Resource {
	out := make([]api.Resource, 0, len(idx.byRef))
	for _, res := range idx.byRef {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.String() < out[j].Ref.String() })
	return out
}

// StaticProvider serves a fixed set of resources.
type StaticProvider struct {
	idx index
}

// NewStaticProvider creates a provider over resources.
func NewStaticProvider(resources ...api.Resource) *StaticProvider {
	return &StaticProvider{idx: newIndex(resources)}
}

// Get implements Provider.
func (p *StaticProvider) Get(_ context.Context, ref api.ResourceRef) (api.Resource, error) {
	return p.idx.get(ref)
}

// List implements Provider.
func (p *StaticProvider) List(context.Context) ([]api.Resource, error) {
	return p.idx.list(), nil
}

// FileProvider serves resources loaded from a YAML file.
type FileProvider struct {
	path string

	mu  sync.RWMutex
	idx index

	onChange func([]api.Resource)
}

// NewFileProvider creates a provider for path. Call Load before use.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path, idx: newIndex(nil)}
}

// Path returns the watched file.
func (p *FileProvider) Path() string { return p.path }

// OnChange registers a callback run after every successful reload.
func (p *FileProvider) OnChange(fn func([]api.Resource)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// Load reads the file. On error the previously loaded resources are kept.
func (p *FileProvider) Load() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("failed to read resources file %s: %w", p.path, err)
	}
	resources, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", p.path, err)
	}

	p.mu.Lock()
	p.idx = newIndex(resources)
	onChange := p.onChange
	p.mu.Unlock()

	logging.Info("Resources", "Loaded %d resources from %s", len(resources), p.path)
	if onChange != nil {
		onChange(resources)
	}
	return nil
}

// Get implements Provider.
func (p *FileProvider) Get(_ context.Context, ref api.ResourceRef) (api.Resource, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.idx.get(ref)
}

// List implements Provider.
func (p *FileProvider) List(context.Context) ([]api.Resource, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.idx.list(), nil
}
