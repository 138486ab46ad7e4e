package source

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"sigs.k8s.io/yaml"

	"github.com/kubilitics/kubilitics-topology/internal/models"
)

//go:embed fixtures/*.yaml
var builtin embed.FS

// supportedSchema is the fixture schemaVersion range this build reads.
const supportedSchema = "^1.0"

// Fixture is the on-disk YAML form of a layout.
type Fixture struct {
	SchemaVersion string                `json:"schemaVersion"`
	Name          string                `json:"name"`
	Description   string                `json:"description,omitempty"`
	Nodes         []models.TopologyNode `json:"nodes"`
	Edges         []models.TopologyEdge `json:"edges"`
}

// ParseFixture decodes and checks a YAML fixture. Dangling edges are kept;
// they are dropped when the graph is loaded into a view.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode fixture: %w", err)
	}
	if f.Name == "" {
		return nil, errors.New("fixture has no name")
	}

	version, err := semver.NewVersion(f.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: invalid schemaVersion %q: %w", f.Name, f.SchemaVersion, err)
	}
	constraint, _ := semver.NewConstraint(supportedSchema)
	if !constraint.Check(version) {
		return nil, fmt.Errorf("fixture %s: schemaVersion %s not in %s", f.Name, version, supportedSchema)
	}

	for i, n := range f.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("fixture %s: node %d has no id", f.Name, i)
		}
		if !n.Type.Valid() {
			return nil, fmt.Errorf("fixture %s: node %s has unknown type %q", f.Name, n.ID, n.Type)
		}
	}
	for i := range f.Edges {
		if f.Edges[i].ID == "" {
			f.Edges[i].ID = f.Edges[i].Source + "->" + f.Edges[i].Target
		}
	}
	return &f, nil
}

// Graph returns the fixture's node/edge set.
func (f *Fixture) Graph() models.Graph {
	return models.Graph{Nodes: f.Nodes, Edges: f.Edges}.Clone()
}

// FixtureProvider serves a static graph parsed from a fixture. The scope does
// not narrow the graph; it only drives initial focus.
type FixtureProvider struct {
	fixture *Fixture
}

// NewFixtureProvider wraps a parsed fixture.
func NewFixtureProvider(f *Fixture) *FixtureProvider {
	return &FixtureProvider{fixture: f}
}

func (p *FixtureProvider) Name() string { return p.fixture.Name }

// Description returns the fixture's human readable summary.
func (p *FixtureProvider) Description() string { return p.fixture.Description }

func (p *FixtureProvider) GenerateLayout(ctx context.Context, _ models.Scope) (models.Graph, error) {
	if err := ctx.Err(); err != nil {
		return models.Graph{}, err
	}
	return p.fixture.Graph(), nil
}

// Builtin returns providers for the embedded stack and star layouts.
func Builtin() ([]Provider, error) {
	entries, err := builtin.ReadDir("fixtures")
	if err != nil {
		return nil, err
	}
	var out []Provider
	for _, e := range entries {
		data, err := builtin.ReadFile("fixtures/" + e.Name())
		if err != nil {
			return nil, err
		}
		f, err := ParseFixture(data)
		if err != nil {
			return nil, err
		}
		out = append(out, NewFixtureProvider(f))
	}
	return out, nil
}

// LoadFile parses a fixture from disk.
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFixture(data)
}

// LoadDir returns providers for every *.yaml or *.yml file in dir.
func LoadDir(dir string) ([]Provider, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Provider
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		f, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, NewFixtureProvider(f))
	}
	return out, nil
}
