// Pipeline definitions are declared in YAML and wired into a Pipeline by
// Build, resolving each pod node against a caller-supplied pod.Registry
// since Go function values have no serializable identity of their own.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/brian-arnold/orcapod/metrics"
	"github.com/brian-arnold/orcapod/pod"
	"github.com/brian-arnold/orcapod/record"
	"github.com/brian-arnold/orcapod/store"
	"github.com/brian-arnold/orcapod/types"
)

// Def is the top-level shape of a pipeline YAML file.
type Def struct {
	Name  string    `yaml:"name"`
	Nodes []NodeDef `yaml:"nodes"`
}

// NodeDef is one node in a pipeline definition. Kind selects which of the
// kind-specific fields below apply: "csv_source", "pod", or "join".
type NodeDef struct {
	Label string `yaml:"label"`
	Kind  string `yaml:"kind"`

	// csv_source fields.
	CSVPath string         `yaml:"csv,omitempty"`
	Columns []ColumnDefRaw `yaml:"columns,omitempty"`

	// pod fields.
	Pod   string `yaml:"pod,omitempty"`
	Input string `yaml:"input,omitempty"`

	// join fields.
	Left  string `yaml:"left,omitempty"`
	Right string `yaml:"right,omitempty"`
}

// ColumnDefRaw is a csv_source column as written in YAML; Kind is decoded
// via types.ParseKind against its canonical name (e.g. "int64", "string").
type ColumnDefRaw struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	Tag  bool   `yaml:"tag"`
}

// ParseDef reads and decodes a pipeline definition file.
func ParseDef(path string) (*Def, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read definition %q: %w", path, err)
	}
	var def Def
	if err := yaml.Unmarshal(b, &def); err != nil {
		return nil, fmt.Errorf("pipeline: parse definition %q: %w", path, err)
	}
	return &def, nil
}

// Build wires def's nodes into a fresh Pipeline registered under def.Name,
// resolving pod nodes against reg. The caller is responsible for calling
// Exit on the returned Pipeline once done; Run does not call it.
func Build(ctx context.Context, def *Def, reg *pod.Registry, backing store.Store, m *metrics.PipelineMetrics, dc record.DataContext) (*Pipeline, error) {
	p := Enter(def.Name, backing, m)

	nodes := make(map[string]*Node, len(def.Nodes))
	for _, nd := range def.Nodes {
		var n *Node
		var err error

		switch nd.Kind {
		case "csv_source":
			cols := make([]ColumnDef, len(nd.Columns))
			for i, c := range nd.Columns {
				k, ok := types.ParseKind(c.Kind)
				if !ok {
					_ = p.Exit()
					return nil, fmt.Errorf("pipeline: node %q: unknown column kind %q", nd.Label, c.Kind)
				}
				cols[i] = ColumnDef{Name: c.Name, Kind: k, Tag: c.Tag}
			}
			src, err2 := LoadCSVSource(nd.CSVPath, cols, dc)
			if err2 != nil {
				_ = p.Exit()
				return nil, err2
			}
			n, err = p.AddSource(ctx, nd.Label, src)

		case "pod":
			pd, ok := reg.Lookup(nd.Pod)
			if !ok {
				_ = p.Exit()
				return nil, fmt.Errorf("pipeline: node %q: no pod registered as %q", nd.Label, nd.Pod)
			}
			input, ok := nodes[nd.Input]
			if !ok {
				_ = p.Exit()
				return nil, fmt.Errorf("pipeline: node %q: unknown input node %q", nd.Label, nd.Input)
			}
			n, err = p.AddPod(nd.Label, pd, input, dc)

		case "join":
			left, ok := nodes[nd.Left]
			if !ok {
				_ = p.Exit()
				return nil, fmt.Errorf("pipeline: node %q: unknown left node %q", nd.Label, nd.Left)
			}
			right, ok := nodes[nd.Right]
			if !ok {
				_ = p.Exit()
				return nil, fmt.Errorf("pipeline: node %q: unknown right node %q", nd.Label, nd.Right)
			}
			n, err = p.AddJoin(nd.Label, left, right)

		default:
			_ = p.Exit()
			return nil, fmt.Errorf("pipeline: node %q: unknown kind %q", nd.Label, nd.Kind)
		}

		if err != nil {
			_ = p.Exit()
			return nil, fmt.Errorf("pipeline: node %q: %w", nd.Label, err)
		}
		nodes[nd.Label] = n
	}

	return p, nil
}
