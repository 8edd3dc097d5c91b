package pipeline

import (
	"context"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/stream"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

// NodeKind distinguishes the two node shapes a pipeline DAG can contain.
type NodeKind int

const (
	KernelNode NodeKind = iota // wraps a structural operator (op.Join)
	PodNode                    // wraps a pod.Pod
)

func (k NodeKind) String() string {
	switch k {
	case KernelNode:
		return "kernel"
	case PodNode:
		return "pod"
	default:
		return "unknown"
	}
}

// Node is one invocation in the pipeline DAG: its label, upstream
// references, lazy output stream, and (after Run) its materialized result.
type Node struct {
	label       string
	kind        NodeKind
	upstream    []*Node
	strm        stream.Stream
	fingerprint hash.Digest
	resultSchema table.Schema

	result *table.Table
}

func newNode(label string, kind NodeKind, upstream []*Node, strm stream.Stream, fp hash.Digest) *Node {
	return &Node{
		label:        label,
		kind:         kind,
		upstream:     upstream,
		strm:         strm,
		fingerprint:  fp,
		resultSchema: schemaFor(strm),
		result:       table.Empty(schemaFor(strm)),
	}
}

func schemaFor(s stream.Stream) table.Schema {
	fields := append(s.TagSchema().Fields(), s.PacketSchema().Fields()...)
	return table.Schema{Columns: fields}
}

func (n *Node) Label() string            { return n.label }
func (n *Node) Kind() NodeKind           { return n.kind }
func (n *Node) Upstream() []*Node        { return append([]*Node(nil), n.upstream...) }
func (n *Node) Fingerprint() hash.Digest { return n.fingerprint }
func (n *Node) Stream() stream.Stream    { return n.strm }
func (n *Node) TagSchema() types.TypeSpec    { return n.strm.TagSchema() }
func (n *Node) PacketSchema() types.TypeSpec { return n.strm.PacketSchema() }

// DF returns the node's materialized output table: an empty table with the
// node's schema before the owning pipeline's Run, the computed result
// after.
func (n *Node) DF() *table.Table {
	return n.result
}

func (n *Node) evaluate(ctx context.Context) (*table.Table, error) {
	return n.strm.AsTable(ctx, stream.TableOptions{})
}
