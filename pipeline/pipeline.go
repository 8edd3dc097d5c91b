// Package pipeline implements OrcaPod's scoped DAG registry and runner: a
// stack of *Pipeline values, nodes registered in construction order, and a
// topological, store-consulting Run.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/metrics"
	"github.com/brian-arnold/orcapod/op"
	"github.com/brian-arnold/orcapod/orcaerr"
	"github.com/brian-arnold/orcapod/pod"
	"github.com/brian-arnold/orcapod/record"
	"github.com/brian-arnold/orcapod/store"
	"github.com/brian-arnold/orcapod/stream"
	"github.com/brian-arnold/orcapod/table"
)

var (
	stackMu sync.Mutex
	stack   []*Pipeline
)

// Pipeline is a registered DAG of nodes sharing one backing store.
type Pipeline struct {
	name    string
	backing store.Store
	metrics *metrics.PipelineMetrics

	mu     sync.Mutex
	nodes  []*Node
	labels map[string]int
	frozen bool
}

// Enter pushes a new Pipeline onto the current-pipeline stack and returns
// it. backing and m may be nil: a nil store disables memoization, a nil
// metrics bundle disables instrumentation.
func Enter(name string, backing store.Store, m *metrics.PipelineMetrics) *Pipeline {
	p := &Pipeline{
		name:    name,
		backing: backing,
		metrics: m,
		labels:  make(map[string]int),
	}
	stackMu.Lock()
	stack = append(stack, p)
	stackMu.Unlock()
	return p
}

// Exit pops p off the stack and freezes its DAG against further node
// registration. It returns PipelineStateError if p is not the top of the
// stack — scopes must exit in LIFO order.
func (p *Pipeline) Exit() error {
	stackMu.Lock()
	defer stackMu.Unlock()
	if len(stack) == 0 || stack[len(stack)-1] != p {
		return orcaerr.PipelineStateError("pipeline.Exit", fmt.Sprintf("pipeline %q is not the current scope", p.name))
	}
	stack = stack[:len(stack)-1]
	p.mu.Lock()
	p.frozen = true
	p.mu.Unlock()
	return nil
}

// CurrentPipeline returns the top of the scope stack, or nil if no
// pipeline is currently entered.
func CurrentPipeline() *Pipeline {
	stackMu.Lock()
	defer stackMu.Unlock()
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

func (p *Pipeline) Name() string { return p.name }

// Nodes returns the registered nodes in registration (topological) order.
func (p *Pipeline) Nodes() []*Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Node(nil), p.nodes...)
}

func (p *Pipeline) nextLabel(base string) string {
	n := p.labels[base]
	p.labels[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, n)
}

func (p *Pipeline) register(n *Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen {
		return orcaerr.PipelineStateError("pipeline.register", fmt.Sprintf("pipeline %q already exited", p.name))
	}
	p.nodes = append(p.nodes, n)
	return nil
}

// sourceFingerprint computes a generic invocation fingerprint for a source
// node: its materialized content hash folded with its tag-schema
// declaration, independent of any particular concrete Stream type.
func sourceFingerprint(ctx context.Context, s stream.Stream) (hash.Digest, error) {
	tbl, err := s.AsTable(ctx, stream.TableOptions{})
	if err != nil {
		return hash.Digest{}, err
	}
	content, err := table.ContentHash(tbl)
	if err != nil {
		return hash.Digest{}, err
	}
	return hash.Concat(content, hash.Schema(s.TagSchema())), nil
}

// AddSource registers a source stream (e.g. an *stream.ImmutableTableStream)
// as a node with no upstream. label, if empty, defaults to "source".
func (p *Pipeline) AddSource(ctx context.Context, label string, s stream.Stream) (*Node, error) {
	if label == "" {
		label = "source"
	}
	fp, err := sourceFingerprint(ctx, s)
	if err != nil {
		return nil, err
	}
	n := newNode(p.nextLabel(label), KernelNode, nil, s, fp)
	if err := p.register(n); err != nil {
		return nil, err
	}
	return n, nil
}

// AddJoin constructs an op.Join over left and right's streams and
// registers it as a KernelNode. label, if empty, defaults to "join".
func (p *Pipeline) AddJoin(label string, left, right *Node) (*Node, error) {
	if label == "" {
		label = "join"
	}
	j, err := op.NewJoin(left.strm, right.strm)
	if err != nil {
		return nil, err
	}
	fp := hash.Concat(j.IdentityHash(), left.fingerprint, right.fingerprint)
	s := j.Apply(fp, p.backing)
	n := newNode(p.nextLabel(label), KernelNode, []*Node{left, right}, s, fp)
	if err := p.register(n); err != nil {
		return nil, err
	}
	return n, nil
}

// AddPod applies a pod.Pod across input's stream and registers it as a
// PodNode. label, if empty, defaults to the pod's own name.
func (p *Pipeline) AddPod(label string, pd *pod.Pod, input *Node, dc record.DataContext) (*Node, error) {
	if label == "" {
		label = pd.Name()
	}
	fp := hash.Concat(pd.IdentityHash(), input.fingerprint)
	s, err := pd.Apply(input.strm, fp, p.backing, dc)
	if err != nil {
		return nil, err
	}
	n := newNode(p.nextLabel(label), PodNode, []*Node{input}, s, fp)
	if err := p.register(n); err != nil {
		return nil, err
	}
	return n, nil
}

// Fingerprint folds every registered node's own invocation fingerprint, in
// registration order, into the pipeline's overall fingerprint — the
// topological hash two structurally-identical pipelines (same nodes, same
// inputs) agree on regardless of process.
func (p *Pipeline) Fingerprint() hash.Digest {
	p.mu.Lock()
	defer p.mu.Unlock()
	digests := make([]hash.Digest, len(p.nodes))
	for i, n := range p.nodes {
		digests[i] = n.fingerprint
	}
	return hash.Concat(digests...)
}

// Run executes every registered node in registration order (already
// topological, since a node can only reference upstream nodes registered
// before it). For each node it first checks the backing store's pipeline
// fast path (pipelineFingerprint, node label) before falling through to
// the node's own stream evaluation, which separately consults the store at
// the node's own invocation fingerprint. A failing node aborts the run,
// wrapped with its label.
func (p *Pipeline) Run(ctx context.Context) error {
	start := time.Now()
	pipelineFP := p.Fingerprint()

	for _, n := range p.Nodes() {
		tbl, err := p.runNode(ctx, pipelineFP, n)
		if err != nil {
			if p.metrics != nil {
				p.metrics.NodeRunErrorsTotal.Inc()
			}
			return fmt.Errorf("pipeline %q: node %q: %w", p.name, n.label, err)
		}
		n.result = tbl
	}

	if p.metrics != nil {
		p.metrics.PipelineRunDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}

func (p *Pipeline) runNode(ctx context.Context, pipelineFP hash.Digest, n *Node) (*table.Table, error) {
	if p.backing != nil {
		if tbl, found, err := p.backing.GetResult(ctx, pipelineFP, n.label); err != nil {
			return nil, err
		} else if found {
			if p.metrics != nil {
				p.metrics.NodeCacheHitsTotal.Inc()
				p.metrics.NodesExecutedTotal.Inc()
			}
			return tbl, nil
		}
	}

	tbl, err := n.evaluate(ctx)
	if err != nil {
		return nil, err
	}

	if p.backing != nil {
		if err := p.backing.PutResult(ctx, pipelineFP, n.label, tbl); err != nil {
			return nil, err
		}
	}
	if p.metrics != nil {
		p.metrics.NodesExecutedTotal.Inc()
		if n.kind == PodNode {
			if timer, ok := n.strm.(pod.InvocationTimer); ok {
				if d := timer.InvocationDuration(); d > 0 {
					p.metrics.PodInvocationDuration.Observe(d.Seconds())
				}
			}
		}
	}
	return tbl, nil
}
