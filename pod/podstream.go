package pod

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"sync"
	"time"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/orcaerr"
	"github.com/brian-arnold/orcapod/record"
	"github.com/brian-arnold/orcapod/store"
	"github.com/brian-arnold/orcapod/stream"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

// Call invokes the pod against a single (tag, packet) pair, wrapping the
// invocation fingerprint's fields into the output packet's source info.
// Most callers go through Apply, which applies Call across a whole input
// stream; Call is exported for invoking a pod on a single record outside a
// stream context.
func (p *Pod) Call(in stream.Record, invocation hash.Digest, dc record.DataContext) (stream.Record, error) {
	args := make([]reflect.Value, len(p.inputs))
	for i, spec := range p.inputs {
		v, ok := in.Packet.Get(spec.Name)
		if !ok {
			return stream.Record{}, orcaerr.MissingField(p.name,
				fmt.Sprintf("input packet missing field %q", spec.Name), nil)
		}
		rv := reflect.ValueOf(v)
		want := p.fn.Type().In(i)
		if rv.Type() != want {
			rv = rv.Convert(want)
		}
		args[i] = rv
	}

	results := p.fn.Call(args)
	if p.returnsErr {
		if errVal := results[len(results)-1]; !errVal.IsNil() {
			tag := in.Tag.AsDict()
			return stream.Record{}, orcaerr.PodRuntimeError(p.name, tag, errVal.Interface().(error))
		}
		results = results[:len(results)-1]
	}

	values := make(map[string]any, len(p.outputs))
	keys := make([]string, len(p.outputs))
	for i, out := range p.outputs {
		values[out.Key] = results[i].Interface()
		keys[i] = out.Key
	}

	packet, err := record.WithSource(p.outputSchema, values, invocation, keys, dc)
	if err != nil {
		return stream.Record{}, err
	}
	return stream.Record{Tag: in.Tag, Packet: packet}, nil
}

// Apply returns a lazy stream applying p row-by-row over in. fingerprint is
// the node's invocation fingerprint (identity hash folded with in's own
// fingerprint, computed by package pipeline); backing may be nil.
func (p *Pod) Apply(in stream.Stream, fingerprint hash.Digest, backing store.Store, dc record.DataContext) (stream.Stream, error) {
	for _, spec := range p.inputs {
		if k, ok := in.PacketSchema().Kind(spec.Name); !ok || k != spec.Kind {
			return nil, orcaerr.SchemaMismatch("pod.Apply",
				fmt.Sprintf("input stream missing declared field %q of kind %s", spec.Name, spec.Kind), nil)
		}
	}
	return &podStream{
		pod:         p,
		in:          in,
		fingerprint: fingerprint,
		backing:     backing,
		dc:          dc,
	}, nil
}

type podStream struct {
	pod         *Pod
	in          stream.Stream
	fingerprint hash.Digest
	backing     store.Store
	dc          record.DataContext

	once     sync.Once
	records  []stream.Record
	duration time.Duration
	err      error
}

func (s *podStream) TagSchema() types.TypeSpec    { return s.in.TagSchema() }
func (s *podStream) PacketSchema() types.TypeSpec { return s.pod.outputSchema }

func (s *podStream) materialize(ctx context.Context) ([]stream.Record, error) {
	s.once.Do(func() {
		s.records, s.err = s.evaluate(ctx)
	})
	return s.records, s.err
}

func (s *podStream) evaluate(ctx context.Context) ([]stream.Record, error) {
	if s.backing != nil {
		if tbl, found, err := s.getCached(ctx); err != nil {
			return nil, err
		} else if found {
			return stream.RecordsFromTable(tbl, s.in.TagSchema(), s.pod.outputSchema, s.dc)
		}
	}

	upstream, err := s.in.Flow(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]stream.Record, 0, len(upstream))
	start := time.Now()
	for _, rec := range upstream {
		outRec, err := s.pod.Call(rec, s.fingerprint, s.dc)
		if err != nil {
			return nil, err
		}
		out = append(out, outRec)
	}
	s.duration = time.Since(start)

	if s.backing != nil {
		if err := s.putCached(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *podStream) getCached(ctx context.Context) (*table.Table, bool, error) {
	ok, err := s.backing.Has(ctx, s.fingerprint)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	tbl, err := s.backing.GetTable(ctx, s.fingerprint)
	if err != nil {
		return nil, false, err
	}
	return tbl, true, nil
}

func (s *podStream) putCached(ctx context.Context, records []stream.Record) error {
	tbl, err := stream.BuildTable(records, s.in.TagSchema(), s.pod.outputSchema, stream.TableOptions{})
	if err != nil {
		return err
	}
	if err := s.backing.PutTable(ctx, s.fingerprint, tbl); err != nil {
		return fmt.Errorf("pod: %s: %w", s.pod.name, orcaerr.FingerprintCollision("pod.Apply", "cached table mismatch", err))
	}
	return nil
}

func (s *podStream) Iter(ctx context.Context) iter.Seq2[stream.Record, error] {
	return func(yield func(stream.Record, error) bool) {
		records, err := s.materialize(ctx)
		if err != nil {
			yield(stream.Record{}, err)
			return
		}
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (s *podStream) Flow(ctx context.Context) ([]stream.Record, error) {
	return s.materialize(ctx)
}

func (s *podStream) AsTable(ctx context.Context, opts stream.TableOptions) (*table.Table, error) {
	records, err := s.materialize(ctx)
	if err != nil {
		return nil, err
	}
	return stream.BuildTable(records, s.in.TagSchema(), s.pod.outputSchema, opts)
}

// InvocationDuration reports how long the most recent non-cached evaluation
// took, for package metrics' pod-invocation-duration histogram. Zero until
// the stream has been materialized at least once without a cache hit.
func (s *podStream) InvocationDuration() time.Duration {
	return s.duration
}

// InvocationTimer is implemented by pod streams that record how long their
// most recent non-cached evaluation took. package pipeline type-asserts a
// node's stream to this interface to feed the pod-invocation-duration
// histogram.
type InvocationTimer interface {
	InvocationDuration() time.Duration
}
