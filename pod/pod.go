// Package pod implements FunctionPod: wrapping a plain Go function as a
// pure, content-addressed pipeline node.
package pod

import (
	"fmt"
	"reflect"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/orcaerr"
	"github.com/brian-arnold/orcapod/types"
)

// InputSpec declares one positional argument fn expects, by name and
// logical kind. Go cannot recover a function's parameter names by
// reflection, so callers declare them explicitly.
type InputSpec struct {
	Name string
	Kind types.Kind
}

// OutputSpec declares one value fn returns, by the packet field key it is
// stored under and its logical kind.
type OutputSpec struct {
	Key  string
	Kind types.Kind
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Pod is a content-addressed, pure function wrapped for use as a pipeline
// node.
type Pod struct {
	name        string
	fn          reflect.Value
	inputs      []InputSpec
	outputs     []OutputSpec
	implVersion string
	returnsErr  bool

	inputSchema  types.TypeSpec
	outputSchema types.TypeSpec
	identity     hash.Digest
}

// FunctionPod wraps fn as a Pod. fn's reflected signature must accept
// exactly len(inputs) arguments, one per declared InputSpec in order, and
// return either len(outputs) values or len(outputs)+1 values with a
// trailing error — the idiomatic-Go extension of a pure-function return
// model. implVersion is required and never defaulted or derived: it is the
// only thing that invalidates a pod's identity hash after a semantic edit
// to fn.
func FunctionPod(name string, fn any, inputs []InputSpec, outputs []OutputSpec, implVersion string) (*Pod, error) {
	if implVersion == "" {
		return nil, orcaerr.MissingField("pod.FunctionPod", "implVersion is required", nil)
	}

	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return nil, orcaerr.SchemaMismatch("pod.FunctionPod", fmt.Sprintf("fn must be a function, got %T", fn), nil)
	}
	ft := fv.Type()

	if ft.NumIn() != len(inputs) {
		return nil, orcaerr.SchemaMismatch("pod.FunctionPod",
			fmt.Sprintf("fn accepts %d arguments, want %d declared inputs", ft.NumIn(), len(inputs)), nil)
	}
	for i, in := range inputs {
		if !kindAssignableTo(in.Kind, ft.In(i)) {
			return nil, orcaerr.SchemaMismatch("pod.FunctionPod",
				fmt.Sprintf("input %q declared as %s is not assignable to fn parameter %d (%s)", in.Name, in.Kind, i, ft.In(i)), nil)
		}
	}

	returnsErr := false
	switch ft.NumOut() {
	case len(outputs):
	case len(outputs) + 1:
		if !ft.Out(ft.NumOut() - 1).Implements(errorType) {
			return nil, orcaerr.SchemaMismatch("pod.FunctionPod",
				"fn has one extra return value but it is not error", nil)
		}
		returnsErr = true
	default:
		return nil, orcaerr.SchemaMismatch("pod.FunctionPod",
			fmt.Sprintf("fn returns %d values, want %d declared outputs (optionally +1 trailing error)", ft.NumOut(), len(outputs)), nil)
	}
	for i, out := range outputs {
		if !kindAssignableTo(out.Kind, ft.Out(i)) {
			return nil, orcaerr.SchemaMismatch("pod.FunctionPod",
				fmt.Sprintf("output %q declared as %s is not assignable from fn return %d (%s)", out.Key, out.Kind, i, ft.Out(i)), nil)
		}
	}

	inFields := make([]types.Field, len(inputs))
	for i, in := range inputs {
		inFields[i] = types.Field{Name: in.Name, Kind: in.Kind}
	}
	inputSchema, err := types.NewTypeSpec(inFields...)
	if err != nil {
		return nil, err
	}
	outFields := make([]types.Field, len(outputs))
	for i, out := range outputs {
		outFields[i] = types.Field{Name: out.Key, Kind: out.Kind}
	}
	outputSchema, err := types.NewTypeSpec(outFields...)
	if err != nil {
		return nil, err
	}

	p := &Pod{
		name:         name,
		fn:           fv,
		inputs:       append([]InputSpec(nil), inputs...),
		outputs:      append([]OutputSpec(nil), outputs...),
		implVersion:  implVersion,
		returnsErr:   returnsErr,
		inputSchema:  inputSchema,
		outputSchema: outputSchema,
	}
	p.identity = p.computeIdentity()
	return p, nil
}

// kindAssignableTo reports whether a value of logical kind k can be passed
// to (or returned as) a Go value of type t. Integer kinds accept any Go
// integer type and float kinds either Go float type; widths are not
// compared, and conversion happens at call time via reflect.Value.Convert.
func kindAssignableTo(k types.Kind, t reflect.Type) bool {
	switch {
	case k == types.Bool:
		return t.Kind() == reflect.Bool
	case k.IsInteger():
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		default:
			return false
		}
	case k.IsFloat():
		return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
	case k == types.String || k == types.Path:
		return t.Kind() == reflect.String
	case k == types.Binary:
		return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
	case k == types.Timestamp:
		return t.String() == "time.Time"
	default:
		return false
	}
}

// computeIdentity hashes the pod's name, ordered (input name, kind) pairs,
// ordered (output key, kind) pairs, and implVersion — stable across
// processes.
func (p *Pod) computeIdentity() hash.Digest {
	var payload []byte
	payload = append(payload, []byte(p.name)...)
	payload = append(payload, 0)
	for _, in := range p.inputs {
		payload = append(payload, []byte(in.Name)...)
		payload = append(payload, 0, byte(in.Kind), 0)
	}
	for _, out := range p.outputs {
		payload = append(payload, []byte(out.Key)...)
		payload = append(payload, 0, byte(out.Kind), 0)
	}
	payload = append(payload, []byte(p.implVersion)...)
	return hash.HashBytes(payload)
}

func (p *Pod) Name() string                  { return p.name }
func (p *Pod) IdentityHash() hash.Digest     { return p.identity }
func (p *Pod) InputSchema() types.TypeSpec   { return p.inputSchema }
func (p *Pod) OutputSchema() types.TypeSpec  { return p.outputSchema }
