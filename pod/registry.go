package pod

import "fmt"

// Registry names Pods so the run CLI can reference compiled-in Go functions
// from a YAML pipeline definition, since a function value itself has no
// serializable identity.
type Registry struct {
	pods map[string]*Pod
}

func NewRegistry() *Registry {
	return &Registry{pods: make(map[string]*Pod)}
}

// Register adds p under name, failing if name is already taken.
func (r *Registry) Register(name string, p *Pod) error {
	if _, exists := r.pods[name]; exists {
		return fmt.Errorf("pod: registry already has a pod named %q", name)
	}
	r.pods[name] = p
	return nil
}

// Lookup returns the pod registered under name.
func (r *Registry) Lookup(name string) (*Pod, bool) {
	p, ok := r.pods[name]
	return p, ok
}

// Names returns every registered pod name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.pods))
	for name := range r.pods {
		names = append(names, name)
	}
	return names
}
