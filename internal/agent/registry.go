package agent

import "fmt"

// Spec is one tool's name and description as presented to the classifier.
type Spec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry is the closed set of tools a dispatcher may select from.
// Registration order is preserved for prompt stability.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering two tools with the same name is a
// programming error and fails.
func (r *Registry) Register(tool Tool) error {
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool has no name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Get returns the tool registered under name, or false when absent.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Specs returns every registered tool's name and description in registration
// order, for the classifier prompt.
func (r *Registry) Specs() []Spec {
	specs := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, Spec{
			Name:        name,
			Description: r.tools[name].Description(),
		})
	}
	return specs
}
