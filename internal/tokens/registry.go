package tokens

import "fitdash/internal/model"

// Registry holds one Manager per provider.
type Registry map[model.Provider]*Manager

func NewRegistry(managers ...*Manager) Registry {
	r := make(Registry, len(managers))
	for _, m := range managers {
		r[m.Provider()] = m
	}
	return r
}

// Manager returns the manager for p, or false when p is not registered.
func (r Registry) Manager(p model.Provider) (*Manager, bool) {
	m, ok := r[p]
	return m, ok
}
