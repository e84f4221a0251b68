package session

import (
	"fmt"
	"sync"

	"jfrq/internal/query/ast"
	"jfrq/internal/query/pipeline"
)

// Variable is a named, materialized query result: `$varname := events/... |
// count()` binds varname to the rows produced by evaluating query once.
// Later references may grow the pipeline further via ApplyPipeline without
// re-streaming the recording (spec §4.6, "lazily cached variables").
type Variable struct {
	Name  string
	Query string
	Rows  []*pipeline.Row
}

// VariableStore holds a session's named variables, grounded on
// app/interfaces/types.go's FileTab.QueryCache/QueryCacheOrder (a named slot
// holding a materialized result, invalidated by file/identity change),
// renamed here from file tabs to query variables.
type VariableStore struct {
	mu    sync.Mutex
	vars  map[string]*Variable
	order []string
}

// NewVariableStore returns an empty store.
func NewVariableStore() *VariableStore {
	return &VariableStore{vars: make(map[string]*Variable)}
}

// Set evaluates query against s and binds the result to name, overwriting
// any prior binding for name.
func (s *Session) Set(store *VariableStore, name, query string) (*Variable, error) {
	rows, err := s.Evaluate(query)
	if err != nil {
		return nil, err
	}
	v := &Variable{Name: name, Query: query, Rows: rows}
	store.put(v)
	return v, nil
}

// Get returns the variable bound to name, if any.
func (store *VariableStore) Get(name string) (*Variable, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	v, ok := store.vars[name]
	return v, ok
}

// Names returns every bound variable name in binding order.
func (store *VariableStore) Names() []string {
	store.mu.Lock()
	defer store.mu.Unlock()
	out := make([]string, len(store.order))
	copy(out, store.order)
	return out
}

// Delete removes name's binding, a no-op if absent.
func (store *VariableStore) Delete(name string) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.vars[name]; !ok {
		return
	}
	delete(store.vars, name)
	for i, n := range store.order {
		if n == name {
			store.order = append(store.order[:i], store.order[i+1:]...)
			break
		}
	}
}

// Clear drops every binding, for when the underlying recording's content
// hash changes and all cached variables are stale.
func (store *VariableStore) Clear() {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.vars = make(map[string]*Variable)
	store.order = nil
}

func (store *VariableStore) put(v *Variable) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, exists := store.vars[v.Name]; !exists {
		store.order = append(store.order, v.Name)
	}
	store.vars[v.Name] = v
}

// ApplyPipeline grows name's bound rows by running ops through
// Session.ApplyToRows (cacheable stages only, per spec §4.6) and rebinds the
// result under name, returning the new row set.
func (s *Session) ApplyPipeline(store *VariableStore, name string, ops []ast.PipelineOp) ([]*pipeline.Row, error) {
	v, ok := store.Get(name)
	if !ok {
		return nil, fmt.Errorf("session: no such variable %q", name)
	}
	rows, err := s.ApplyToRows(v.Rows, ops)
	if err != nil {
		return nil, err
	}
	store.put(&Variable{Name: name, Query: v.Query, Rows: rows})
	return rows, nil
}
