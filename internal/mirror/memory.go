package mirror

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/roomchat/internal/model"
	"github.com/samber/lo"
)

// MemoryRemote is an in-process Remote used by tests and by the "memory"
// mirror driver in development.
type MemoryRemote struct {
	mu     sync.Mutex
	tables map[string]map[string]Row
	order  map[string][]string
	fail   error
}

var _ Remote = (*MemoryRemote)(nil)

func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{
		tables: make(map[string]map[string]Row),
		order:  make(map[string][]string),
	}
}

// SetFailure makes every subsequent call return err; nil restores service.
func (m *MemoryRemote) SetFailure(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func (m *MemoryRemote) Insert(_ context.Context, table string, row Row) (string, error) {
	if err := ValidTable(table); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	t, ok := m.tables[table]
	if !ok {
		t = make(map[string]Row)
		m.tables[table] = t
	}
	id := uuid.NewString()
	if v, ok := row[FieldID]; ok && v != nil {
		id = asString(v)
		if _, exists := t[id]; exists {
			return id, nil
		}
	}
	t[id] = lo.Assign(row)
	m.order[table] = append(m.order[table], id)
	return id, nil
}

func (m *MemoryRemote) Update(_ context.Context, table, id string, fields Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	row, ok := m.tables[table][id]
	if !ok {
		return fmt.Errorf("mirror memory update %s/%s: %w", table, id, model.ErrNotFound)
	}
	m.tables[table][id] = lo.Assign(row, fields)
	return nil
}

func (m *MemoryRemote) Select(_ context.Context, table string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	out := make([]Record, 0, len(m.order[table]))
	for _, id := range m.order[table] {
		out = append(out, Record{ID: id, Row: lo.Assign(m.tables[table][id])})
	}
	return out, nil
}

// Get returns a copy of one record, for assertions.
func (m *MemoryRemote) Get(table, id string) (Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.tables[table][id]
	if !ok {
		return nil, false
	}
	return lo.Assign(row), true
}

// Put stores a record under a fixed remote id, as if written by another instance.
func (m *MemoryRemote) Put(table, id string, row Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		t = make(map[string]Row)
		m.tables[table] = t
	}
	if _, exists := t[id]; !exists {
		m.order[table] = append(m.order[table], id)
	}
	t[id] = lo.Assign(row)
}

// Len reports the number of records in table.
func (m *MemoryRemote) Len(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func (m *MemoryRemote) Close(context.Context) error { return nil }
