package core

import "fmt"

// JobDataMap holds serializable state associated with a job or trigger.
// Any mutating operation sets the dirty flag; ClearDirtyFlag resets it.
type JobDataMap struct {
	data  map[string]any
	dirty bool
}

func NewJobDataMap() *JobDataMap {
	return &JobDataMap{data: make(map[string]any)}
}

// NewJobDataMapFrom builds a map pre-populated from m. The dirty flag
// starts clear.
func NewJobDataMapFrom(m map[string]any) *JobDataMap {
	d := NewJobDataMap()
	for k, v := range m {
		d.data[k] = v
	}
	return d
}

func (m *JobDataMap) Put(key string, value any) {
	m.data[key] = value
	m.dirty = true
}

// PutAll copies every entry of other into the map.
func (m *JobDataMap) PutAll(other *JobDataMap) {
	if other == nil || len(other.data) == 0 {
		return
	}
	for k, v := range other.data {
		m.data[k] = v
	}
	m.dirty = true
}

func (m *JobDataMap) Get(key string) (any, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *JobDataMap) GetString(key string) (string, bool) {
	if v, ok := m.data[key]; ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

func (m *JobDataMap) GetInt(key string) (int, bool) {
	switch v := m.data[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func (m *JobDataMap) GetBool(key string) (bool, bool) {
	if v, ok := m.data[key].(bool); ok {
		return v, true
	}
	return false, false
}

func (m *JobDataMap) GetFloat(key string) (float64, bool) {
	switch v := m.data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func (m *JobDataMap) Remove(key string) {
	if _, ok := m.data[key]; ok {
		delete(m.data, key)
		m.dirty = true
	}
}

func (m *JobDataMap) Clear() {
	if len(m.data) > 0 {
		m.data = make(map[string]any)
		m.dirty = true
	}
}

func (m *JobDataMap) Contains(key string) bool {
	_, ok := m.data[key]
	return ok
}

func (m *JobDataMap) Len() int {
	return len(m.data)
}

// Keys returns the stored keys in unspecified order.
func (m *JobDataMap) Keys() []string {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

// Range calls fn for each entry until fn returns false. Mutation during
// Range is not supported; use Keys plus Get/Put instead.
func (m *JobDataMap) Range(fn func(key string, value any) bool) {
	for k, v := range m.data {
		if !fn(k, v) {
			return
		}
	}
}

func (m *JobDataMap) IsDirty() bool {
	return m.dirty
}

func (m *JobDataMap) ClearDirtyFlag() {
	m.dirty = false
}

// Clone returns an independent copy carrying the same dirty state.
func (m *JobDataMap) Clone() *JobDataMap {
	if m == nil {
		return NewJobDataMap()
	}
	c := &JobDataMap{data: make(map[string]any, len(m.data)), dirty: m.dirty}
	for k, v := range m.data {
		c.data[k] = v
	}
	return c
}

func (m *JobDataMap) String() string {
	return fmt.Sprintf("JobDataMap(%d entries, dirty=%t)", len(m.data), m.dirty)
}
