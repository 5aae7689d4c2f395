package types

// Metadata is a string-keyed attribute map that preserves insertion order.
// Iteration via Keys is deterministic: keys appear in the order they were
// first set. A nil value is a real entry; use Has to distinguish a nil
// value from an absent key.
type Metadata struct {
	keys   []string
	values map[string]any
}

// NewMetadata returns an empty metadata map.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]any)}
}

// Set stores value under key. A new key is appended to the iteration order;
// an existing key keeps its position.
func (m *Metadata) Set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key and whether the key is present.
func (m *Metadata) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Value returns the value for key, nil if absent.
func (m *Metadata) Value(key string) any {
	return m.values[key]
}

// Has reports whether key is present, even with a nil value.
func (m *Metadata) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// IsSet reports whether key is present with a non-nil value.
func (m *Metadata) IsSet(key string) bool {
	v, ok := m.values[key]
	return ok && v != nil
}

// Keys returns the keys in insertion order. The slice is shared; callers
// must not modify it.
func (m *Metadata) Keys() []string {
	return m.keys
}

// Len returns the number of entries.
func (m *Metadata) Len() int {
	return len(m.keys)
}

// Delete removes key if present.
func (m *Metadata) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Update sets every entry of other, in other's order.
func (m *Metadata) Update(other *Metadata) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		m.Set(k, other.values[k])
	}
}

// Clone returns an independent copy.
func (m *Metadata) Clone() *Metadata {
	out := &Metadata{
		keys:   make([]string, len(m.keys)),
		values: make(map[string]any, len(m.values)),
	}
	copy(out.keys, m.keys)
	for k, v := range m.values {
		out.values[k] = v
	}
	return out
}
