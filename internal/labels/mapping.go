// Package labels maps classifier class indices to sign names and back.
package labels

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownKey matches every UnknownKeyError via errors.Is.
var ErrUnknownKey = errors.New("unknown label key")

// UnknownKeyError reports an index or name missing from a Mapping.
type UnknownKeyError struct {
	Key string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown label key %q", e.Key)
}

func (e *UnknownKeyError) Is(target error) bool {
	return target == ErrUnknownKey
}

// Mapping is an immutable bijection between contiguous class indices
// 0..K-1 and sign names.
type Mapping struct {
	names []string
	index map[string]int
}

// AtoFLetters is the fixed class order of the six-letter variant.
var AtoFLetters = []string{"A", "B", "C", "D", "E", "F"}

// New builds a mapping where names[i] is the name of class i.
func New(names []string) (*Mapping, error) {
	if len(names) == 0 {
		return nil, errors.New("label mapping needs at least one class")
	}
	m := &Mapping{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("label %d has an empty name", i)
		}
		if j, dup := m.index[name]; dup {
			return nil, fmt.Errorf("label %q used for both %d and %d", name, j, i)
		}
		m.names[i] = name
		m.index[name] = i
	}
	return m, nil
}

// AtoF returns the fixed six-letter mapping 0->A ... 5->F.
func AtoF() *Mapping {
	m, _ := New(AtoFLetters)
	return m
}

// FromDirectories builds a mapping from the subdirectory names of dir,
// sorted so the index order does not depend on filesystem listing order.
func FromDirectories(dir string) (*Mapping, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read class directories: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no class directories in %s", dir)
	}
	sort.Strings(names)
	return New(names)
}

// Len returns the number of classes.
func (m *Mapping) Len() int {
	return len(m.names)
}

// Names returns the class names in index order.
func (m *Mapping) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// ToIndex returns the class index of name.
func (m *Mapping) ToIndex(name string) (int, error) {
	i, ok := m.index[name]
	if !ok {
		return 0, &UnknownKeyError{Key: name}
	}
	return i, nil
}

// ToName returns the name of class i.
func (m *Mapping) ToName(i int) (string, error) {
	if i < 0 || i >= len(m.names) {
		return "", &UnknownKeyError{Key: strconv.Itoa(i)}
	}
	return m.names[i], nil
}

// Contains reports whether index i is a valid class.
func (m *Mapping) Contains(i int) bool {
	return i >= 0 && i < len(m.names)
}

// Equal reports whether both mappings assign the same names to the same indices.
func (m *Mapping) Equal(o *Mapping) bool {
	if m == nil || o == nil {
		return m == o
	}
	if len(m.names) != len(o.names) {
		return false
	}
	for i := range m.names {
		if m.names[i] != o.names[i] {
			return false
		}
	}
	return true
}

func (m *Mapping) String() string {
	return strings.Join(m.names, ",")
}

// MarshalJSON encodes the mapping as {"0":"A","1":"B",...}.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	obj := make(map[string]string, len(m.names))
	for i, name := range m.names {
		obj[strconv.Itoa(i)] = name
	}
	return json.Marshal(obj)
}

// UnmarshalJSON decodes {"0":"A",...}, requiring contiguous indices from 0.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	names := make([]string, len(obj))
	for k, name := range obj {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(obj) {
			return fmt.Errorf("label mapping key %q is not an index in [0,%d)", k, len(obj))
		}
		names[i] = name
	}
	built, err := New(names)
	if err != nil {
		return err
	}
	*m = *built
	return nil
}

// IsAtoF reports whether sign is one of the letters A through F, ignoring case.
func IsAtoF(sign string) bool {
	if len(sign) != 1 {
		return false
	}
	c := sign[0] | 0x20
	return c >= 'a' && c <= 'f'
}
