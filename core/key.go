package core

import (
	"fmt"
	"strings"
)

// DefaultGroup is the group assigned to keys created without one.
const DefaultGroup = "DEFAULT"

// Key identifies a job or trigger by group and name. The pair must be
// unique within its kind; jobs and triggers live in separate namespaces.
type Key struct {
	Group string
	Name  string
}

func (k Key) String() string {
	return k.Group + "." + k.Name
}

func (k Key) IsZero() bool {
	return k.Group == "" && k.Name == ""
}

// Less orders keys by group then name, with the default group sorting
// before all others.
func (k Key) Less(other Key) bool {
	if k.Group != other.Group {
		if k.Group == DefaultGroup {
			return true
		}
		if other.Group == DefaultGroup {
			return false
		}
		return k.Group < other.Group
	}
	return k.Name < other.Name
}

// JobKey identifies a job detail.
type JobKey struct {
	Key
}

// TriggerKey identifies a trigger.
type TriggerKey struct {
	Key
}

func NewJobKey(name string) JobKey {
	return JobKey{Key{Group: DefaultGroup, Name: name}}
}

func NewJobKeyWithGroup(name, group string) JobKey {
	if group == "" {
		group = DefaultGroup
	}
	return JobKey{Key{Group: group, Name: name}}
}

func NewTriggerKey(name string) TriggerKey {
	return TriggerKey{Key{Group: DefaultGroup, Name: name}}
}

func NewTriggerKeyWithGroup(name, group string) TriggerKey {
	if group == "" {
		group = DefaultGroup
	}
	return TriggerKey{Key{Group: group, Name: name}}
}

// parseKey splits "group.name" (name may contain dots; the first dot
// separates) or treats a dotless string as a name in the default group.
func parseKey(s string) (Key, error) {
	if s == "" {
		return Key{}, fmt.Errorf("parse key: empty: %w", ErrInvalidKey)
	}
	idx := strings.Index(s, ".")
	if idx < 0 {
		return Key{Group: DefaultGroup, Name: s}, nil
	}
	group, name := s[:idx], s[idx+1:]
	if group == "" || name == "" {
		return Key{}, fmt.Errorf("parse key %q: %w", s, ErrInvalidKey)
	}
	return Key{Group: group, Name: name}, nil
}

func ParseJobKey(s string) (JobKey, error) {
	k, err := parseKey(s)
	return JobKey{k}, err
}

func ParseTriggerKey(s string) (TriggerKey, error) {
	k, err := parseKey(s)
	return TriggerKey{k}, err
}
