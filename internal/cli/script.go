package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
)

type change struct {
	tick  uint64
	value bool
}

// Script drives predicates from the command line: each condition has a base
// value and may be switched at given ticks. It is read-only once parsed.
type Script struct {
	base    map[string]bool
	changes map[string][]change
}

// ParseScript builds a Script. trueNames start as true; every other
// condition starts false. Each entry of at has the form "TICK:NAME=BOOL".
func ParseScript(trueNames []string, at []string) (*Script, error) {
	s := &Script{
		base:    make(map[string]bool),
		changes: make(map[string][]change),
	}
	for _, name := range trueNames {
		if name = strings.TrimSpace(name); name != "" {
			s.base[name] = true
		}
	}
	for _, entry := range at {
		tickText, assign, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("invalid --at %q: expected TICK:NAME=BOOL", entry)
		}
		tick, err := strconv.ParseUint(strings.TrimSpace(tickText), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --at %q: %w", entry, err)
		}
		name, valueText, ok := strings.Cut(assign, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --at %q: expected TICK:NAME=BOOL", entry)
		}
		value, err := strconv.ParseBool(strings.TrimSpace(valueText))
		if err != nil {
			return nil, fmt.Errorf("invalid --at %q: %w", entry, err)
		}
		name = strings.TrimSpace(name)
		s.changes[name] = append(s.changes[name], change{tick: tick, value: value})
	}
	for _, list := range s.changes {
		sort.SliceStable(list, func(i, j int) bool { return list[i].tick < list[j].tick })
	}
	return s, nil
}

// Value returns the value of name at tick.
func (s *Script) Value(name string, tick uint64) bool {
	value := s.base[name]
	for _, c := range s.changes[name] {
		if c.tick > tick {
			break
		}
		value = c.value
	}
	return value
}

// Register registers a scripted predicate for every condition the engine's
// tree references.
func (s *Script) Register(eng *arbor.Engine) error {
	for _, name := range Conditions(eng) {
		name := name
		err := eng.RegisterCondition(name, func(scope domain.Scope) bool {
			return s.Value(name, scope.Tick.Seq)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Conditions lists the distinct condition names referenced by the tree, sorted.
func Conditions(eng *arbor.Engine) []string {
	seen := make(map[string]bool)
	for _, exprs := range eng.Tree().Expressions() {
		for _, expr := range exprs {
			for _, leaf := range expr.Leaves() {
				seen[leaf] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
