package engine

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/noah-isme/taxcore/internal/rules"
	"github.com/noah-isme/taxcore/internal/tax"
)

// ErrDependencyCycle is returned when tax-on-tax dependencies form a cycle.
var ErrDependencyCycle = errors.New("engine: tax dependency cycle")

// Sequence is the ordered rule list of one tax table sequence.
type Sequence struct {
	Name  tax.TaxName
	SeqNo int
	Rules []rules.BusinessRule
}

// Run applies the rules in order and stops at the first failure.
func (s Sequence) Run(applier RuleApplier, itinIndex int, req *tax.Request, svc tax.Services, payments *tax.RawPayments, detail *tax.Detail) bool {
	for _, rule := range s.Rules {
		if !applier.Apply(rule, itinIndex, req, svc, payments, detail) {
			return false
		}
	}
	return true
}

// taxesOptionalServices reports whether the sequence restricts the optional service units it
// taxes. Only such sequences see the optional services of an itinerary.
func (s Sequence) taxesOptionalServices() bool {
	return slices.ContainsFunc(s.Rules, func(rule rules.BusinessRule) bool {
		return rule.ID() == tax.RuleOptionalServiceTags
	})
}

// DependsOn lists the tax codes whose amounts the sequence reads.
func (s Sequence) DependsOn() []string {
	var deps []string
	for _, rule := range s.Rules {
		if d, ok := rule.(rules.Dependent); ok {
			for _, code := range d.DependsOn() {
				if !slices.Contains(deps, code) {
					deps = append(deps, code)
				}
			}
		}
	}
	return deps
}

// group holds the sequences of one tax, tried in SeqNo order.
type group struct {
	name      tax.TaxName
	sequences []Sequence
}

// groupSequences groups sequences by tax name in order of first appearance and orders groups
// so every tax code comes after the codes it depends on.
func groupSequences(sequences []Sequence) ([]group, error) {
	var groups []group
	index := make(map[tax.TaxName]int)
	for _, seq := range sequences {
		i, ok := index[seq.Name]
		if !ok {
			i = len(groups)
			index[seq.Name] = i
			groups = append(groups, group{name: seq.Name})
		}
		groups[i].sequences = append(groups[i].sequences, seq)
	}
	for i := range groups {
		slices.SortStableFunc(groups[i].sequences, func(a, b Sequence) int { return cmp.Compare(a.SeqNo, b.SeqNo) })
	}
	return orderGroups(groups)
}

// orderGroups is a stable topological sort on tax codes: among ready groups the earliest
// declared goes first. Dependencies on codes without sequences are ignored.
func orderGroups(groups []group) ([]group, error) {
	deps := make([][]string, len(groups))
	known := make(map[string]bool, len(groups))
	for _, g := range groups {
		known[g.name.TaxCode] = true
	}
	for i, g := range groups {
		for _, seq := range g.sequences {
			for _, code := range seq.DependsOn() {
				if known[code] && !slices.Contains(deps[i], code) {
					deps[i] = append(deps[i], code)
				}
			}
		}
	}

	remaining := make(map[string]int, len(groups))
	for _, g := range groups {
		remaining[g.name.TaxCode]++
	}
	ordered := make([]group, 0, len(groups))
	done := make([]bool, len(groups))
	for len(ordered) < len(groups) {
		progressed := false
		for i, g := range groups {
			if done[i] || !ready(deps[i], remaining) {
				continue
			}
			done[i] = true
			remaining[g.name.TaxCode]--
			ordered = append(ordered, g)
			progressed = true
			break
		}
		if !progressed {
			var stuck []string
			for i, g := range groups {
				if !done[i] {
					stuck = append(stuck, g.name.TaxCode)
				}
			}
			return nil, fmt.Errorf("%w: %v", ErrDependencyCycle, stuck)
		}
	}
	return ordered, nil
}

func ready(deps []string, remaining map[string]int) bool {
	for _, code := range deps {
		if remaining[code] > 0 {
			return false
		}
	}
	return true
}
