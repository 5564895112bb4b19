// Package predicate defines the metadata filter expression tree evaluated
// by the predicate index during GetPred / GetSimN queries.
package predicate

import "github.com/ahnlich/ahnlich-db/internal/metadata"

// Op names a single-key comparison operator.
type Op uint8

const (
	// Equals matches records whose value for Key equals Value.
	Equals Op = iota
	// NotEquals matches records whose value for Key is absent or differs
	// from Value.
	NotEquals
	// In matches records whose value for Key is one of Values.
	In
	// NotIn matches records whose value for Key is absent or not one of
	// Values.
	NotIn
)

// Predicate is a single metadata leaf comparison: a key, an operator, and
// one or more comparison values (Equals/NotEquals use exactly one; In/NotIn
// use the full set).
type Predicate struct {
	Key    metadata.Key
	Op     Op
	Values []metadata.Value
}

// Eq builds an Equals predicate.
func Eq(key metadata.Key, value metadata.Value) Predicate {
	return Predicate{Key: key, Op: Equals, Values: []metadata.Value{value}}
}

// NotEq builds a NotEquals predicate.
func NotEq(key metadata.Key, value metadata.Value) Predicate {
	return Predicate{Key: key, Op: NotEquals, Values: []metadata.Value{value}}
}

// InSet builds an In predicate.
func InSet(key metadata.Key, values ...metadata.Value) Predicate {
	return Predicate{Key: key, Op: In, Values: values}
}

// NotInSet builds a NotIn predicate.
func NotInSet(key metadata.Key, values ...metadata.Value) Predicate {
	return Predicate{Key: key, Op: NotIn, Values: values}
}

// Matches evaluates the predicate directly against a metadata map. This is
// the fallback path used for NotEquals/NotIn scans over an unindexed key.
func (p Predicate) Matches(m metadata.Map) bool {
	v, ok := m[p.Key]
	switch p.Op {
	case Equals:
		return ok && v.Equal(p.Values[0])
	case NotEquals:
		return !ok || !v.Equal(p.Values[0])
	case In:
		if !ok {
			return false
		}
		for _, want := range p.Values {
			if v.Equal(want) {
				return true
			}
		}
		return false
	case NotIn:
		if !ok {
			return true
		}
		for _, want := range p.Values {
			if v.Equal(want) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// CombinatorKind discriminates the condition tree node types.
type CombinatorKind uint8

const (
	// NodeValue wraps a single Predicate leaf.
	NodeValue CombinatorKind = iota
	// NodeAnd intersects the results of Left and Right.
	NodeAnd
	// NodeOr unions the results of Left and Right.
	NodeOr
)

// Condition is the recursive filter expression tree: either a single
// Predicate leaf, or an And/Or combination of two sub-conditions. Mirrors
// the And/Or/Value shape of the upstream PredicateCondition enum.
type Condition struct {
	Kind      CombinatorKind
	Predicate Predicate
	Left      *Condition
	Right     *Condition
}

// Value wraps a single predicate as a leaf condition.
func Value(p Predicate) *Condition {
	return &Condition{Kind: NodeValue, Predicate: p}
}

// And combines two conditions with logical AND.
func (c *Condition) And(other *Condition) *Condition {
	return &Condition{Kind: NodeAnd, Left: c, Right: other}
}

// Or combines two conditions with logical OR.
func (c *Condition) Or(other *Condition) *Condition {
	return &Condition{Kind: NodeOr, Left: c, Right: other}
}

// Matches evaluates the full tree directly against a metadata map.
func (c *Condition) Matches(m metadata.Map) bool {
	if c == nil {
		return true
	}
	switch c.Kind {
	case NodeValue:
		return c.Predicate.Matches(m)
	case NodeAnd:
		return c.Left.Matches(m) && c.Right.Matches(m)
	case NodeOr:
		return c.Left.Matches(m) || c.Right.Matches(m)
	default:
		return false
	}
}
