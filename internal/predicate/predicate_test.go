package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahnlich/ahnlich-db/internal/metadata"
)

func TestEqualsMatches(t *testing.T) {
	p := Eq("color", metadata.Text("red"))
	assert.True(t, p.Matches(metadata.Map{"color": metadata.Text("red")}))
	assert.False(t, p.Matches(metadata.Map{"color": metadata.Text("blue")}))
	assert.False(t, p.Matches(metadata.Map{}), "missing key never equals")
}

func TestNotEqualsMatchesMissingKey(t *testing.T) {
	p := NotEq("color", metadata.Text("red"))
	assert.True(t, p.Matches(metadata.Map{}), "a missing key is not equal to anything")
	assert.True(t, p.Matches(metadata.Map{"color": metadata.Text("blue")}))
	assert.False(t, p.Matches(metadata.Map{"color": metadata.Text("red")}))
}

func TestInSet(t *testing.T) {
	p := InSet("color", metadata.Text("red"), metadata.Text("green"))
	assert.True(t, p.Matches(metadata.Map{"color": metadata.Text("green")}))
	assert.False(t, p.Matches(metadata.Map{"color": metadata.Text("blue")}))
	assert.False(t, p.Matches(metadata.Map{}))
}

func TestNotInSet(t *testing.T) {
	p := NotInSet("color", metadata.Text("red"), metadata.Text("green"))
	assert.True(t, p.Matches(metadata.Map{"color": metadata.Text("blue")}))
	assert.True(t, p.Matches(metadata.Map{}))
	assert.False(t, p.Matches(metadata.Map{"color": metadata.Text("red")}))
}

func TestConditionTreeAndOr(t *testing.T) {
	cond := Value(Eq("color", metadata.Text("red"))).
		And(Value(Eq("size", metadata.Text("large"))))

	assert.True(t, cond.Matches(metadata.Map{"color": metadata.Text("red"), "size": metadata.Text("large")}))
	assert.False(t, cond.Matches(metadata.Map{"color": metadata.Text("red"), "size": metadata.Text("small")}))

	orCond := Value(Eq("color", metadata.Text("red"))).
		Or(Value(Eq("color", metadata.Text("blue"))))
	assert.True(t, orCond.Matches(metadata.Map{"color": metadata.Text("blue")}))
	assert.False(t, orCond.Matches(metadata.Map{"color": metadata.Text("green")}))
}

func TestNilConditionMatchesEverything(t *testing.T) {
	var cond *Condition
	assert.True(t, cond.Matches(metadata.Map{"anything": metadata.Text("goes")}))
}
