package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestParameterList_Get(t *testing.T) {
	pl := domain.ParameterList{
		{Key: "case", Value: "upper"},
		{Key: "prefix", Value: "> "},
	}

	v, ok := pl.Get("case")
	assert.True(t, ok)
	assert.Equal(t, "upper", v)

	_, ok = pl.Get("missing")
	assert.False(t, ok)
}

func TestParameterList_EquivalentTo_OrderIndependent(t *testing.T) {
	a := domain.ParameterList{
		{Key: "case", Value: "upper"},
		{Key: "prefix", Value: "> "},
	}
	b := domain.ParameterList{
		{Key: "prefix", Value: "> "},
		{Key: "case", Value: "upper"},
	}

	assert.True(t, a.EquivalentTo(b))
	assert.True(t, b.EquivalentTo(a))
}

func TestParameterList_EquivalentTo_Differences(t *testing.T) {
	base := domain.ParameterList{{Key: "case", Value: "upper"}}

	valueChanged := domain.ParameterList{{Key: "case", Value: "lower"}}
	assert.False(t, base.EquivalentTo(valueChanged))

	keyAdded := domain.ParameterList{
		{Key: "case", Value: "upper"},
		{Key: "prefix", Value: ""},
	}
	// A parameter added at its default value still counts as a difference.
	assert.False(t, base.EquivalentTo(keyAdded))

	assert.False(t, base.EquivalentTo(nil))
	assert.True(t, domain.ParameterList(nil).EquivalentTo(nil))
}

func TestParameterList_StringRoundTrip(t *testing.T) {
	pl := domain.ParameterList{
		{Key: "case", Value: "upper"},
		{Key: "prefix", Value: "> "},
	}

	s := pl.String()
	assert.Equal(t, "case=upper;prefix=> ", s)

	parsed := domain.ParseParameters(s)
	assert.Equal(t, pl, parsed)

	assert.Empty(t, domain.ParseParameters(""))
	assert.Equal(t, "", domain.ParameterList(nil).String())
}
