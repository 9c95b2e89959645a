package rca

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMappingRules_Suggest(t *testing.T) {
	code, text := DefaultMappingRules.Suggest("  Vaccines Europe ", "", "Commercial")
	assert.Equal(t, "MSLT_VACCINES", code)
	assert.Equal(t, "vaccines europe commercial", text)

	code, _ = DefaultMappingRules.Suggest("GenMed operations")
	assert.Equal(t, "MSLT_GENERAL_MEDICINE", code)

	code, _ = DefaultMappingRules.Suggest("Finance")
	assert.Equal(t, "", code)

	// first match wins
	rules := MappingRules{{Keyword: "care", Code: "FIRST"}, {Keyword: "specialty care", Code: "SECOND"}}
	code, _ = rules.Suggest("Specialty Care")
	assert.Equal(t, "FIRST", code)
}

func TestResolveBusinessUnit(t *testing.T) {
	bu, known := ResolveBusinessUnit("MSLT_VACCINES")
	assert.True(t, known)
	assert.Equal(t, "Vaccines", bu)

	bu, known = ResolveBusinessUnit("MSLT_CONSUMER_HEALTH")
	assert.False(t, known)
	assert.Equal(t, "Consumer Health", bu)
}
