package rca

import (
	"strings"
)

// MappingRule maps a keyword found in a manager's profile text to a KPI mapping code.
type MappingRule struct {
	Keyword string `yaml:"keyword"`
	Code    string `yaml:"code"`
}

// MappingRules are tested in order; the first match wins.
type MappingRules []MappingRule

// DefaultMappingRules cover the business units with domain KPIs.
var DefaultMappingRules = MappingRules{
	{Keyword: "general medicines", Code: "MSLT_GENERAL_MEDICINE"},
	{Keyword: "general medicine", Code: "MSLT_GENERAL_MEDICINE"},
	{Keyword: "genmed", Code: "MSLT_GENERAL_MEDICINE"},
	{Keyword: "vaccines", Code: "MSLT_VACCINES"},
	{Keyword: "vaccine", Code: "MSLT_VACCINES"},
	{Keyword: "specialty care", Code: "MSLT_SPECIALTY_CARE"},
	{Keyword: "speciality care", Code: "MSLT_SPECIALTY_CARE"},
}

var businessUnits = map[string]string{
	"MSLT_GENERAL_MEDICINE": "General Medicine",
	"MSLT_VACCINES":         "Vaccines",
	"MSLT_SPECIALTY_CARE":   "Specialty Care",
}

// Suggest joins the non-empty fields into one lower-case search text and returns the code
// of the first matching rule ("" if none) along with that text.
func (mr MappingRules) Suggest(fields ...string) (code, searchText string) {
	var parts []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}

	searchText = strings.ToLower(strings.Join(parts, " "))
	for _, rule := range mr {
		if rule.Keyword != "" && strings.Contains(searchText, strings.ToLower(rule.Keyword)) {
			return rule.Code, searchText
		}
	}

	return "", searchText
}

// ResolveBusinessUnit maps a KPI mapping code to the business unit label of the domain
// source. Unknown codes fall back to MSLT_FOO_BAR -> "Foo Bar".
func ResolveBusinessUnit(code string) (label string, known bool) {
	if bu, ok := businessUnits[code]; ok {
		return bu, true
	}

	words := strings.Fields(strings.ReplaceAll(strings.TrimPrefix(code, "MSLT_"), "_", " "))
	for ind, w := range words {
		words[ind] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}

	return strings.Join(words, " "), false
}
