package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestClassifyAllowance_UniversalKeywordWins(t *testing.T) {
	// "Manager" is a position keyword, but "housing" makes it universal.
	rule := ClassifyAllowance("Manager Housing Allowance")
	if rule.Kind != EligibilityUniversal {
		t.Fatalf("kind = %s, want Universal", rule.Kind)
	}
}

func TestClassifyAllowance_AttributeKinds(t *testing.T) {
	cases := []struct {
		name string
		kind EligibilityKind
	}{
		{"Senior Engineer Allowance", EligibilityPosition},
		{"Sales Incentive", EligibilityDepartment},
		{"Grade A Supplement", EligibilityPayGrade},
		{"Permanent Staff Bonus", EligibilityContractType},
		{"Night Shift Allowance", EligibilityWorkType},
		{"Quarterly Special", EligibilityUniversal}, // no recognizable keyword
	}
	for _, c := range cases {
		rule := ClassifyAllowance(c.name)
		if rule.Kind != c.kind {
			t.Errorf("ClassifyAllowance(%q).Kind = %s, want %s", c.name, rule.Kind, c.kind)
		}
	}
}

func TestEligibilityRule_Matches(t *testing.T) {
	attrs := EmployeeAttributes{
		PositionTitle:  "Senior Sales Engineer",
		DepartmentName: "Sales",
		PayGradeLabel:  "Grade B",
		ContractType:   "Permanent",
		WorkType:       "Remote",
	}

	matching := []EligibilityRule{
		{Kind: EligibilityUniversal},
		{Kind: EligibilityPosition, Keywords: []string{"engineer"}},
		{Kind: EligibilityDepartment, Keywords: []string{"sales"}},
		{Kind: EligibilityPayGrade, Keywords: []string{"grade"}},
		{Kind: EligibilityContractType, Keywords: []string{"permanent"}},
		{Kind: EligibilityWorkType, Keywords: []string{"remote"}},
	}
	for _, rule := range matching {
		if !rule.Matches(attrs) {
			t.Errorf("rule %v should match %+v", rule, attrs)
		}
	}

	nonMatching := []EligibilityRule{
		{Kind: EligibilityPosition, Keywords: []string{"director"}},
		{Kind: EligibilityWorkType, Keywords: []string{"night"}},
		{Kind: EligibilityPosition}, // no keywords, nothing to match
	}
	for _, rule := range nonMatching {
		if rule.Matches(attrs) {
			t.Errorf("rule %v should not match %+v", rule, attrs)
		}
	}
}

func TestAllowanceRule_ExplicitBeatsClassifier(t *testing.T) {
	allowance := &AllowanceConfig{
		Name:         "Housing Allowance", // would classify Universal
		RuleKind:     EligibilityDepartment,
		RuleKeywords: `["finance"]`,
	}
	rule := allowance.Rule()
	if rule.Kind != EligibilityDepartment {
		t.Fatalf("kind = %s, want Department", rule.Kind)
	}
	if len(rule.Keywords) != 1 || rule.Keywords[0] != "finance" {
		t.Fatalf("keywords = %v, want [finance]", rule.Keywords)
	}
}

func TestEligibleAllowances_FiltersAndFallsBack(t *testing.T) {
	allowances := []*AllowanceConfig{
		{Name: "Housing Allowance", Amount: decimal.NewFromInt(100)},
		{Name: "Senior Engineer Allowance", Amount: decimal.NewFromInt(200)},
	}

	clerk := EmployeeAttributes{PositionTitle: "Clerk"}
	eligible := EligibleAllowances(allowances, clerk)
	if len(eligible) != 1 || eligible[0].Name != "Housing Allowance" {
		t.Fatalf("clerk eligible = %v", eligible)
	}

	engineer := EmployeeAttributes{PositionTitle: "Senior Engineer"}
	eligible = EligibleAllowances(allowances, engineer)
	if len(eligible) != 2 {
		t.Fatalf("engineer should get both allowances, got %d", len(eligible))
	}

	// Nothing matches and no universal configs exist: full list fallback.
	positionOnly := []*AllowanceConfig{
		{Name: "Senior Engineer Allowance", Amount: decimal.NewFromInt(200)},
	}
	eligible = EligibleAllowances(positionOnly, clerk)
	if len(eligible) != 1 {
		t.Fatalf("fallback should return the full list, got %d", len(eligible))
	}
}

func TestInsuranceBracketContainsBase(t *testing.T) {
	bracket := &InsuranceBracket{
		MinSalary: decimal.NewFromInt(1000),
		MaxSalary: decimal.NewFromInt(2000),
	}
	if !bracket.ContainsBase(decimal.NewFromInt(1000)) ||
		!bracket.ContainsBase(decimal.NewFromInt(2000)) {
		t.Fatal("bounds are inclusive")
	}
	if bracket.ContainsBase(decimal.NewFromInt(999)) ||
		bracket.ContainsBase(decimal.NewFromInt(2001)) {
		t.Fatal("out-of-range base must not match")
	}

	openEnded := &InsuranceBracket{MinSalary: decimal.NewFromInt(5000)}
	if !openEnded.ContainsBase(decimal.NewFromInt(1000000)) {
		t.Fatal("zero MaxSalary means no upper bound")
	}
}
