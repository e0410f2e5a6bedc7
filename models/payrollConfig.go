package models

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"github.com/shopspring/decimal"
)

// All rule configuration consumed here is already approved upstream; every
// fetcher filters to Approved status and treats everything else as absent.

type TaxBracket struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Rate      decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"rate"`
	Status    ConfigStatus    `gorm:"type:enum('Draft','Approved','Retired');default:Draft;index" json:"status"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type InsuranceBracket struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Name         string          `gorm:"size:100;not null" json:"name" binding:"required"`
	MinSalary    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"min_salary"`
	MaxSalary    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"max_salary"`
	EmployeeRate decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"employee_rate"`
	EmployerRate decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"employer_rate"`
	Status       ConfigStatus    `gorm:"type:enum('Draft','Approved','Retired');default:Draft;index" json:"status"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ContainsBase is the bracket range test. The range is checked against the
// BASE salary while the withheld amount is computed from GROSS salary; the
// governing statutory rule defines it that way, so both sides preserve it.
func (b *InsuranceBracket) ContainsBase(baseSalary decimal.Decimal) bool {
	if baseSalary.LessThan(b.MinSalary) {
		return false
	}
	if b.MaxSalary.IsPositive() && baseSalary.GreaterThan(b.MaxSalary) {
		return false
	}
	return true
}

type AllowanceConfig struct {
	ID     int             `gorm:"primary_key" json:"id"`
	Name   string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Amount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Status ConfigStatus    `gorm:"type:enum('Draft','Approved','Retired');default:Draft;index" json:"status"`

	// Optional explicit eligibility rule. When empty, the rule is classified
	// from the allowance name (legacy keyword configs).
	RuleKind     EligibilityKind `gorm:"size:30" json:"rule_kind"`
	RuleKeywords string          `gorm:"size:500" json:"rule_keywords"` // JSON string array

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type SigningBonusConfig struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Status    ConfigStatus    `gorm:"type:enum('Draft','Approved','Retired');default:Draft;index" json:"status"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type TerminationBenefitConfig struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Status    ConfigStatus    `gorm:"type:enum('Draft','Approved','Retired');default:Draft;index" json:"status"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetApprovedTaxBrackets(ctx context.Context) ([]*TaxBracket, error) {
	db := config.GetDB()
	var brackets []*TaxBracket
	err := db.WithContext(ctx).Where("status = ?", ConfigStatusApproved).Order("id asc").Find(&brackets).Error
	if err != nil {
		return nil, err
	}
	return brackets, nil
}

func GetApprovedInsuranceBrackets(ctx context.Context) ([]*InsuranceBracket, error) {
	db := config.GetDB()
	var brackets []*InsuranceBracket
	err := db.WithContext(ctx).Where("status = ?", ConfigStatusApproved).Order("id asc").Find(&brackets).Error
	if err != nil {
		return nil, err
	}
	return brackets, nil
}

func GetApprovedAllowances(ctx context.Context) ([]*AllowanceConfig, error) {
	db := config.GetDB()
	var allowances []*AllowanceConfig
	err := db.WithContext(ctx).Where("status = ?", ConfigStatusApproved).Order("id asc").Find(&allowances).Error
	if err != nil {
		return nil, err
	}
	return allowances, nil
}

func GetApprovedSigningBonusConfigs(ctx context.Context) ([]*SigningBonusConfig, error) {
	db := config.GetDB()
	var configs []*SigningBonusConfig
	err := db.WithContext(ctx).Where("status = ?", ConfigStatusApproved).Order("id asc").Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func GetApprovedTerminationBenefitConfigs(ctx context.Context) ([]*TerminationBenefitConfig, error) {
	db := config.GetDB()
	var configs []*TerminationBenefitConfig
	err := db.WithContext(ctx).Where("status = ?", ConfigStatusApproved).Order("id asc").Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

// GetStatutoryMinimumWage returns the configured statutory minimum monthly
// wage, zero when unset (the below-minimum flag is then disabled).
func GetStatutoryMinimumWage() decimal.Decimal {
	raw := strings.TrimSpace(os.Getenv("MINIMUM_MONTHLY_WAGE"))
	if raw == "" {
		return decimal.Zero
	}
	min, err := decimal.NewFromString(raw)
	if err != nil || min.IsNegative() {
		return decimal.Zero
	}
	return min
}

/* Allowance eligibility */

type EligibilityKind string

const (
	EligibilityUniversal    EligibilityKind = "Universal"
	EligibilityPosition     EligibilityKind = "Position"
	EligibilityDepartment   EligibilityKind = "Department"
	EligibilityPayGrade     EligibilityKind = "PayGrade"
	EligibilityContractType EligibilityKind = "ContractType"
	EligibilityWorkType     EligibilityKind = "WorkType"
)

// EligibilityRule is the declarative replacement for substring matching on
// allowance names: one kind plus the keywords that must appear in both the
// allowance name and the corresponding employee attribute.
type EligibilityRule struct {
	Kind     EligibilityKind `json:"kind"`
	Keywords []string        `json:"keywords,omitempty"`
}

var universalAllowanceKeywords = []string{
	"housing", "transport", "meal", "medical", "phone", "internet", "fuel",
}

var eligibilityKeywordSets = map[EligibilityKind][]string{
	EligibilityPosition:     {"manager", "director", "supervisor", "engineer", "senior", "lead", "officer"},
	EligibilityDepartment:   {"sales", "marketing", "finance", "operations", "support", "warehouse"},
	EligibilityPayGrade:     {"grade", "band", "level", "tier"},
	EligibilityContractType: {"permanent", "contract", "probation", "temporary"},
	EligibilityWorkType:     {"remote", "onsite", "field", "shift", "night"},
}

// ClassifyAllowance derives an eligibility rule from a legacy keyword-named
// allowance config. Universal keywords win; then each attribute keyword set is
// checked in a fixed order; a name with no recognizable keyword is universal.
func ClassifyAllowance(name string) EligibilityRule {
	lower := strings.ToLower(name)
	for _, kw := range universalAllowanceKeywords {
		if strings.Contains(lower, kw) {
			return EligibilityRule{Kind: EligibilityUniversal}
		}
	}
	ordered := []EligibilityKind{
		EligibilityPosition,
		EligibilityDepartment,
		EligibilityPayGrade,
		EligibilityContractType,
		EligibilityWorkType,
	}
	for _, kind := range ordered {
		var matched []string
		for _, kw := range eligibilityKeywordSets[kind] {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) > 0 {
			return EligibilityRule{Kind: kind, Keywords: matched}
		}
	}
	return EligibilityRule{Kind: EligibilityUniversal}
}

// Rule resolves the config's effective eligibility rule: the explicit one when
// set, otherwise the classifier's.
func (a *AllowanceConfig) Rule() EligibilityRule {
	if a.RuleKind == "" {
		return ClassifyAllowance(a.Name)
	}
	rule := EligibilityRule{Kind: a.RuleKind}
	if a.RuleKeywords != "" {
		_ = json.Unmarshal([]byte(a.RuleKeywords), &rule.Keywords)
	}
	return rule
}

// EmployeeAttributes is the slice of directory data the eligibility rules see.
type EmployeeAttributes struct {
	PositionTitle  string
	DepartmentName string
	PayGradeLabel  string
	ContractType   string
	WorkType       string
}

// Matches evaluates the rule against one employee. Pure function; no lookups.
func (r EligibilityRule) Matches(attrs EmployeeAttributes) bool {
	if r.Kind == EligibilityUniversal {
		return true
	}
	var target string
	switch r.Kind {
	case EligibilityPosition:
		target = attrs.PositionTitle
	case EligibilityDepartment:
		target = attrs.DepartmentName
	case EligibilityPayGrade:
		target = attrs.PayGradeLabel
	case EligibilityContractType:
		target = attrs.ContractType
	case EligibilityWorkType:
		target = attrs.WorkType
	default:
		return false
	}
	target = strings.ToLower(target)
	for _, kw := range r.Keywords {
		if strings.Contains(target, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// EligibleAllowances filters the approved allowance list for one employee.
// An empty result falls back to the full list.
func EligibleAllowances(allowances []*AllowanceConfig, attrs EmployeeAttributes) []*AllowanceConfig {
	eligible := make([]*AllowanceConfig, 0, len(allowances))
	for _, allowance := range allowances {
		if allowance.Rule().Matches(attrs) {
			eligible = append(eligible, allowance)
		}
	}
	if len(eligible) == 0 {
		return allowances
	}
	return eligible
}
