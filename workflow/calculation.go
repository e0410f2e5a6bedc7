package workflow

import (
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/payroll_backend/models"
	"bitbucket.org/mmdatafocus/payroll_backend/utils"
	"github.com/shopspring/decimal"
)

// Penalty constants from the governing attendance rules: a missed punch costs
// 4 hours, every other time exception 1 hour; the daily rate divides the base
// by 30, the hourly rate by 240 (30 days x 8 hours).
var (
	daysPerMonthDivisor  = decimal.NewFromInt(30)
	hoursPerMonthDivisor = decimal.NewFromInt(240)
	minutesPerHour       = decimal.NewFromInt(60)
)

const (
	missedPunchPenaltyHours = 4
	defaultPenaltyHours     = 1
	shortfallThreshold      = 0.5
)

// Upstream step names recorded in the breakdown.
const (
	StepGrade  = "grade"
	StepLeave  = "leave"
	StepTime   = "time"
	StepRefund = "refund"
)

// CalculationInput carries everything one employee's gross-to-net computation
// reads. It is assembled by the draft loader; Calculate itself does no I/O so
// identical inputs always produce identical results.
type CalculationInput struct {
	EmployeeId int
	Period     time.Time
	Currency   string

	OverrideBaseSalary *decimal.Decimal
	PayGrade           *models.PayGrade
	Attributes         models.EmployeeAttributes
	StartDate          *time.Time
	EndDate            *time.Time
	MinimumWage        decimal.Decimal

	TaxBrackets       []*models.TaxBracket
	InsuranceBrackets []*models.InsuranceBracket
	Allowances        []*models.AllowanceConfig

	LeaveRequests  []*models.LeaveRequest
	Attendance     []*models.AttendanceRecord
	TimeExceptions []*models.TimeException
	Refunds        []*models.RefundRecord

	// Steps carries the typed outcome of each upstream lookup. A Degraded
	// step's slice above is empty and contributes zero.
	Steps map[string]models.StepStatus

	Now time.Time
}

type CalculationResult struct {
	BaseSalary decimal.Decimal
	Allowances decimal.Decimal
	Taxes      decimal.Decimal
	Insurance  decimal.Decimal

	UnpaidLeavePenalty decimal.Decimal
	TimePenalty        decimal.Decimal
	Refunds            decimal.Decimal
	RefundIds          []int

	GrossSalary decimal.Decimal
	NetSalary   decimal.Decimal
	NetPay      decimal.Decimal

	Ledger    models.ExceptionLedger
	Breakdown models.DeductionsBreakdown
}

func (r *CalculationResult) Deductions() decimal.Decimal {
	return r.Taxes.Add(r.Insurance)
}

// Calculate runs the full gross-to-net pipeline for one employee.
func Calculate(input CalculationInput) CalculationResult {
	var result CalculationResult

	flagDegradedSteps(input, &result.Ledger)

	monthlyBase := resolveBaseSalary(input, &result.Ledger)
	result.BaseSalary = prorateBaseSalary(monthlyBase, input)

	result.Allowances = sumAllowances(input)
	result.GrossSalary = utils.RoundMoney(result.BaseSalary.Add(result.Allowances))

	result.Taxes = sumTaxes(result.BaseSalary, input.TaxBrackets)
	result.Insurance = sumInsurance(result.BaseSalary, result.GrossSalary, input.InsuranceBrackets)

	result.UnpaidLeavePenalty = unpaidLeavePenalty(result.BaseSalary, input.LeaveRequests)
	result.TimePenalty = timePenalty(result.BaseSalary, input.TimeExceptions, input.Attendance)

	for _, refund := range input.Refunds {
		result.Refunds = result.Refunds.Add(refund.Amount)
		result.RefundIds = append(result.RefundIds, refund.ID)
	}
	result.Refunds = utils.RoundMoney(result.Refunds)

	result.NetSalary = utils.RoundMoney(result.GrossSalary.Sub(result.Taxes.Add(result.Insurance)))

	penalties := result.UnpaidLeavePenalty.Add(result.TimePenalty)
	netPay := result.NetSalary.Sub(penalties).Add(result.Refunds)
	if netPay.IsNegative() {
		netPay = decimal.Zero
	}
	result.NetPay = utils.RoundMoney(netPay)

	result.Breakdown = models.DeductionsBreakdown{
		Currency:           input.Currency,
		Taxes:              result.Taxes,
		Insurance:          result.Insurance,
		UnpaidLeavePenalty: result.UnpaidLeavePenalty,
		TimePenalty:        result.TimePenalty,
		Refunds:            result.Refunds,
		ComputedAt:         input.Now,
		Steps:              input.Steps,
	}
	return result
}

// flagDegradedSteps writes one ledger exception per degraded upstream lookup,
// in a fixed order so regenerated ledgers are byte-identical.
func flagDegradedSteps(input CalculationInput, ledger *models.ExceptionLedger) {
	ordered := []struct {
		step string
		code models.ExceptionCode
	}{
		{StepGrade, models.ExceptionCodeGradeLookupFailed},
		{StepLeave, models.ExceptionCodeLeaveLookupFailed},
		{StepTime, models.ExceptionCodeTimeLookupFailed},
		{StepRefund, models.ExceptionCodeRefundLookupFailed},
	}
	for _, entry := range ordered {
		if input.Steps[entry.step] != models.StepStatusDegraded {
			continue
		}
		ledger.Flag(entry.code,
			entry.step+" lookup failed; contribution treated as zero",
			input.Now)
	}
}

// resolveBaseSalary applies the priority order: caller override, approved
// pay-grade base, then zero with a ledger exception. An override disagreeing
// with the approved base is flagged for audit but still wins.
func resolveBaseSalary(input CalculationInput, ledger *models.ExceptionLedger) decimal.Decimal {
	var base decimal.Decimal

	switch {
	case input.OverrideBaseSalary != nil:
		base = *input.OverrideBaseSalary
		if input.PayGrade != nil && !base.Equal(input.PayGrade.BaseSalary) {
			ledger.Flag(models.ExceptionCodeBaseSalaryOverride,
				fmt.Sprintf("base salary override %s differs from approved pay-grade base %s",
					base.StringFixed(2), input.PayGrade.BaseSalary.StringFixed(2)),
				input.Now)
		}
	case input.PayGrade != nil:
		base = input.PayGrade.BaseSalary
	default:
		// A degraded grade lookup already carries its own ledger entry; only
		// a genuinely absent grade is a data-quality gap.
		if input.Steps[StepGrade] != models.StepStatusDegraded {
			ledger.Flag(models.ExceptionCodeMissingBaseSalary,
				"no approved pay grade and no override; base salary defaulted to 0",
				input.Now)
		}
		return decimal.Zero
	}

	if input.MinimumWage.IsPositive() && base.LessThan(input.MinimumWage) {
		ledger.Flag(models.ExceptionCodeBelowMinimumWage,
			fmt.Sprintf("base salary %s is below the statutory minimum %s",
				base.StringFixed(2), input.MinimumWage.StringFixed(2)),
			input.Now)
	}
	return base
}

// prorateBaseSalary applies (monthlyBase / daysInMonth) x daysWorked when the
// contract window starts or ends strictly inside the run's calendar month.
func prorateBaseSalary(monthlyBase decimal.Decimal, input CalculationInput) decimal.Decimal {
	monthStart, monthEnd := utils.MonthRange(input.Period)
	lastDay := monthEnd.AddDate(0, 0, -1)

	startsInside := input.StartDate != nil && input.StartDate.After(monthStart) && input.StartDate.Before(monthEnd)
	endsInside := input.EndDate != nil && input.EndDate.Before(lastDay) && !input.EndDate.Before(monthStart)
	if !startsInside && !endsInside {
		return utils.RoundMoney(monthlyBase)
	}

	clippedStart, clippedEnd := utils.ClipToMonth(input.Period, input.StartDate, input.EndDate)
	daysInMonth := utils.DaysInMonth(input.Period)
	daysWorked := utils.InclusiveDays(clippedStart, clippedEnd)
	if daysWorked > daysInMonth {
		daysWorked = daysInMonth
	}

	prorated := monthlyBase.
		Div(decimal.NewFromInt(int64(daysInMonth))).
		Mul(decimal.NewFromInt(int64(daysWorked)))
	return utils.RoundMoney(prorated)
}

func sumAllowances(input CalculationInput) decimal.Decimal {
	eligible := models.EligibleAllowances(input.Allowances, input.Attributes)
	total := decimal.Zero
	for _, allowance := range eligible {
		total = total.Add(allowance.Amount)
	}
	return utils.RoundMoney(total)
}

// sumTaxes applies every approved tax bracket additively to the base salary;
// the governing rule has no salary-range gating on tax brackets.
func sumTaxes(baseSalary decimal.Decimal, brackets []*models.TaxBracket) decimal.Decimal {
	total := decimal.Zero
	for _, bracket := range brackets {
		total = total.Add(utils.Percent(baseSalary, bracket.Rate))
	}
	return utils.RoundMoney(total)
}

// sumInsurance selects brackets by BASE salary but computes the withheld
// amount from GROSS salary. The asymmetry is intentional per the governing
// statutory rule and must be preserved.
func sumInsurance(baseSalary decimal.Decimal, grossSalary decimal.Decimal, brackets []*models.InsuranceBracket) decimal.Decimal {
	total := decimal.Zero
	for _, bracket := range brackets {
		if !bracket.ContainsBase(baseSalary) {
			continue
		}
		total = total.Add(utils.Percent(grossSalary, bracket.EmployeeRate))
	}
	return utils.RoundMoney(total)
}

func unpaidLeavePenalty(baseSalary decimal.Decimal, requests []*models.LeaveRequest) decimal.Decimal {
	dailyRate := baseSalary.Div(daysPerMonthDivisor)
	total := decimal.Zero
	for _, request := range requests {
		if request.LeaveType == nil {
			continue
		}
		if request.LeaveType.IsPaid == nil || *request.LeaveType.IsPaid {
			continue
		}
		total = total.Add(dailyRate.Mul(decimal.NewFromInt(int64(request.DurationDays))))
	}
	return utils.RoundMoney(total)
}

func timePenalty(baseSalary decimal.Decimal, exceptions []*models.TimeException, attendance []*models.AttendanceRecord) decimal.Decimal {
	hourlyRate := baseSalary.Div(hoursPerMonthDivisor)

	penaltyHours := decimal.Zero
	for _, exception := range exceptions {
		hours := defaultPenaltyHours
		if exception.Type == models.TimeExceptionMissedPunch {
			hours = missedPunchPenaltyHours
		}
		penaltyHours = penaltyHours.Add(decimal.NewFromInt(int64(hours)))
	}

	// Shortfall: worked time under 50% of the expected day adds the missing
	// time itself as penalty hours.
	for _, record := range attendance {
		expected := record.ExpectedMinutes
		if expected <= 0 {
			expected = 480
		}
		if float64(record.ActualMinutes) >= float64(expected)*shortfallThreshold {
			continue
		}
		shortfall := decimal.NewFromInt(int64(expected - record.ActualMinutes)).Div(minutesPerHour)
		penaltyHours = penaltyHours.Add(shortfall)
	}

	return utils.RoundMoney(hourlyRate.Mul(penaltyHours))
}
