package workflow

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/payroll_backend/models"
	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. Calculate does no I/O, so the
// gross-to-net semantics are validated entirely from assembled inputs.

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func june2025() time.Time {
	return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
}

func okSteps() map[string]models.StepStatus {
	return map[string]models.StepStatus{
		StepGrade:  models.StepStatusOk,
		StepLeave:  models.StepStatusOk,
		StepTime:   models.StepStatusOk,
		StepRefund: models.StepStatusOk,
	}
}

func baseInput(monthlyBase string) CalculationInput {
	return CalculationInput{
		EmployeeId: 1,
		Period:     june2025(),
		Currency:   "USD",
		PayGrade: &models.PayGrade{
			ID:         1,
			Label:      "G1",
			BaseSalary: dec(monthlyBase),
			Status:     models.ConfigStatusApproved,
		},
		Steps: okSteps(),
		Now:   time.Date(2025, time.June, 30, 12, 0, 0, 0, time.UTC),
	}
}

func wantEqual(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s = %s, want %s", name, got, want)
	}
}

func TestCalculate_GrossToNet(t *testing.T) {
	input := baseInput("6000")
	input.Allowances = []*models.AllowanceConfig{
		{Name: "Housing Allowance", Amount: dec("500"), Status: models.ConfigStatusApproved},
	}
	input.TaxBrackets = []*models.TaxBracket{
		{Name: "Income Tax", Rate: dec("10"), Status: models.ConfigStatusApproved},
	}
	input.InsuranceBrackets = []*models.InsuranceBracket{
		{Name: "Social", MinSalary: dec("1000"), MaxSalary: dec("10000"), EmployeeRate: dec("5")},
	}

	result := Calculate(input)

	wantEqual(t, "BaseSalary", result.BaseSalary, "6000")
	wantEqual(t, "Allowances", result.Allowances, "500")
	wantEqual(t, "GrossSalary", result.GrossSalary, "6500")
	// Taxes apply to base, insurance withholding to gross.
	wantEqual(t, "Taxes", result.Taxes, "600")
	wantEqual(t, "Insurance", result.Insurance, "325")
	wantEqual(t, "NetSalary", result.NetSalary, "5575")
	wantEqual(t, "NetPay", result.NetPay, "5575")
	if result.Ledger.ActiveCount() != 0 {
		t.Fatalf("expected clean ledger, got %d active entries", result.Ledger.ActiveCount())
	}
}

func TestCalculate_TaxBracketsAreAdditive(t *testing.T) {
	input := baseInput("1000")
	input.TaxBrackets = []*models.TaxBracket{
		{Name: "Income", Rate: dec("10")},
		{Name: "Municipal", Rate: dec("2.5")},
	}

	result := Calculate(input)

	wantEqual(t, "Taxes", result.Taxes, "125")
}

func TestCalculate_InsuranceSelectsByBaseComputesFromGross(t *testing.T) {
	// Base 2000 sits inside the bracket; gross 3000 does not. The bracket
	// must still apply, and the amount comes from gross.
	input := baseInput("2000")
	input.Allowances = []*models.AllowanceConfig{
		{Name: "Transport Allowance", Amount: dec("1000")},
	}
	input.InsuranceBrackets = []*models.InsuranceBracket{
		{Name: "Tier1", MinSalary: dec("1500"), MaxSalary: dec("2500"), EmployeeRate: dec("4")},
	}

	result := Calculate(input)

	wantEqual(t, "Insurance", result.Insurance, "120")
}

func TestCalculate_InsuranceOpenEndedBracket(t *testing.T) {
	// MaxSalary zero means no upper bound.
	input := baseInput("90000")
	input.InsuranceBrackets = []*models.InsuranceBracket{
		{Name: "TopTier", MinSalary: dec("50000"), MaxSalary: decimal.Zero, EmployeeRate: dec("1")},
	}

	result := Calculate(input)

	wantEqual(t, "Insurance", result.Insurance, "900")
}

func TestCalculate_MissingBaseSalary(t *testing.T) {
	input := baseInput("0")
	input.PayGrade = nil

	result := Calculate(input)

	wantEqual(t, "BaseSalary", result.BaseSalary, "0")
	if !result.Ledger.HasActive(models.ExceptionCodeMissingBaseSalary) {
		t.Fatal("expected MISSING_BASE_SALARY on the ledger")
	}
}

func TestCalculate_OverrideWinsAndIsFlagged(t *testing.T) {
	input := baseInput("6000")
	override := dec("7000")
	input.OverrideBaseSalary = &override

	result := Calculate(input)

	wantEqual(t, "BaseSalary", result.BaseSalary, "7000")
	if !result.Ledger.HasActive(models.ExceptionCodeBaseSalaryOverride) {
		t.Fatal("expected BASE_SALARY_OVERRIDE on the ledger")
	}
}

func TestCalculate_OverrideMatchingGradeIsNotFlagged(t *testing.T) {
	input := baseInput("6000")
	override := dec("6000")
	input.OverrideBaseSalary = &override

	result := Calculate(input)

	if result.Ledger.HasActive(models.ExceptionCodeBaseSalaryOverride) {
		t.Fatal("override equal to the approved base must not be flagged")
	}
}

func TestCalculate_BelowMinimumWageFlaggedNotBlocked(t *testing.T) {
	input := baseInput("800")
	input.MinimumWage = dec("1000")

	result := Calculate(input)

	wantEqual(t, "BaseSalary", result.BaseSalary, "800")
	if !result.Ledger.HasActive(models.ExceptionCodeBelowMinimumWage) {
		t.Fatal("expected BELOW_MINIMUM_WAGE on the ledger")
	}
}

func TestCalculate_ProrationMidMonthStart(t *testing.T) {
	// June has 30 days; starting June 16 leaves 15 worked days.
	input := baseInput("3000")
	start := time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC)
	input.StartDate = &start

	result := Calculate(input)

	wantEqual(t, "BaseSalary", result.BaseSalary, "1500")
}

func TestCalculate_ProrationMidMonthEnd(t *testing.T) {
	input := baseInput("3000")
	end := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	input.EndDate = &end

	result := Calculate(input)

	wantEqual(t, "BaseSalary", result.BaseSalary, "1000")
}

func TestCalculate_NoProrationForFullMonth(t *testing.T) {
	// Start on the first and end after the month edge: full monthly base.
	input := baseInput("3000")
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)
	input.StartDate = &start
	input.EndDate = &end

	result := Calculate(input)

	wantEqual(t, "BaseSalary", result.BaseSalary, "3000")
}

func TestCalculate_UnpaidLeavePenalty(t *testing.T) {
	input := baseInput("3000")
	unpaid := false
	paid := true
	input.LeaveRequests = []*models.LeaveRequest{
		{DurationDays: 2, LeaveType: &models.LeaveType{Name: "Unpaid", IsPaid: &unpaid}},
		{DurationDays: 5, LeaveType: &models.LeaveType{Name: "Annual", IsPaid: &paid}},
	}

	result := Calculate(input)

	// Daily rate 3000/30 = 100; only the unpaid days count.
	wantEqual(t, "UnpaidLeavePenalty", result.UnpaidLeavePenalty, "200")
}

func TestCalculate_TimePenalty(t *testing.T) {
	// Hourly rate 4800/240 = 20. Missed punch 4h, late 1h, and a shortfall
	// day at 180/480 minutes adds 300 minutes = 5h. Total 10h = 200.
	input := baseInput("4800")
	input.TimeExceptions = []*models.TimeException{
		{Type: models.TimeExceptionMissedPunch},
		{Type: models.TimeExceptionLate},
	}
	input.Attendance = []*models.AttendanceRecord{
		{ExpectedMinutes: 480, ActualMinutes: 180},
		{ExpectedMinutes: 480, ActualMinutes: 400},
	}

	result := Calculate(input)

	wantEqual(t, "TimePenalty", result.TimePenalty, "200")
}

func TestCalculate_MissedPunchWithoutAttendanceRecord(t *testing.T) {
	// A missed punch has no attendance row to tie to; the 4-hour penalty
	// still applies. Hourly rate 4800/240 = 20, so 4h = 80.
	input := baseInput("4800")
	input.TimeExceptions = []*models.TimeException{
		{Type: models.TimeExceptionMissedPunch},
	}

	result := Calculate(input)

	wantEqual(t, "TimePenalty", result.TimePenalty, "80")
}

func TestCalculate_GradeLookupFailureIsNotMissingBaseSalary(t *testing.T) {
	input := baseInput("1000")
	input.PayGrade = nil
	input.Steps[StepGrade] = models.StepStatusDegraded

	result := Calculate(input)

	wantEqual(t, "BaseSalary", result.BaseSalary, "0")
	entries := result.Ledger.Entries
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}
	if entries[0].Code != models.ExceptionCodeGradeLookupFailed {
		t.Fatalf("entry = %s, want GRADE_LOOKUP_FAILED", entries[0].Code)
	}
	if result.Ledger.HasActive(models.ExceptionCodeMissingBaseSalary) {
		t.Fatal("degraded grade lookup must not be reported as MISSING_BASE_SALARY")
	}
}

func TestCalculate_RefundsAndNetPayFloor(t *testing.T) {
	input := baseInput("1000")
	input.TaxBrackets = []*models.TaxBracket{{Name: "Income", Rate: dec("10")}}
	unpaid := false
	input.LeaveRequests = []*models.LeaveRequest{
		{DurationDays: 30, LeaveType: &models.LeaveType{Name: "Unpaid", IsPaid: &unpaid}},
	}
	input.Refunds = []*models.RefundRecord{
		{ID: 7, Amount: dec("50")},
	}

	result := Calculate(input)

	// NetSalary 900, penalty 1000, refund 50: raw net pay is -50.
	wantEqual(t, "NetSalary", result.NetSalary, "900")
	wantEqual(t, "UnpaidLeavePenalty", result.UnpaidLeavePenalty, "1000")
	wantEqual(t, "Refunds", result.Refunds, "50")
	wantEqual(t, "NetPay", result.NetPay, "0")
	if len(result.RefundIds) != 1 || result.RefundIds[0] != 7 {
		t.Fatalf("RefundIds = %v, want [7]", result.RefundIds)
	}
}

func TestCalculate_DegradedStepsFlaggedInOrder(t *testing.T) {
	input := baseInput("1000")
	input.Steps[StepLeave] = models.StepStatusDegraded
	input.Steps[StepRefund] = models.StepStatusDegraded

	result := Calculate(input)

	entries := result.Ledger.Entries
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	if entries[0].Code != models.ExceptionCodeLeaveLookupFailed {
		t.Fatalf("first entry = %s, want LEAVE_LOOKUP_FAILED", entries[0].Code)
	}
	if entries[1].Code != models.ExceptionCodeRefundLookupFailed {
		t.Fatalf("second entry = %s, want REFUND_LOOKUP_FAILED", entries[1].Code)
	}
}

func TestCalculate_IsDeterministic(t *testing.T) {
	build := func() CalculationInput {
		input := baseInput("6000")
		input.Allowances = []*models.AllowanceConfig{
			{Name: "Meal Allowance", Amount: dec("150")},
		}
		input.TaxBrackets = []*models.TaxBracket{{Name: "Income", Rate: dec("10")}}
		input.Steps[StepTime] = models.StepStatusDegraded
		return input
	}

	first := Calculate(build())
	second := Calculate(build())

	if !first.NetPay.Equal(second.NetPay) {
		t.Fatalf("net pay differs across identical runs: %s vs %s", first.NetPay, second.NetPay)
	}
	if len(first.Ledger.Entries) != len(second.Ledger.Entries) {
		t.Fatal("ledger entry count differs across identical runs")
	}
	for i := range first.Ledger.Entries {
		if first.Ledger.Entries[i] != second.Ledger.Entries[i] {
			t.Fatalf("ledger entry %d differs across identical runs", i)
		}
	}
}

func TestComputeAll_PoolSizeDoesNotChangeResults(t *testing.T) {
	inputs := make([]CalculationInput, 20)
	for i := range inputs {
		input := baseInput("1000")
		input.EmployeeId = i + 1
		input.PayGrade.BaseSalary = dec("1000").Mul(decimal.NewFromInt(int64(i + 1)))
		input.TaxBrackets = []*models.TaxBracket{{Name: "Income", Rate: dec("10")}}
		inputs[i] = input
	}

	serial := ComputeAll(inputs, 1)
	parallel := ComputeAll(inputs, 8)

	for i := range inputs {
		if !serial[i].NetPay.Equal(parallel[i].NetPay) {
			t.Fatalf("employee %d: net pay %s (serial) vs %s (parallel)",
				inputs[i].EmployeeId, serial[i].NetPay, parallel[i].NetPay)
		}
	}
}
