package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/payroll_backend/models"
	"github.com/shopspring/decimal"
)

func cleanDetail(base string, netSalary string) (*models.EmployeePayrollDetail, *models.DetailBlob) {
	detail := &models.EmployeePayrollDetail{
		EmployeeId: 1,
		BaseSalary: dec(base),
		NetSalary:  dec(netSalary),
		BankStatus: models.BankStatusVerified,
	}
	blob := &models.DetailBlob{}
	return detail, blob
}

func codesOf(findings []Irregularity) []models.ExceptionCode {
	codes := make([]models.ExceptionCode, 0, len(findings))
	for _, f := range findings {
		codes = append(codes, f.Code)
	}
	return codes
}

func TestDetectForDetail_CleanEmployee(t *testing.T) {
	detail, blob := cleanDetail("5000", "4500")

	findings := detectForDetail(detail, blob, []decimal.Decimal{dec("5000"), dec("5000")})

	if len(findings) != 0 {
		t.Fatalf("expected no findings, got %v", codesOf(findings))
	}
}

func TestDetectForDetail_NegativeRawNetPay(t *testing.T) {
	detail, blob := cleanDetail("1000", "900")
	blob.Breakdown.UnpaidLeavePenalty = dec("1000")
	blob.Breakdown.Refunds = dec("50")

	findings := detectForDetail(detail, blob, nil)

	if len(findings) != 1 || findings[0].Code != models.ExceptionCodeNegativeNetPay {
		t.Fatalf("expected NEGATIVE_NET_PAY, got %v", codesOf(findings))
	}
}

func TestDetectForDetail_MissingBankAccount(t *testing.T) {
	detail, blob := cleanDetail("5000", "4500")
	detail.BankStatus = models.BankStatusMissing

	findings := detectForDetail(detail, blob, nil)

	if len(findings) != 1 || findings[0].Code != models.ExceptionCodeMissingBankAccount {
		t.Fatalf("expected MISSING_BANK_ACCOUNT, got %v", codesOf(findings))
	}
}

func TestDetectForDetail_SalarySpikeOverDouble(t *testing.T) {
	detail, blob := cleanDetail("20000", "18000")

	findings := detectForDetail(detail, blob, []decimal.Decimal{dec("9000"), dec("9000")})

	if len(findings) != 1 || findings[0].Code != models.ExceptionCodeSalarySpike {
		t.Fatalf("expected SALARY_SPIKE, got %v", codesOf(findings))
	}
}

func TestDetectForDetail_SalarySpikeSoftThreshold(t *testing.T) {
	// 16000 against a 10000 average: above 1.5x but not above 2x.
	detail, blob := cleanDetail("16000", "14000")

	findings := detectForDetail(detail, blob, []decimal.Decimal{dec("10000")})

	if len(findings) != 1 || findings[0].Code != models.ExceptionCodeSalarySpike {
		t.Fatalf("expected SALARY_SPIKE, got %v", codesOf(findings))
	}
}

func TestDetectForDetail_NoSpikeWithoutHistory(t *testing.T) {
	detail, blob := cleanDetail("20000", "18000")

	findings := detectForDetail(detail, blob, nil)

	if len(findings) != 0 {
		t.Fatalf("no history must mean no spike, got %v", codesOf(findings))
	}
}

func TestDetectForDetail_AlreadyFlaggedIsSkipped(t *testing.T) {
	detail, blob := cleanDetail("5000", "4500")
	detail.BankStatus = models.BankStatusMissing
	blob.Ledger.Flag(models.ExceptionCodeMissingBankAccount, "earlier sweep", detail.CreatedAt)

	findings := detectForDetail(detail, blob, nil)

	if len(findings) != 0 {
		t.Fatalf("active entry must not be re-flagged, got %v", codesOf(findings))
	}
}
