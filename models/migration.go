package models

import (
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Employee{}, &PayGrade{},
		&TaxBracket{}, &InsuranceBracket{}, &AllowanceConfig{},
		&SigningBonusConfig{}, &TerminationBenefitConfig{},
		&Currency{}, &ExchangeRate{},
		&LeaveType{}, &LeaveRequest{}, &AttendanceRecord{}, &TimeException{}, &RefundRecord{},
		&PayrollRun{}, &EmployeePayrollDetail{}, &SalaryOverride{},
		&EmployeeAdjustment{}, &Payslip{},
		&PayrollEventRecord{},
	)
	if err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"field": "migration",
		}).Panic(err.Error())
	}
}
