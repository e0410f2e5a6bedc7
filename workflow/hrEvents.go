package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"bitbucket.org/mmdatafocus/payroll_backend/models"
	"bitbucket.org/mmdatafocus/payroll_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProcessHREvents synthesizes pending signing-bonus records for employees
// hired in the run's period and termination-benefit records for employees
// terminated in it, skipping anyone already processed. The records start
// Pending; a manager decision folds them into net pay.
func ProcessHREvents(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, run *models.PayrollRun) error {
	start, end := utils.MonthRange(run.Period)

	bonusConfigs, err := models.GetApprovedSigningBonusConfigs(ctx)
	if err != nil {
		config.LogError(logger, "hrEvents.go", "ProcessHREvents", "GetApprovedSigningBonusConfigs", run.ID, err)
		return err
	}
	benefitConfigs, err := models.GetApprovedTerminationBenefitConfigs(ctx)
	if err != nil {
		config.LogError(logger, "hrEvents.go", "ProcessHREvents", "GetApprovedTerminationBenefitConfigs", run.ID, err)
		return err
	}

	if len(bonusConfigs) > 0 {
		var newHires []*models.Employee
		err = tx.Model(&models.Employee{}).
			Where("start_date >= ? AND start_date < ?", start, end).
			Where("signing_bonus_processed = 0").
			Order("id asc").
			Find(&newHires).Error
		if err != nil {
			config.LogError(logger, "hrEvents.go", "ProcessHREvents", "FindNewHires", run.ID, err)
			return err
		}
		for _, employee := range newHires {
			for _, bonusConfig := range bonusConfigs {
				adjustment := models.EmployeeAdjustment{
					RunId:      run.ID,
					EmployeeId: employee.ID,
					Type:       models.AdjustmentTypeSigningBonus,
					ConfigId:   bonusConfig.ID,
					Amount:     bonusConfig.Amount,
				}
				if err := models.CreatePendingAdjustment(tx, &adjustment); err != nil {
					config.LogError(logger, "hrEvents.go", "ProcessHREvents", "CreateSigningBonus", employee.ID, err)
					return err
				}
			}
			if err := tx.Model(&models.Employee{}).
				Where("id = ?", employee.ID).
				Update("signing_bonus_processed", true).Error; err != nil {
				return err
			}
		}
	}

	if len(benefitConfigs) > 0 {
		var terminated []*models.Employee
		err = tx.Model(&models.Employee{}).
			Where("status = ?", models.EmployeeStatusTerminated).
			Where("end_date >= ? AND end_date < ?", start, end).
			Where("termination_benefit_processed = 0").
			Order("id asc").
			Find(&terminated).Error
		if err != nil {
			config.LogError(logger, "hrEvents.go", "ProcessHREvents", "FindTerminated", run.ID, err)
			return err
		}
		for _, employee := range terminated {
			for _, benefitConfig := range benefitConfigs {
				adjustment := models.EmployeeAdjustment{
					RunId:      run.ID,
					EmployeeId: employee.ID,
					Type:       models.AdjustmentTypeTerminationBenefit,
					ConfigId:   benefitConfig.ID,
					Amount:     benefitConfig.Amount,
				}
				if err := models.CreatePendingAdjustment(tx, &adjustment); err != nil {
					config.LogError(logger, "hrEvents.go", "ProcessHREvents", "CreateTerminationBenefit", employee.ID, err)
					return err
				}
			}
			if err := tx.Model(&models.Employee{}).
				Where("id = ?", employee.ID).
				Update("termination_benefit_processed", true).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
