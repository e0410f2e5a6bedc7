package workflow

import (
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"github.com/bsm/redislock"
	"gorm.io/gorm"
)

// AcquireRunLock serializes run-scoped work (draft generation, lock/unlock,
// approvals) across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will do the transaction.
func AcquireRunLock(tx *gorm.DB, runId int) error {
	lockName := fmt.Sprintf("payroll:run:%d", runId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire run lock for run_id=%d", runId)
	}
	return nil
}

func ReleaseRunLock(tx *gorm.DB, runId int) {
	lockName := fmt.Sprintf("payroll:run:%d", runId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

// obtainRedisRunLock is a best-effort cross-instance fast-fail on concurrent
// draft generation. Reliability must not depend on Redis: the MySQL advisory
// lock above is the authoritative serializer.
func obtainRedisRunLock(runId int, ttl time.Duration) *redislock.Lock {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil
	}
	lock, err := locker.Obtain(config.GetRedisContext(), fmt.Sprintf("draft:run:%d", runId), ttl, nil)
	if err != nil {
		return nil
	}
	return lock
}
