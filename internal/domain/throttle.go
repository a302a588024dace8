package domain

import "time"

const (
	ActionsWindowDays   = 30
	DocumentsWindowDays = 365
)

// ThrottleActions counts one management action against the rolling monthly
// window. The caller must hold the debtor's row lock.
func (d *Debtor) ThrottleActions(now time.Time, maxActionsPerMonth int) error {
	return throttle(&d.ActionsCount, &d.ActionsCountResetDate, now, ActionsWindowDays, maxActionsPerMonth, ErrTooManyManagementActions)
}

// ThrottleDocuments counts one saved document against the rolling yearly
// window. The caller must hold the debtor's row lock.
func (d *Debtor) ThrottleDocuments(now time.Time, maxDocumentsPerYear int) error {
	return throttle(&d.DocumentsCount, &d.DocumentsCountResetDate, now, DocumentsWindowDays, maxDocumentsPerYear, ErrTooManySavedDocuments)
}

// throttle resets the counter when more than windowDays have elapsed since
// its reset date, rejects when the counter is at the cap, and increments it
// otherwise.
func throttle(count *int32, resetDate *time.Time, now time.Time, windowDays, limit int, errAtLimit error) error {
	today := DateOf(now)
	elapsedDays := int(today.Sub(DateOf(*resetDate)).Hours() / 24)
	if elapsedDays > windowDays {
		*count = 0
		*resetDate = today
	}

	if int(*count) >= limit {
		return errAtLimit
	}

	*count++
	return nil
}
