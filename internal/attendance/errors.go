package attendance

import (
	"errors"
	"fmt"
)

var (
	// ErrVerificationRequired matches every VerificationRequiredError.
	ErrVerificationRequired = errors.New("billet verification required")
	// ErrUnknownStudent is returned for ids outside the class roster.
	ErrUnknownStudent = errors.New("student not in class roster")
	// ErrSyncFailed wraps a session recording that did not complete.
	ErrSyncFailed = errors.New("session sync failed")
	// ErrSyncInProgress is returned when the class is already being confirmed.
	ErrSyncInProgress = errors.New("session sync already in progress")
)

// VerificationRequiredError is returned when marking a gated, unverified
// student present. The caller must prompt for the billet.
type VerificationRequiredError struct {
	StudentID   string
	StudentName string
}

func (e *VerificationRequiredError) Error() string {
	return fmt.Sprintf("%s: %s", ErrVerificationRequired, e.StudentName)
}

func (e *VerificationRequiredError) Is(target error) bool {
	return target == ErrVerificationRequired
}
