package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/matchledger/internal/models"
)

var (
	// ErrValidation means the submission was rejected before any calculation.
	ErrValidation = errors.New("invalid match submission")
	// ErrParticipantNotFound means a rated player has no stored rating record.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrStorageFailure means the backing store failed mid-operation. Retryable.
	ErrStorageFailure = errors.New("storage failure")
	// ErrLedgerEntryNotFound means the match does not exist (or was already deleted).
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")
	// ErrForbidden means the requester may not delete the match.
	ErrForbidden = errors.New("requester may not modify match")
)

// ErrAlreadyReversed is reported for a delete of an already deleted match;
// a reversed entry no longer exists, so it is the same condition.
var ErrAlreadyReversed = ErrLedgerEntryNotFound

// MatchError carries enough context to log and retry a failed operation.
// errors.Is matches both the Kind and the underlying cause.
type MatchError struct {
	Op       string
	MatchID  uuid.UUID
	GroupID  uuid.UUID
	PlayerID uuid.UUID
	Mode     models.Mode
	Kind     error
	Err      error
}

func (e *MatchError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.MatchID != uuid.Nil {
		fmt.Fprintf(&b, " match=%s", e.MatchID)
	}
	if e.GroupID != uuid.Nil {
		fmt.Fprintf(&b, " group=%s", e.GroupID)
	}
	if e.PlayerID != uuid.Nil {
		fmt.Fprintf(&b, " player=%s", e.PlayerID)
	}
	if e.Mode != "" {
		fmt.Fprintf(&b, " mode=%s", e.Mode)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *MatchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether the same call may succeed if repeated.
func (e *MatchError) Retryable() bool {
	return errors.Is(e.Kind, ErrStorageFailure)
}

// IsRetryable reports whether err is a retryable MatchError.
func IsRetryable(err error) bool {
	var me *MatchError
	return errors.As(err, &me) && me.Retryable()
}

func validationError(sub *models.MatchSubmission, format string, args ...any) *MatchError {
	return &MatchError{
		Op:      "record",
		MatchID: sub.MatchID,
		GroupID: sub.GroupID,
		Mode:    sub.Mode,
		Kind:    ErrValidation,
		Err:     fmt.Errorf(format, args...),
	}
}
