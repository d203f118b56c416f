package errorx

import (
	"errors"
	"fmt"
	"time"
)

// GENERAL ERROR:

// GeneralError - General App Error.
type GeneralError struct {
	message string
	err     error
}

// NewGeneralError - GeneralError constructor.
func NewGeneralError(msg string, args ...any) *GeneralError {
	return &GeneralError{message: fmt.Sprintf(msg, args...), err: nil}
}

// NewGeneralErrorWrapper - GeneralError constructor for wrapper of another error.
func NewGeneralErrorWrapper(err error, msg string, args ...any) *GeneralError {
	return &GeneralError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (ge *GeneralError) Error() string {
	if ge.err != nil {
		return fmt.Errorf("%s # Error wrap: %w", ge.message, ge.err).Error()
	}

	return ge.message
}

func (ge *GeneralError) Unwrap() error {
	return ge.err
}

// DATABASE ERROR

// DatabaseError - Database layer error.
type DatabaseError struct {
	message string
	err     error
}

// NewDatabaseError - DatabaseError constructor.
func NewDatabaseError(msg string, args ...any) *DatabaseError {
	return &DatabaseError{message: fmt.Sprintf(msg, args...), err: nil}
}

// NewDatabaseErrorWrapper - DatabaseError constructor for wrapper of another error.
func NewDatabaseErrorWrapper(err error, msg string, args ...any) *DatabaseError {
	return &DatabaseError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (ge *DatabaseError) Error() string {
	if ge.err != nil {
		return fmt.Errorf("%s: %w", ge.message, ge.err).Error()
	}

	return ge.message
}

func (ge *DatabaseError) Unwrap() error {
	return ge.err
}

// POOL / CONNECTION ERRORS

var (
	// ErrTransactionFinalized is returned by every operation attempted on a committed or rolled back transaction.
	ErrTransactionFinalized = errors.New("transaction was commit or rollback")
	// ErrConnectionReleased is returned by operations on a connection already given back to the pool.
	ErrConnectionReleased = errors.New("connection already released to the pool")
	// ErrPoolClosed is returned when acquiring from a pool after End.
	ErrPoolClosed = errors.New("Pool is closed.")
	// ErrQueueLimitReached is returned when the pool wait queue is full.
	ErrQueueLimitReached = errors.New("Queue limit reached.")
	// ErrNoConnectionsAvailable is returned when the pool is exhausted and waiting is disabled.
	ErrNoConnectionsAvailable = errors.New("No connections available.")
)

// GetConnectionErrorName is the stable name of errors raised while obtaining or beginning a connection.
const GetConnectionErrorName = "RDSClientGetConnectionError"

// GetConnectionError - raised when a connection can not be obtained from the pool
// or a transaction can not be started on it.
type GetConnectionError struct {
	err error
}

// NewGetConnectionError - GetConnectionError constructor.
func NewGetConnectionError(err error) *GetConnectionError {
	return &GetConnectionError{err: err}
}

// Name - stable classification name.
func (e *GetConnectionError) Name() string {
	return GetConnectionErrorName
}

func (e *GetConnectionError) Error() string {
	if e.err == nil {
		return GetConnectionErrorName
	}

	return e.err.Error()
}

func (e *GetConnectionError) Unwrap() error {
	return e.err
}

// PoolWaitTimeoutError - raised when a bounded pool acquisition expires.
type PoolWaitTimeoutError struct {
	Elapsed time.Duration
}

// NewPoolWaitTimeoutError - PoolWaitTimeoutError constructor.
func NewPoolWaitTimeoutError(elapsed time.Duration) *PoolWaitTimeoutError {
	return &PoolWaitTimeoutError{Elapsed: elapsed}
}

// Name - stable classification name.
func (e *PoolWaitTimeoutError) Name() string {
	return "PoolWaitTimeoutError"
}

func (e *PoolWaitTimeoutError) Error() string {
	return fmt.Sprintf("get connection timeout after %dms", e.Elapsed.Milliseconds())
}

// IsPoolWaitTimeout reports whether err carries a PoolWaitTimeoutError.
func IsPoolWaitTimeout(err error) bool {
	var target *PoolWaitTimeoutError
	return errors.As(err, &target)
}

// IsGetConnectionError reports whether err was classified as a connection acquisition failure.
func IsGetConnectionError(err error) bool {
	var target *GetConnectionError
	return errors.As(err, &target)
}

// TRANSACTION FINALIZATION ERROR

// FinalizationError - commit or rollback failure of a transaction scope.
// When the scope body failed too, its error is kept as the cause.
type FinalizationError struct {
	Op    string
	err   error
	cause error
}

// NewFinalizationError - FinalizationError constructor.
func NewFinalizationError(op string, err, cause error) *FinalizationError {
	return &FinalizationError{Op: op, err: err, cause: cause}
}

func (e *FinalizationError) Error() string {
	return e.err.Error()
}

// Cause returns the scope body error, or the commit/rollback failure itself when the body
// succeeded, so errors.Cause of github.com/pkg/errors never resolves a failed finalization to nil.
func (e *FinalizationError) Cause() error {
	if e.cause == nil {
		return e.err
	}

	return e.cause
}

// WorkErr returns the scope body error, nil when the body succeeded.
func (e *FinalizationError) WorkErr() error {
	return e.cause
}

// Unwrap exposes both the finalization failure and the body error to errors.Is / errors.As.
func (e *FinalizationError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.err}
	}

	return []error{e.err, e.cause}
}
