package errorx_test

import (
	"errors"
	"testing"
	"time"

	"github.com/marcodd23/go-txscope/pkg/errorx"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolWaitTimeoutError(t *testing.T) {
	err := errorx.NewPoolWaitTimeoutError(512 * time.Millisecond)

	assert.Equal(t, "get connection timeout after 512ms", err.Error())
	assert.True(t, errorx.IsPoolWaitTimeout(pkgerrors.Wrap(err, "scope")))
	assert.False(t, errorx.IsGetConnectionError(err))
}

func TestGetConnectionError(t *testing.T) {
	driverErr := errors.New("connect ECONNREFUSED 127.0.0.1:5433")
	err := errorx.NewGetConnectionError(driverErr)

	assert.Equal(t, errorx.GetConnectionErrorName, err.Name())
	assert.Equal(t, driverErr.Error(), err.Error())
	assert.ErrorIs(t, err, driverErr)
	assert.True(t, errorx.IsGetConnectionError(err))
}

func TestFinalizationError_WithCause(t *testing.T) {
	rollbackErr := errors.New("fake rollback error")
	workErr := errors.New("syntax error at or near \"valuefail\"")

	err := errorx.NewFinalizationError("rollback", rollbackErr, workErr)

	assert.Equal(t, "fake rollback error", err.Error())
	assert.Equal(t, workErr, err.Cause())
	assert.Equal(t, workErr, err.WorkErr())
	assert.Equal(t, workErr, pkgerrors.Cause(err))
	assert.ErrorIs(t, err, rollbackErr)
	assert.ErrorIs(t, err, workErr)
}

func TestFinalizationError_WithoutCause(t *testing.T) {
	commitErr := errors.New("commit failed")

	err := errorx.NewFinalizationError("commit", commitErr, nil)

	require.Nil(t, err.WorkErr())
	assert.Equal(t, commitErr, err.Cause())
	assert.Equal(t, commitErr, pkgerrors.Cause(err))
	assert.Equal(t, commitErr, pkgerrors.Cause(pkgerrors.Wrap(err, "transfer")))
	assert.ErrorIs(t, err, commitErr)
	assert.Len(t, err.Unwrap(), 1)
}

func TestDatabaseErrorUnwrap(t *testing.T) {
	err := errorx.NewDatabaseErrorWrapper(errorx.ErrTransactionFinalized, "error during transaction commit")

	assert.ErrorIs(t, err, errorx.ErrTransactionFinalized)
	assert.Equal(t, "error during transaction commit: transaction was commit or rollback", err.Error())
	assert.Equal(t, "plain", errorx.NewDatabaseError("plain").Error())
}
