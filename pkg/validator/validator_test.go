package validator_test

import (
	"testing"

	"github.com/marcodd23/go-txscope/pkg/validator"
	"github.com/stretchr/testify/require"
)

type poolSettings struct {
	Limit int    `validate:"gte=1"`
	Mode  string `validate:"oneof=wait fail"`
}

func TestValidateStruct(t *testing.T) {
	v := validator.NewValidator()
	require.Same(t, v, validator.NewValidator())

	require.Empty(t, v.ValidateStruct(poolSettings{Limit: 2, Mode: "wait"}))

	errs := v.ValidateStruct(poolSettings{Limit: 0, Mode: "queue"})
	require.Len(t, errs, 2)
	require.Equal(t, "poolSettings.Limit", errs[0].FailedField)
	require.Equal(t, "gte", errs[0].Tag)
	require.Equal(t, "1", errs[0].Value)

	verr := validator.NewValidationError(errs)
	require.Len(t, verr.GetErrorsDetails(), 2)
	require.Contains(t, verr.Error(), `"FailedField":"poolSettings.Mode"`)
}

type scopeSettings struct {
	Key string `validate:"omitempty,storagekey"`
}

func TestValidateStruct_StorageKey(t *testing.T) {
	v := validator.NewValidator()

	require.Empty(t, v.ValidateStruct(scopeSettings{Key: "rds#default"}))
	require.Empty(t, v.ValidateStruct(scopeSettings{}))

	errs := v.ValidateStruct(scopeSettings{Key: "data source 1"})
	require.Len(t, errs, 1)
	require.Equal(t, validator.StorageKeyTag, errs[0].Tag)
}

func TestValidateStruct_NotAStruct(t *testing.T) {
	errs := validator.NewValidator().ValidateStruct(42)
	require.Len(t, errs, 1)
	require.Equal(t, "invalid", errs[0].Tag)
}
