package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type startupInput struct {
	DataPath     string `validate:"required,notblank,dataset_ext"`
	BaseCurrency string `validate:"currency_code"`
}

func TestValidateStructAccepts(t *testing.T) {
	msg := ValidateStruct(startupInput{DataPath: "data/employees.csv", BaseCurrency: "USD"})
	require.Empty(t, msg)

	msg = ValidateStruct(startupInput{DataPath: "data/book.XLSX", BaseCurrency: "try"})
	require.Empty(t, msg)
}

func TestValidateStructDatasetExt(t *testing.T) {
	msg := ValidateStruct(startupInput{DataPath: "data.parquet", BaseCurrency: "USD"})
	require.Equal(t, "VALIDATION: path must be a .csv or .xlsx dataset", msg)
}

func TestValidateStructCurrencyCode(t *testing.T) {
	msg := ValidateStruct(startupInput{DataPath: "data.csv", BaseCurrency: "GBP"})
	require.Equal(t, "VALIDATION: base_currency must be one of EUR, USD, TRY", msg)
}

func TestValidateStructNotBlank(t *testing.T) {
	msg := ValidateStruct(startupInput{DataPath: "   ", BaseCurrency: "USD"})
	require.Contains(t, msg, "VALIDATION")
}
