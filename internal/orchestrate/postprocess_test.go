package orchestrate

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachpraktijk/invoice-agents/internal/model"
)

func hours(h float64) *float64 { return &h }

func TestDrainZeroHours(t *testing.T) {
	res := drainZeroHours(model.LineItemsResult{
		ClientCases: []model.ClientCase{
			{ValidatedClientCaseNumber: "IN16-121-284", DurationHours: hours(1.5)},
			{ValidatedClientCaseNumber: "ON16-093-110", DurationHours: hours(0)},
			{ValidatedClientCaseNumber: "AB12-345-678", DurationHours: nil},
			{ValidatedClientCaseNumber: "CD34-567-890", DurationHours: hours(2)},
		},
		ClientCasesNoActivity: []string{"ON16-093-110"},
	})

	require.Len(t, res.ClientCases, 2)
	assert.Equal(t, "IN16-121-284", res.ClientCases[0].ValidatedClientCaseNumber)
	assert.Equal(t, "CD34-567-890", res.ClientCases[1].ValidatedClientCaseNumber)
	assert.Equal(t, []string{"AB12-345-678", "ON16-093-110"}, res.ClientCasesNoActivity)
}

func TestDrainZeroHoursKeepsEmptyCodeOut(t *testing.T) {
	res := drainZeroHours(model.LineItemsResult{
		ClientCases:           []model.ClientCase{{ValidatedClientCaseNumber: "", DurationHours: nil}},
		ClientCasesNoActivity: []string{},
	})

	assert.Empty(t, res.ClientCases)
	assert.Empty(t, res.ClientCasesNoActivity)
}

func TestApplyCorrectionsPreservesRawCode(t *testing.T) {
	result := &model.InvoiceResult{
		ClientCases: []model.ClientCase{
			{ValidatedClientCaseNumber: "1N16-121-284", DurationHours: hours(1)},
			{ValidatedClientCaseNumber: "IN16-200-001", DurationHours: hours(2)},
		},
		ClientCasesNoActivity: []string{"0N16-093-110", "IN16-300-002"},
	}
	corrections := map[string]string{
		"1N16-121-284": "IN16-121-284",
		"0N16-093-110": "ON16-093-110",
		"IN16-200-001": "IN16-200-001",
	}

	applyCorrections(result, corrections, slog.Default())

	assert.Equal(t, "IN16-121-284", result.ClientCases[0].ValidatedClientCaseNumber)
	require.NotNil(t, result.ClientCases[0].RawClientCaseNumber)
	assert.Equal(t, "1N16-121-284", *result.ClientCases[0].RawClientCaseNumber)

	// Identity corrections leave the raw field untouched.
	assert.Equal(t, "IN16-200-001", result.ClientCases[1].ValidatedClientCaseNumber)
	assert.Nil(t, result.ClientCases[1].RawClientCaseNumber)

	assert.Equal(t, []string{"IN16-300-002", "ON16-093-110"}, result.ClientCasesNoActivity)
}

func TestApplyCorrectionsDedupesNoActivity(t *testing.T) {
	result := &model.InvoiceResult{
		ClientCasesNoActivity: []string{"1N16-121-284", "IN16-121-284"},
	}

	applyCorrections(result, map[string]string{"1N16-121-284": "IN16-121-284"}, slog.Default())

	assert.Equal(t, []string{"IN16-121-284"}, result.ClientCasesNoActivity)
}

func TestEnforceAllowListDropsUnknownCodes(t *testing.T) {
	result := &model.InvoiceResult{
		ClientCases: []model.ClientCase{
			{ValidatedClientCaseNumber: "IN16-121-284", DurationHours: hours(1)},
			{ValidatedClientCaseNumber: "ZZ99-999-999", DurationHours: hours(3)},
		},
		ClientCasesNoActivity: []string{"ON16-093-110", "XX00-000-000"},
	}

	enforceAllowList(result, []string{"IN16-121-284", "ON16-093-110"}, slog.Default())

	require.Len(t, result.ClientCases, 1)
	assert.Equal(t, "IN16-121-284", result.ClientCases[0].ValidatedClientCaseNumber)
	assert.Equal(t, []string{"ON16-093-110"}, result.ClientCasesNoActivity)
}

func TestEnforceAllowListEmptyAllowListDropsEverything(t *testing.T) {
	result := &model.InvoiceResult{
		ClientCases:           []model.ClientCase{{ValidatedClientCaseNumber: "IN16-121-284", DurationHours: hours(1)}},
		ClientCasesNoActivity: []string{"ON16-093-110"},
	}

	enforceAllowList(result, nil, slog.Default())

	assert.Empty(t, result.ClientCases)
	assert.Empty(t, result.ClientCasesNoActivity)
}
