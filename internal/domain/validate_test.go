package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validClassification() Classification {
	return Classification{
		Dimensions: []DimensionTag{
			{Dimension: DimensionCompute, Relevance: RelevancePrimary},
			{Dimension: DimensionEnergy, Relevance: RelevanceSecondary},
		},
		ChangeType:  ChangeReinforcing,
		TimeHorizon: HorizonMedium,
		Summary:     "Hyperscalers continue multi-year datacenter buildouts across three continents.",
		Importance:  ImportanceHigh,
		KeyEntities: []string{"Microsoft", "TSMC"},
	}
}

func TestClassificationValidate(t *testing.T) {
	require.NoError(t, validClassification().Validate())
}

func TestClassificationValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Classification)
		rule   string
	}{
		{
			"no dimensions", func(c *Classification) { c.Dimensions = nil },
			"dimensions_non_empty",
		},
		{
			"unknown dimension",
			func(c *Classification) { c.Dimensions[0].Dimension = "macroeconomics" },
			"dimension",
		},
		{
			"no primary relevance",
			func(c *Classification) {
				c.Dimensions = []DimensionTag{{Dimension: DimensionCompute, Relevance: RelevanceSecondary}}
			},
			"primary_relevance_required",
		},
		{
			"unknown change type",
			func(c *Classification) { c.ChangeType = "accelerating" },
			"change_type",
		},
		{
			"unknown horizon",
			func(c *Classification) { c.TimeHorizon = "decade" },
			"time_horizon",
		},
		{
			"unknown importance",
			func(c *Classification) { c.Importance = "critical" },
			"importance",
		},
		{
			"empty summary",
			func(c *Classification) { c.Summary = "   " },
			"summary_non_empty",
		},
		{
			"oversized summary",
			func(c *Classification) { c.Summary = strings.Repeat("a", MaxSummaryChars+1) },
			"summary_length",
		},
		{
			"directional summary",
			func(c *Classification) { c.Summary = "This is bullish for chipmakers." },
			"summary_forbidden_term",
		},
		{
			"no key entities",
			func(c *Classification) { c.KeyEntities = nil },
			"key_entities_non_empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validClassification()
			tt.mutate(&c)

			err := c.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidationFailed)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.rule, verr.Rule)
		})
	}
}

func TestLengthBoundsCountCharactersNotBytes(t *testing.T) {
	// 400 characters of multibyte text is 800 bytes but well under the
	// 500-character summary bound.
	c := validClassification()
	c.Summary = strings.Repeat("é", 400)
	require.NoError(t, c.Validate())

	c.Summary = strings.Repeat("é", MaxSummaryChars+1)
	var verr *ValidationError
	require.ErrorAs(t, c.Validate(), &verr)
	assert.Equal(t, "summary_length", verr.Rule)

	e := validEntry()
	e.Rationale = strings.Repeat("é", MaxRationaleChars)
	require.NoError(t, ValidateExposures([]ExposureEntry{e}, ""))

	e.Rationale = strings.Repeat("é", MaxRationaleChars+1)
	require.ErrorAs(t, ValidateExposures([]ExposureEntry{e}, ""), &verr)
	assert.Equal(t, "rationale_length", verr.Rule)
}

func TestForbiddenTermWholeWordOnly(t *testing.T) {
	assert.Equal(t, "buy", ForbiddenTerm("Consumers buy more devices"))
	assert.Equal(t, "bullish", ForbiddenTerm("A Bullish outlook"))

	// Substrings are not matches.
	assert.Empty(t, ForbiddenTerm("the buyer of the business"))
	assert.Empty(t, ForbiddenTerm("sellers in aggregate"))
	assert.Empty(t, ForbiddenTerm("neutral structural description"))
}

func validEntry() ExposureEntry {
	return ExposureEntry{
		Ticker:               "MSFT",
		ExposureType:         ExposureDirect,
		BusinessRole:         RoleInfrastructureOperator,
		ExposureStrength:     StrengthCore,
		Confidence:           ConfidenceHigh,
		DimensionsImplicated: []Dimension{DimensionCompute},
		Rationale:            "Operates hyperscale datacenter capacity central to the compute buildout.",
	}
}

func TestValidateExposuresMutualExclusivity(t *testing.T) {
	// Entries with no skip reason.
	require.NoError(t, ValidateExposures([]ExposureEntry{validEntry()}, ""))

	// Skip reason with no entries.
	require.NoError(t, ValidateExposures(nil, "no listed entities identified"))

	// Neither.
	err := ValidateExposures(nil, "  ")
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "skip_reason_required", verr.Rule)

	// Both.
	err = ValidateExposures([]ExposureEntry{validEntry()}, "also skipped")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "skip_reason_exclusive", verr.Rule)
}

func TestValidateExposuresEntryRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ExposureEntry)
		rule   string
	}{
		{"empty ticker", func(e *ExposureEntry) { e.Ticker = " " }, "ticker_required"},
		{"unknown exposure type", func(e *ExposureEntry) { e.ExposureType = "primary" }, "exposure_type"},
		{"unknown business role", func(e *ExposureEntry) { e.BusinessRole = "vendor" }, "business_role"},
		{"unknown strength", func(e *ExposureEntry) { e.ExposureStrength = "strong" }, "exposure_strength"},
		{"unknown confidence", func(e *ExposureEntry) { e.Confidence = "certain" }, "confidence"},
		{"no implicated dimensions", func(e *ExposureEntry) { e.DimensionsImplicated = nil }, "dimensions_implicated_non_empty"},
		{"unknown implicated dimension", func(e *ExposureEntry) { e.DimensionsImplicated = []Dimension{"finance"} }, "dimensions_implicated"},
		{"empty rationale", func(e *ExposureEntry) { e.Rationale = "" }, "rationale_non_empty"},
		{"oversized rationale", func(e *ExposureEntry) { e.Rationale = strings.Repeat("b", MaxRationaleChars+1) }, "rationale_length"},
		{"directional rationale", func(e *ExposureEntry) { e.Rationale = "Clear upside from grid spending." }, "rationale_forbidden_term"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(&e)

			err := ValidateExposures([]ExposureEntry{e}, "")
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrValidationFailed))

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.rule, verr.Rule)
		})
	}
}

func TestHasPrimaryDimension(t *testing.T) {
	c := validClassification()
	assert.True(t, c.HasPrimaryDimension())

	c.Dimensions = []DimensionTag{{Dimension: DimensionCapital, Relevance: RelevanceSecondary}}
	assert.False(t, c.HasPrimaryDimension())
}
