package backgroundcheck

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/believeinme/background-check-service/internal/checkr"
	"github.com/believeinme/background-check-service/internal/models"
)

func TestScreeningErrorRecord(t *testing.T) {
	tests := []struct {
		object string
		field  func(*models.BackgroundCheck) string
	}{
		{"ssn_trace", func(b *models.BackgroundCheck) string { return b.ErrorSSNTrace }},
		{"test_ssn_trace", func(b *models.BackgroundCheck) string { return b.ErrorSSNTrace }},
		{"test_sex_offender_search", func(b *models.BackgroundCheck) string { return b.ErrorSexOffenderSearch }},
		{"global_watchlist_search", func(b *models.BackgroundCheck) string { return b.ErrorGlobalWatchlistSearch }},
		{"test_national_criminal_search", func(b *models.BackgroundCheck) string { return b.ErrorNationalCriminalSearch }},
	}

	for _, tt := range tests {
		t.Run(tt.object, func(t *testing.T) {
			screening := &checkr.Screening{Object: tt.object, Error: checkr.Messages{"boom", "second"}}
			record, known := ScreeningErrorRecord("00Q1", "Jane Doe", screening)
			assert.True(t, known)
			assert.Equal(t, "boom", tt.field(record))
			assert.Equal(t, models.BackgroundCheckStatusIncomplete, record.Status)
		})
	}

	record, known := ScreeningErrorRecord("00Q1", "Jane Doe", &checkr.Screening{Object: "county_criminal_search", Error: checkr.Messages{"x"}})
	assert.False(t, known)
	assert.Equal(t, models.BackgroundCheckStatusIncomplete, record.Status)
}

func TestErrorFieldName(t *testing.T) {
	assert.Equal(t, "Error_sex_offender_search__c", models.ErrorFieldName("test_sex_offender_search"))
	assert.Equal(t, "Error_ssn_trace__c", models.ErrorFieldName("ssn_trace"))
}

func TestResultRecord_MissingScreenings(t *testing.T) {
	workflow := &models.WorkflowRecord{Name: "Jane Doe", LeadID: "00Q1"}
	record, err := ResultRecord(workflow, &checkr.Report{Status: "consider"})
	require.NoError(t, err)
	assert.Equal(t, "consider", record.Status)
	assert.Empty(t, record.Addresses)
	assert.Nil(t, record.TurnaroundTime)

	// unset numbers and flags are sent as null
	body, err := json.Marshal(record)
	require.NoError(t, err)
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &fields))
	assert.Nil(t, fields["No_Data__c"])
	assert.Equal(t, "", fields["Error_ssn_trace__c"])
}
