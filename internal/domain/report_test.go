package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDiagnosticReportDefaults(t *testing.T) {
	now := time.Date(2024, 5, 21, 10, 0, 0, 0, time.UTC)
	r := NewDiagnosticReport(testKeys, now)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "2024-05-21", r.DateOfReport)
	assert.Equal(t, "2024-05-21", r.DateOfCollection)
	assert.Equal(t, PENDING, r.Status)
	assert.Equal(t, DefaultLabTechnician, r.LabTechnicianName)
	assert.Equal(t, DefaultAssistantDirector, r.AssistantDirector)
	assert.Len(t, r.CategorizedResults, len(testKeys))
	require.NoError(t, r.Validate())

	other := NewDiagnosticReport(testKeys, now)
	assert.NotEqual(t, r.ID, other.ID)
}

func TestDisplayIDAndFileName(t *testing.T) {
	r := DiagnosticReport{ID: "1a2b3c4d", FarmerName: "Venkata  Reddy", Species: BOVINE}
	assert.Equal(t, "CADDL-1A2B", r.DisplayID())
	assert.Equal(t, "CADDL_REPORT_BOVINE_Venkata_Reddy_1a2b.pdf", r.FileName())

	short := DiagnosticReport{ID: "1", FarmerName: "X", Species: CAPRINE}
	assert.Equal(t, "CADDL-1", short.DisplayID())
}

func TestRemarksFallback(t *testing.T) {
	assert.Equal(t, DefaultRemarks, DiagnosticReport{OtherRemarks: "  "}.Remarks())
	assert.Equal(t, "Deworm", DiagnosticReport{OtherRemarks: "Deworm"}.Remarks())
}

func TestReportDate(t *testing.T) {
	d, ok := DiagnosticReport{DateOfReport: "2024-05-21"}.ReportDate()
	require.True(t, ok)
	assert.Equal(t, 21, d.Day())

	_, ok = DiagnosticReport{DateOfReport: "21/05/2024"}.ReportDate()
	assert.False(t, ok)
	_, ok = DiagnosticReport{}.ReportDate()
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	r := NewDiagnosticReport(testKeys, time.Now())
	r.CategorizedResults["parasitology"] = []TestEntry{{TestName: "Fecal", ResultValue: "Nil"}}

	cp := r.Clone()
	cp.CategorizedResults["parasitology"][0].ResultValue = "Strongyle eggs (+)"
	assert.Equal(t, "Nil", r.CategorizedResults["parasitology"][0].ResultValue)
}

func TestReportJSONFieldNames(t *testing.T) {
	r := NewDiagnosticReport(testKeys, time.Now())
	r.FarmerName = "Venkata Reddy"

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"id", "farmerName", "categorizedResults", "dateOfReport", "labTechnicianName", "status"} {
		assert.Contains(t, raw, key)
	}

	var back DiagnosticReport
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r, back)
}

func TestValidateRejectsBadEnums(t *testing.T) {
	r := NewDiagnosticReport(testKeys, time.Now())
	r.Species = "Dragon"
	assert.Error(t, r.Validate())

	r = NewDiagnosticReport(testKeys, time.Now())
	r.Status = "Draft"
	assert.Error(t, r.Validate())

	r = NewDiagnosticReport(testKeys, time.Now())
	r.CategorizedResults = nil
	assert.Error(t, r.Validate())
}

func TestGalleryItemMatches(t *testing.T) {
	item := GalleryItem{Caption: "Strongyle egg under 10x", Category: "Parasitology"}
	assert.True(t, item.Matches(""))
	assert.True(t, item.Matches("strongyle"))
	assert.True(t, item.Matches("PARASIT"))
	assert.False(t, item.Matches("anthrax"))
}
