package service

import (
	"github.com/caddl-lab-desk/internal/domain"
)

// DemoReportID is the id of the demo report written on first run.
const DemoReportID = "1"

var demoResults = map[domain.CategoryKey][]domain.TestEntry{
	"clinicalPathology": {
		{TestName: "Hemoglobin (Hb)", ResultValue: "10.5", Unit: "g/dL", NormalRange: "8.0 - 15.0"},
		{TestName: "Packed Cell Volume (PCV)", ResultValue: "32", Unit: "%", NormalRange: "24 - 46"},
	},
	"biochemistry": {
		{TestName: "Blood Glucose", ResultValue: "40", Unit: "mg/dL", NormalRange: "45 - 75"},
	},
	"parasitology": {
		{TestName: "Fecal Exam (Direct)", ResultValue: "Strongyle eggs (+)", Unit: "-", NormalRange: "Nil"},
	},
}

// DemoReport is the sample report written into an empty store so that a new
// installation has something to show. Sections missing from keys are left
// out.
func DemoReport(keys []domain.CategoryKey) domain.DiagnosticReport {
	set := domain.NewResultSet(keys)
	for key, entries := range demoResults {
		if set.Has(key) {
			set[key] = append([]domain.TestEntry(nil), entries...)
		}
	}

	return domain.DiagnosticReport{
		ID:                 DemoReportID,
		FarmerName:         "Venkata Reddy",
		FarmerAddress:      "H.No: 4-12, Allagadda Village, Nandyal Dist.",
		Species:            domain.BOVINE,
		Breed:              "Murrah Buffalo",
		Age:                "4 Years",
		Sex:                domain.FEMALE,
		SampleType:         "Blood, Feces",
		DateOfCollection:   "2024-05-20",
		ReferringDoctor:    "Dr. Ramesh Kumar",
		LabTechnicianName:  domain.DefaultLabTechnician,
		AssistantDirector:  domain.DefaultAssistantDirector,
		DateOfReport:       "2024-05-21",
		CategorizedResults: set,
		ConciseSummary:     "Suspected gastrointestinal parasitism and mild hypoglycemia.",
		OtherRemarks:       "Deworming recommended. Blood glucose is slightly lower than normal.",
		Status:             domain.COMPLETED,
	}
}
