package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Laboratory identity printed on every report.
const (
	LabName     = "CONSTITUENCY ANIMAL DISEASE DIAGNOSTIC LABORATORY (CADDL)"
	LabLocation = "ALLAGADDA, Nandyal Dist., Andhra Pradesh"
	ISOCert     = "ISO 9001:2015 CERTIFIED"
	NABLCert    = "NABL ACCREDITED LABORATORY"

	DefaultLabTechnician     = "S.BALARAJU"
	DefaultAssistantDirector = "DR.M.Y.VARAPRASAD"

	// DefaultRemarks is printed when a report carries no remarks of its own.
	DefaultRemarks = "Laboratory findings correlate with physiological norms for the species. Clinical follow-up as per standard protocol recommended."
)

// DiagnosticReport is the aggregate authored by the technician.
type DiagnosticReport struct {
	ID string `json:"id"`

	// Owner and animal
	FarmerName          string  `json:"farmerName"`
	FarmerAddress       string  `json:"farmerAddress"`
	FarmerContact       string  `json:"farmerContact,omitempty"`
	AnimalID            string  `json:"animalId,omitempty"`
	Species             Species `json:"species"`
	Breed               string  `json:"breed"`
	Age                 string  `json:"age"`
	Sex                 Sex     `json:"sex"`
	PhysiologicalStatus string  `json:"physiologicalStatus,omitempty"`

	// Sample
	SampleType       string `json:"sampleType,omitempty"`
	DateOfCollection string `json:"dateOfCollection"`
	TimeOfCollection string `json:"timeOfCollection,omitempty"`
	CollectedBy      string `json:"collectedBy,omitempty"`
	SampleCondition  string `json:"sampleCondition,omitempty"`

	// Administrative
	ReferringDoctor   string `json:"referringDoctor"`
	Hospital          string `json:"hospital,omitempty"`
	LabTechnicianName string `json:"labTechnicianName"`
	AssistantDirector string `json:"assistantDirector"`
	DateOfReport      string `json:"dateOfReport"`

	CategorizedResults CategorizedResultSet `json:"categorizedResults"`

	// Narrative
	ConciseSummary string       `json:"conciseSummary"`
	OtherRemarks   string       `json:"otherRemarks"`
	Status         ReportStatus `json:"status"`
}

// NewDiagnosticReport creates a draft with a fresh id, an empty result set
// covering the schema and the laboratory's default signatories.
func NewDiagnosticReport(keys []CategoryKey, now time.Time) DiagnosticReport {
	today := now.Format(DateLayout)
	return DiagnosticReport{
		ID:                 uuid.New().String(),
		Sex:                UNKNOWN,
		Species:            BOVINE,
		DateOfCollection:   today,
		DateOfReport:       today,
		LabTechnicianName:  DefaultLabTechnician,
		AssistantDirector:  DefaultAssistantDirector,
		CategorizedResults: NewResultSet(keys),
		Status:             PENDING,
	}
}

// DateLayout is the calendar date format used for report dates.
const DateLayout = "2006-01-02"

// Clone returns a copy that shares no mutable state with r.
func (r DiagnosticReport) Clone() DiagnosticReport {
	out := r
	if r.CategorizedResults != nil {
		out.CategorizedResults = r.CategorizedResults.Clone()
	}
	return out
}

// DisplayID is the short identifier printed on documents, e.g. "CADDL-1A2B".
func (r DiagnosticReport) DisplayID() string {
	id := r.ID
	if len(id) > 4 {
		id = id[:4]
	}
	return "CADDL-" + strings.ToUpper(id)
}

var whitespace = regexp.MustCompile(`\s+`)

// FileName is the suggested name of the exported PDF.
func (r DiagnosticReport) FileName() string {
	id := r.ID
	if len(id) > 4 {
		id = id[:4]
	}
	farmer := whitespace.ReplaceAllString(strings.TrimSpace(r.FarmerName), "_")
	return fmt.Sprintf("CADDL_REPORT_%s_%s_%s.pdf", strings.ToUpper(string(r.Species)), farmer, id)
}

// Remarks returns the remarks to print, falling back to DefaultRemarks.
func (r DiagnosticReport) Remarks() string {
	if strings.TrimSpace(r.OtherRemarks) == "" {
		return DefaultRemarks
	}
	return r.OtherRemarks
}

// ReportDate parses DateOfReport. The boolean is false for blank or
// malformed dates.
func (r DiagnosticReport) ReportDate() (time.Time, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(r.DateOfReport))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Validate checks the enumerated fields of the report.
func (r *DiagnosticReport) Validate() error {
	if r.ID == "" {
		return NewValidationError("id", "id is required", r.ID)
	}
	if !r.Species.IsValid() {
		return NewValidationError("species", ErrInvalidSpecies.Error(), r.Species)
	}
	if r.Sex != "" && !r.Sex.IsValid() {
		return NewValidationError("sex", ErrInvalidSex.Error(), r.Sex)
	}
	if !r.Status.IsValid() {
		return NewValidationError("status", ErrInvalidStatus.Error(), r.Status)
	}
	if r.CategorizedResults == nil {
		return NewValidationError("categorizedResults", "result set is required", nil)
	}
	return nil
}

// ConsultationRequest asks a senior pathologist to review a report.
// ReportID is a weak reference and may dangle after the report is deleted.
type ConsultationRequest struct {
	ID          string             `json:"id"`
	ReportID    string             `json:"reportId"`
	FarmerName  string             `json:"farmerName"`
	Species     Species            `json:"species"`
	RequestNote string             `json:"requestNote"`
	Urgency     Urgency            `json:"urgency"`
	Status      ConsultationStatus `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// GalleryItem is a clinical image with an optional AI caption.
type GalleryItem struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Caption    string `json:"caption"`
	Category   string `json:"category"`
	Date       string `json:"date"`
	AIAnalyzed bool   `json:"aiAnalyzed"`
}

// Matches reports whether the caption or category contains the query,
// ignoring case. An empty query matches everything.
func (g GalleryItem) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(g.Caption), q) ||
		strings.Contains(strings.ToLower(g.Category), q)
}

// Archive is the backup file format.
type Archive struct {
	Reports       []DiagnosticReport    `json:"reports"`
	Consultations []ConsultationRequest `json:"consultations"`
	Gallery       []GalleryItem         `json:"gallery,omitempty"`
}
