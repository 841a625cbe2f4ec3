// Package render produces printable documents for saved reports.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/domain"
	"github.com/caddl-lab-desk/internal/service"
)

const (
	margin     = 10.0
	lineHeight = 6.0
)

// Column widths of the results table in mm. They add up to the A4 content
// width of 190mm.
var columns = [4]float64{66.5, 38, 28.5, 57}

// PDFRenderer lays out an annotated report on A4 pages.
type PDFRenderer struct {
	logger *logrus.Logger
	now    func() time.Time
}

// NewPDFRenderer creates a renderer.
func NewPDFRenderer(logger *logrus.Logger) *PDFRenderer {
	return &PDFRenderer{logger: logger, now: time.Now}
}

type document struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

// Render writes the report as PDF. Abnormal values are printed in bold
// red with a trailing asterisk.
func (r *PDFRenderer) Render(report service.AnnotatedReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, 18)
	pdf.SetTitle(report.DisplayID, false)
	pdf.SetAuthor(domain.LabName, false)
	pdf.SetCreator("caddl-lab-desk", false)

	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	rep := report.Report

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "", 7)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 4, d.tr(fmt.Sprintf("ELECTRONIC VALIDATION: %s | GENERATED %s | PAGE %d",
			strings.ToUpper(rep.ID), r.now().Format("2006-01-02 15:04"), pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	d.header()
	d.metadata(rep)
	if s := strings.TrimSpace(rep.ConciseSummary); s != "" {
		d.summary(s)
	}
	d.results(report.Sections)
	d.remarks(report.Remarks)
	d.signatures(rep)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to lay out report %s: %w", rep.ID, err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write report %s: %w", rep.ID, err)
	}

	r.logger.WithFields(logrus.Fields{
		"report_id": rep.ID,
		"pages":     pdf.PageCount(),
		"bytes":     buf.Len(),
	}).Debug("Report rendered")
	return buf.Bytes(), nil
}

func (d *document) header() {
	pdf := d.pdf
	pdf.SetTextColor(30, 64, 175)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 7, d.tr(domain.LabName), "", 1, "C", false, 0, "")
	pdf.SetTextColor(55, 65, 81)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 5, d.tr(domain.LabLocation), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 7)
	w := 55.0
	x := (210 - 2*w - 4) / 2
	pdf.SetX(x)
	pdf.SetFillColor(30, 64, 175)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(w, 5, domain.ISOCert, "1", 0, "C", true, 0, "")
	pdf.SetX(x + w + 4)
	pdf.SetTextColor(30, 64, 175)
	pdf.CellFormat(w, 5, domain.NABLCert, "1", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetDrawColor(30, 64, 175)
	pdf.SetLineWidth(1)
	pdf.Line(margin, pdf.GetY(), 210-margin, pdf.GetY())
	pdf.SetLineWidth(0.2)
	pdf.SetDrawColor(200, 200, 200)
	pdf.Ln(4)
}

func (d *document) field(label, value string, width float64, ln int) {
	pdf := d.pdf
	pdf.SetFont("Helvetica", "B", 7)
	pdf.SetTextColor(140, 140, 140)
	pdf.CellFormat(32, lineHeight, strings.ToUpper(label)+":", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(31, 41, 55)
	pdf.CellFormat(width-32, lineHeight, d.tr(value), "", ln, "L", false, 0, "")
}

func (d *document) metadata(r domain.DiagnosticReport) {
	ref := r.ID
	if len(ref) > 6 {
		ref = ref[:6]
	}
	half := 95.0
	d.field("Farmer Name", strings.ToUpper(r.FarmerName), half, 0)
	d.field("Lab Ref ID", "CADDL/AGD/"+strings.ToUpper(ref), half, 1)
	address := r.FarmerAddress
	if strings.TrimSpace(address) == "" {
		address = "N/A"
	}
	d.field("Farmer Address", strings.ToUpper(address), 2*half, 1)
	d.field("Animal Species", string(r.Species), half, 0)
	d.field("Collection Date", r.DateOfCollection, half, 1)
	d.field("Breed / Sex", strings.ToUpper(fmt.Sprintf("%s / %s", r.Breed, r.Sex)), half, 0)
	d.field("Report Date", r.DateOfReport, half, 1)
	if r.Age != "" || r.SampleType != "" {
		d.field("Age", r.Age, half, 0)
		d.field("Sample Type", r.SampleType, half, 1)
	}
	if r.ReferringDoctor != "" {
		d.field("Referred By", r.ReferringDoctor, 2*half, 1)
	}
	d.pdf.Ln(3)
}

func (d *document) summary(text string) {
	pdf := d.pdf
	pdf.SetFillColor(239, 246, 255)
	pdf.SetTextColor(30, 58, 138)
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(0, 5, "EXECUTIVE CLINICAL SUMMARY", "", 1, "L", true, 0, "")
	pdf.SetFont("Helvetica", "BI", 9)
	pdf.MultiCell(0, 5, d.tr(text), "", "L", true)
	pdf.Ln(3)
}

func (d *document) results(sections []service.AnnotatedSection) {
	pdf := d.pdf
	pdf.SetFillColor(30, 64, 175)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(0, 6, "DIAGNOSTIC TEST RESULTS", "", 1, "C", true, 0, "")

	headers := [4]string{"INVESTIGATION NAME", "OBSERVED VALUE", "UNIT", "NORMAL RANGE"}
	pdf.SetFillColor(243, 244, 246)
	pdf.SetTextColor(75, 85, 99)
	pdf.SetFont("Helvetica", "B", 7)
	for i, h := range headers {
		align := "C"
		if i == 0 {
			align = "L"
		}
		ln := 0
		if i == len(headers)-1 {
			ln = 1
		}
		pdf.CellFormat(columns[i], 6, h, "1", ln, align, true, 0, "")
	}

	if len(sections) == 0 {
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(140, 140, 140)
		pdf.CellFormat(0, 6, "No investigations recorded.", "1", 1, "C", false, 0, "")
	}

	for _, section := range sections {
		pdf.SetFillColor(219, 234, 254)
		pdf.SetTextColor(30, 58, 138)
		pdf.SetFont("Helvetica", "B", 7)
		pdf.CellFormat(0, 5, d.tr(strings.ToUpper(section.Label)), "1", 1, "L", true, 0, "")

		for _, e := range section.Entries {
			pdf.SetFont("Helvetica", "B", 8)
			pdf.SetTextColor(55, 65, 81)
			pdf.CellFormat(columns[0], 6, d.tr(e.TestName), "1", 0, "L", false, 0, "")

			value := e.ResultValue
			if e.Abnormal {
				value += " *"
				pdf.SetTextColor(185, 28, 28)
			} else {
				pdf.SetTextColor(17, 24, 39)
			}
			pdf.CellFormat(columns[1], 6, d.tr(value), "1", 0, "C", false, 0, "")

			pdf.SetFont("Helvetica", "", 8)
			pdf.SetTextColor(107, 114, 128)
			pdf.CellFormat(columns[2], 6, d.tr(e.Unit), "1", 0, "C", false, 0, "")
			pdf.SetFont("Helvetica", "I", 7)
			pdf.CellFormat(columns[3], 6, d.tr(e.NormalRange), "1", 1, "C", false, 0, "")
		}
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 6)
	pdf.SetTextColor(160, 160, 160)
	pdf.CellFormat(0, 4, "* VALUE OUTSIDE NORMAL RANGE      *** END OF LABORATORY REPORT ***", "", 1, "C", false, 0, "")
	pdf.Ln(3)
}

func (d *document) remarks(text string) {
	pdf := d.pdf
	pdf.SetTextColor(30, 58, 138)
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(0, 5, "COMPREHENSIVE PATHOLOGIST REVIEW & RECOMMENDATIONS", "", 1, "L", false, 0, "")
	pdf.SetTextColor(31, 41, 55)
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 4.5, d.tr(text), "1", "L", false)
	pdf.Ln(16)
}

func (d *document) signatures(r domain.DiagnosticReport) {
	pdf := d.pdf
	if pdf.GetY() > 297-50 {
		pdf.AddPage()
	}
	y := pdf.GetY()
	pdf.SetDrawColor(17, 24, 39)
	pdf.Line(20, y, 75, y)
	pdf.Line(125, y, 190, y)
	pdf.Ln(1)

	type signatory struct {
		x, w        float64
		name, title string
	}
	for _, s := range []signatory{
		{20, 55, r.LabTechnicianName, "LAB TECHNICIAN"},
		{125, 65, r.AssistantDirector, "ASSISTANT DIRECTOR"},
	} {
		pdf.SetXY(s.x, y+1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(s.w, 5, d.tr(strings.ToUpper(s.name)), "", 2, "C", false, 0, "")
		pdf.SetFont("Helvetica", "B", 7)
		pdf.CellFormat(s.w, 4, s.title, "", 2, "C", false, 0, "")
		pdf.SetFont("Helvetica", "", 7)
		pdf.CellFormat(s.w, 4, "C.A.D.D.L, ALLAGADDA", "", 2, "C", false, 0, "")
	}
}
