package external

import (
	"fmt"
	"sort"
	"strings"

	"github.com/caddl-lab-desk/internal/domain"
)

const noFindings = "No laboratory findings provided."

var endemicDiseases = []string{
	"Foot and Mouth Disease (FMD)",
	"Hemorrhagic Septicemia (HS)",
	"Black Quarter (BQ)",
	"Blue Tongue (specifically in Ovine/Caprine species)",
	"Peste des Petits Ruminants (PPR)",
	"Anthrax (regional hotspots)",
	"Trypanosomiasis and other Hemoprotozoan diseases.",
}

// FormatFindings renders the non-empty categories of a result set, one line
// per category: "CATEGORY: name: value unit (Normal: range), ...".
// Categories listed in order come first; the rest follow in key order.
func FormatFindings(results domain.CategorizedResultSet, order []domain.CategoryKey) string {
	var lines []string
	for _, key := range orderedKeys(results, order) {
		entries := results[key]
		if len(entries) == 0 {
			continue
		}
		tests := make([]string, len(entries))
		for i, e := range entries {
			tests[i] = fmt.Sprintf("%s: %s %s (Normal: %s)", e.TestName, e.ResultValue, e.Unit, e.NormalRange)
		}
		lines = append(lines, strings.ToUpper(string(key))+": "+strings.Join(tests, ", "))
	}
	if len(lines) == 0 {
		return noFindings
	}
	return strings.Join(lines, "\n")
}

func orderedKeys(results domain.CategorizedResultSet, order []domain.CategoryKey) []domain.CategoryKey {
	seen := make(map[domain.CategoryKey]bool, len(order))
	keys := make([]domain.CategoryKey, 0, len(results))
	for _, k := range order {
		if _, ok := results[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []domain.CategoryKey
	for k := range results {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(keys, rest...)
}

// BuildInsightPrompt writes the pathologist prompt for a report.
func BuildInsightPrompt(report domain.DiagnosticReport, order []domain.CategoryKey) string {
	var b strings.Builder
	b.WriteString("Act as a Senior Veterinary Pathologist at the Constituency Animal Disease Diagnostic Laboratory (CADDL), Allagadda.\n")
	fmt.Fprintf(&b, "Analyze these laboratory findings for a %s (%s, %s/%s).\n\n",
		report.Species, report.Breed, report.Age, report.Sex)

	b.WriteString("LABORATORY FINDINGS:\n")
	b.WriteString(FormatFindings(report.CategorizedResults, order))
	b.WriteString("\n\n")

	b.WriteString("Your task is to provide:\n")
	b.WriteString("1. DETAILED ANALYSIS: A professional medical breakdown including clinical significance of abnormalities.\n")
	b.WriteString("   Provide a prioritized list of differential diagnoses, specifically incorporating regional epidemiology of Andhra Pradesh and the Nandyal region.\n")
	b.WriteString("   Consider the high prevalence of endemic diseases such as:\n")
	for _, d := range endemicDiseases {
		b.WriteString("   - " + d + "\n")
	}
	b.WriteString("   Include targeted recommendations for treatment or further confirmatory testing based on regional diagnostic protocols.\n\n")
	b.WriteString("2. CONCISE SUMMARY: A 1-2 sentence executive summary of the most likely diagnosis and the immediate primary action required.\n\n")
	b.WriteString("3. RECOMMENDATIONS (optional): Short, actionable follow-up steps, one per item.\n\n")
	b.WriteString("Tone: Professional, precise, and authoritative. Ensure the analysis is localized to the veterinary health landscape of South India.\n")
	return b.String()
}

// visionPrompt asks for a caption of a clinical image.
const visionPrompt = `Act as a Senior Veterinary Pathologist. Describe this clinical or laboratory image in one or two sentences suitable as a gallery caption, naming the visible lesion, organism or specimen.
Also classify it into a short category such as "Gross Pathology", "Histopathology", "Parasitology", "Microbiology", "Hematology" or "Clinical Lesion".`
