package service

import (
	"sort"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/catalog"
	"github.com/caddl-lab-desk/internal/domain"
	"github.com/caddl-lab-desk/pkg/refrange"
)

const defaultRangeCacheSize = 512

// AnnotatedEntry is a test entry with its render-time abnormality flag.
type AnnotatedEntry struct {
	domain.TestEntry
	Abnormal bool `json:"abnormal"`
}

// AnnotatedSection is one non-empty category of a report, ready to print.
type AnnotatedSection struct {
	Key     domain.CategoryKey `json:"key"`
	Label   string             `json:"label"`
	Entries []AnnotatedEntry   `json:"entries"`
}

// AnnotatedReport is a report with flags computed for every entry. Flags are
// never written back to storage.
type AnnotatedReport struct {
	Report        domain.DiagnosticReport `json:"report"`
	DisplayID     string                  `json:"displayId"`
	Remarks       string                  `json:"remarks"`
	Sections      []AnnotatedSection      `json:"sections"`
	AbnormalCount int                     `json:"abnormalCount"`
}

// ClassifierStats reports range cache usage.
type ClassifierStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// Classifier flags abnormal results. Parsed reference ranges are cached
// since a catalog has few distinct ranges.
type Classifier struct {
	ranges *lru.Cache[string, refrange.Range]
	logger *logrus.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewClassifier creates a classifier with a range cache of the given size.
// A size of zero or less uses the default.
func NewClassifier(cacheSize int, logger *logrus.Logger) *Classifier {
	if cacheSize <= 0 {
		cacheSize = defaultRangeCacheSize
	}
	cache, err := lru.New[string, refrange.Range](cacheSize)
	if err != nil {
		// only fails for non-positive sizes
		panic(err)
	}
	return &Classifier{ranges: cache, logger: logger}
}

// IsAbnormal reports whether value violates referenceRange.
func (c *Classifier) IsAbnormal(value, referenceRange string) bool {
	return c.parse(referenceRange).IsAbnormal(value)
}

// Kind returns the parsed shape of a reference range.
func (c *Classifier) Kind(referenceRange string) refrange.Kind {
	return c.parse(referenceRange).Kind
}

func (c *Classifier) parse(referenceRange string) refrange.Range {
	if r, ok := c.ranges.Get(referenceRange); ok {
		c.hits.Add(1)
		return r
	}
	c.misses.Add(1)
	r := refrange.Parse(referenceRange)
	c.ranges.Add(referenceRange, r)
	return r
}

// Stats returns cache statistics.
func (c *Classifier) Stats() ClassifierStats {
	return ClassifierStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.ranges.Len(),
	}
}

// Annotate flags every entry of the report. Sections follow catalog order;
// categories unknown to the catalog come last in key order. Empty
// categories are omitted.
func (c *Classifier) Annotate(report domain.DiagnosticReport, cat *catalog.Catalog) AnnotatedReport {
	out := AnnotatedReport{
		Report:    report,
		DisplayID: report.DisplayID(),
		Remarks:   report.Remarks(),
		Sections:  []AnnotatedSection{},
	}

	keys := cat.Keys()
	var extra []domain.CategoryKey
	for k := range report.CategorizedResults {
		if !cat.HasCategory(k) {
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	keys = append(keys, extra...)

	for _, key := range keys {
		entries := report.CategorizedResults[key]
		if len(entries) == 0 {
			continue
		}
		section := AnnotatedSection{
			Key:     key,
			Label:   cat.Label(key),
			Entries: make([]AnnotatedEntry, len(entries)),
		}
		for i, e := range entries {
			abnormal := c.IsAbnormal(e.ResultValue, e.NormalRange)
			if abnormal {
				out.AbnormalCount++
			}
			section.Entries[i] = AnnotatedEntry{TestEntry: e, Abnormal: abnormal}
		}
		out.Sections = append(out.Sections, section)
	}

	if out.AbnormalCount > 0 {
		c.logger.WithFields(logrus.Fields{
			"report_id": report.ID,
			"abnormal":  out.AbnormalCount,
		}).Debug("Report annotated")
	}
	return out
}
