package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/goleak"

	"github.com/caddl-lab-desk/internal/catalog"
	"github.com/caddl-lab-desk/internal/domain"
	"github.com/caddl-lab-desk/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

var fixedNow = time.Date(2024, 5, 25, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	store   *store.Collections
	blobs   *store.MemoryStore
	reports *ReportService
	events  *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := quietLogger()
	blobs := store.NewMemoryStore()
	collections := store.NewCollections(blobs, logger)
	events := &recordingPublisher{}
	reports := NewReportService(collections, catalog.NewHolder(catalog.Default()), NewClassifier(0, logger), logger,
		WithEventPublisher(events),
		WithClock(func() time.Time { return fixedNow }),
	)
	return &testEnv{store: collections, blobs: blobs, reports: reports, events: events}
}

func (e *testEnv) saveReport(t *testing.T, farmer string, species domain.Species, date string) domain.DiagnosticReport {
	t.Helper()
	draft := e.reports.NewDraft()
	draft.FarmerName = farmer
	draft.Species = species
	draft.DateOfReport = date
	saved, err := e.reports.Save(context.Background(), draft)
	if err != nil {
		t.Fatalf("save %s: %v", farmer, err)
	}
	return saved
}
