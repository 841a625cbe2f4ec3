package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caddl-lab-desk/internal/domain"
)

func TestConsultationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewConsultationService(env.store, env.reports, quietLogger())

	report := env.saveReport(t, "Venkata Reddy", domain.BOVINE, "2024-05-21")

	first, err := svc.Create(ctx, CreateConsultationInput{ReportID: report.ID, RequestNote: " please review ", Urgency: "urgent"})
	require.NoError(t, err)
	assert.Equal(t, domain.URGENT, first.Urgency)
	assert.Equal(t, domain.SUBMITTED, first.Status)
	assert.Equal(t, "Venkata Reddy", first.FarmerName)
	assert.Equal(t, domain.BOVINE, first.Species)
	assert.Equal(t, "please review", first.RequestNote)
	assert.Equal(t, fixedNow, first.CreatedAt)

	second, err := svc.Create(ctx, CreateConsultationInput{ReportID: report.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ROUTINE, second.Urgency)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	updated, err := svc.UpdateStatus(ctx, first.ID, domain.REVIEWED)
	require.NoError(t, err)
	assert.Equal(t, domain.REVIEWED, updated.Status)

	require.NoError(t, svc.Delete(ctx, second.ID))
	list, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.REVIEWED, list[0].Status)

	assert.Contains(t, env.events.types(), EventConsultationUpdated)
}

func TestConsultationSurvivesReportDeletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewConsultationService(env.store, env.reports, quietLogger())

	report := env.saveReport(t, "Ravi", domain.OVINE, "2024-05-21")
	_, err := svc.Create(ctx, CreateConsultationInput{ReportID: report.ID})
	require.NoError(t, err)

	require.NoError(t, env.reports.Delete(ctx, report.ID))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, report.ID, list[0].ReportID)
}

func TestConsultationErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewConsultationService(env.store, env.reports, quietLogger())
	report := env.saveReport(t, "Ravi", domain.OVINE, "2024-05-21")

	_, err := svc.Create(ctx, CreateConsultationInput{ReportID: "missing"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	var ve *domain.ValidationError
	_, err = svc.Create(ctx, CreateConsultationInput{})
	assert.True(t, errors.As(err, &ve))

	_, err = svc.Create(ctx, CreateConsultationInput{ReportID: report.ID, Urgency: "whenever"})
	assert.True(t, errors.As(err, &ve))

	_, err = svc.UpdateStatus(ctx, "missing", domain.CLOSED)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = svc.UpdateStatus(ctx, "missing", "Archived")
	assert.True(t, errors.As(err, &ve))

	assert.True(t, errors.Is(svc.Delete(ctx, "missing"), domain.ErrNotFound))
}
