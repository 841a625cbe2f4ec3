package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/caddl-lab-desk/internal/database"
	"github.com/caddl-lab-desk/internal/domain"
)

// generateTestPassword creates a random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestRepo(t *testing.T) *ReportRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    testPassword,
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
		SSLMode:     "disable",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	runner, err := database.NewMigrationRunner(config.URL(), "../../migrations", logger)
	require.NoError(t, err)
	require.NoError(t, runner.Up(ctx))
	t.Cleanup(func() { runner.Close() })

	db, err := database.NewConnection(ctx, config, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return NewReportRepository(db.Pool, logger)
}

var testKeys = []domain.CategoryKey{"clinicalPathology", "parasitology"}

func newReport(farmer string, species domain.Species) domain.DiagnosticReport {
	r := domain.NewDiagnosticReport(testKeys, time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC))
	r.FarmerName = farmer
	r.Species = species
	return r
}

func TestReportRepository_AppendLoadDelete(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	empty, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	a := newReport("A", domain.BOVINE)
	a.CategorizedResults["clinicalPathology"] = []domain.TestEntry{
		{TestName: "Hemoglobin (Hb)", ResultValue: "10.5", Unit: "g/dL", NormalRange: "8.0 - 15.0"},
	}
	b := newReport("B", domain.CAPRINE)

	require.NoError(t, repo.AppendOne(ctx, a))
	require.NoError(t, repo.AppendOne(ctx, b))

	reports, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, b.ID, reports[0].ID)
	assert.Equal(t, a, reports[1])

	counts, err := repo.CountBySpecies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.CAPRINE])

	require.NoError(t, repo.DeleteByID(ctx, a.ID))
	reports, err = repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, b.ID, reports[0].ID)

	err = repo.DeleteByID(ctx, a.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestReportRepository_SaveAllKeepsOrder(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	list := []domain.DiagnosticReport{newReport("1", domain.BOVINE), newReport("2", domain.OVINE), newReport("3", domain.AVIAN)}
	require.NoError(t, repo.SaveAll(ctx, list))

	reports, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	for i := range list {
		assert.Equal(t, list[i].ID, reports[i].ID)
	}

	require.NoError(t, repo.SaveAll(ctx, nil))
	reports, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestReportRepository_SeedOnce(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seed := []domain.DiagnosticReport{newReport("Seed", domain.BOVINE)}

	wrote, err := repo.SeedIfAbsent(ctx, seed)
	require.NoError(t, err)
	assert.True(t, wrote)

	require.NoError(t, repo.SaveAll(ctx, nil))
	wrote, err = repo.SeedIfAbsent(ctx, seed)
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestReportRepository_ConsultationsAndGallery(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	requests := []domain.ConsultationRequest{
		{ID: "c2", ReportID: "gone", Status: domain.SUBMITTED, Urgency: domain.URGENT, CreatedAt: time.Date(2024, 5, 23, 0, 0, 0, 0, time.UTC)},
		{ID: "c1", ReportID: "r1", Status: domain.REVIEWED, Urgency: domain.ROUTINE, CreatedAt: time.Date(2024, 5, 22, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, repo.SaveConsultations(ctx, requests))
	got, err := repo.LoadConsultations(ctx)
	require.NoError(t, err)
	assert.Equal(t, requests, got)

	items := []domain.GalleryItem{{ID: "g1", URL: "data:image/png;base64,AA==", Caption: "Smear"}}
	require.NoError(t, repo.SaveGallery(ctx, items))
	gallery, err := repo.LoadGallery(ctx)
	require.NoError(t, err)
	assert.Equal(t, items, gallery)
}
