package reports

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanctioncore/internal/blob"
	"sanctioncore/internal/config"
	"sanctioncore/internal/core"
)

func sampleReport(at time.Time) core.SweepReport {
	return core.SweepReport{
		RanAt:      at,
		Candidates: 3,
		Escalated:  1,
		Skipped:    1,
		Failed:     1,
		Items: []core.SweepItem{
			{ID: "a", Outcome: core.SweepEscalated, Quantity: 15, Deadline: at.Add(48 * time.Hour)},
			{ID: "b", Outcome: core.SweepSkipped},
			{ID: "c", Outcome: core.SweepFailed, Error: "version conflict"},
		},
	}
}

func newMemoryArchive(t *testing.T) (*Archive, blob.Store) {
	t.Helper()
	store, err := blob.Open(context.Background(), config.BlobConfig{Driver: "memory"})
	require.NoError(t, err)
	return NewArchive(store, "", nil), store
}

func TestReportSweepWritesJSONAndCSV(t *testing.T) {
	ctx := context.Background()
	archive, store := newMemoryArchive(t)
	at := time.Date(2026, 5, 6, 9, 30, 0, 0, time.UTC)
	require.NoError(t, archive.ReportSweep(ctx, sampleReport(at)))

	infos, err := store.List(ctx, DefaultPrefix)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.True(t, strings.HasPrefix(infos[0].Key, "sweeps/2026/05/06/20260506T093000.000Z-"))
	assert.Equal(t, "text/csv", infos[0].ContentType)
	assert.Equal(t, "application/json", infos[1].ContentType)

	_, rc, err := store.Get(ctx, infos[0].Key)
	require.NoError(t, err)
	rows, err := csv.NewReader(rc).ReadAll()
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"a", "escalated", "15", "2026-05-08T09:30:00Z", ""}, rows[1])
	assert.Equal(t, []string{"c", "failed", "", "", "version conflict"}, rows[3])

	loaded, err := archive.Load(ctx, infos[1].Key)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Escalated)
	assert.True(t, loaded.RanAt.Equal(at))
	require.Len(t, loaded.Items, 3)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	archive, _ := newMemoryArchive(t)
	first := time.Date(2026, 5, 6, 9, 0, 0, 0, time.UTC)
	require.NoError(t, archive.ReportSweep(ctx, sampleReport(first)))
	later := sampleReport(first.Add(time.Hour))
	later.Escalated = 4
	require.NoError(t, archive.ReportSweep(ctx, later))

	entries, err := archive.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.True(t, entries[0].RanAt.Equal(first.Add(time.Hour)))
	assert.Equal(t, 4, entries[0].Escalated)
	assert.Equal(t, 1, entries[3].Escalated)
}

func TestLoadRejectsForeignKeys(t *testing.T) {
	archive, _ := newMemoryArchive(t)
	_, err := archive.Load(context.Background(), "elsewhere/x.json")
	require.ErrorIs(t, err, blob.ErrNotFound)
	_, err = archive.Load(context.Background(), "sweeps/x.csv")
	require.ErrorIs(t, err, blob.ErrNotFound)
	_, _, err = archive.Open(context.Background(), "elsewhere/x.json")
	require.ErrorIs(t, err, blob.ErrNotFound)
}

func TestArchiveOverS3(t *testing.T) {
	ctx := context.Background()
	archive := NewArchive(blob.NewMockS3ForTests(), "reports/sweeps", nil)
	at := time.Date(2026, 5, 6, 9, 0, 0, 0, time.UTC)
	require.NoError(t, archive.ReportSweep(ctx, sampleReport(at)))

	entries, err := archive.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Escalated)
	assert.True(t, entries[0].RanAt.Equal(at))

	_, rc, err := archive.Open(ctx, entries[0].Key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.NotEmpty(t, body)
}

func TestServiceSweepFeedsArchive(t *testing.T) {
	ctx := context.Background()
	archive, _ := newMemoryArchive(t)
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := core.NewInMemoryService(core.WithClock(clock), core.WithSweepReporter(archive))
	t.Cleanup(func() { _ = svc.Close() })

	_, err := svc.CreateSpecific(ctx, core.SpecificRequest{Severity: 2, TemplateIndex: 0, DeadlineDays: 1})
	require.NoError(t, err)
	now = now.Add(48 * time.Hour)

	n, err := svc.CheckAndEscalateExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := archive.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Escalated)
}
