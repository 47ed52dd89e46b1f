package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanctioncore/internal/core"
	"sanctioncore/internal/infra/persistence/sqlite"
	"sanctioncore/pkg/domain"
)

type harness struct {
	vars map[string]string
	dir  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	return &harness{
		dir: dir,
		vars: map[string]string{
			"SANCTIONCORE_STORAGE_DRIVER": "sqlite",
			"SANCTIONCORE_SQLITE_PATH":    filepath.Join(dir, "sanctions.db"),
			"SANCTIONCORE_BLOB_DRIVER":    "fs",
			"SANCTIONCORE_BLOB_FS_ROOT":   filepath.Join(dir, "reports"),
			"SANCTIONCORE_LOG_LEVEL":      "error",
		},
	}
}

func (h *harness) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, func(k string) string { return h.vars[k] })
	return code, stdout.String(), stderr.String()
}

func decodeOut[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestAssignCompleteAndConflict(t *testing.T) {
	h := newHarness(t)
	code, out, stderr := h.run(t, "assign", "--severity", "2", "--template", "0", "--quantity", "25", "--reason", "late")
	require.Equal(t, exitOK, code, stderr)
	created := decodeOut[domain.Sanction](t, out)
	assert.Equal(t, 25, created.Quantity)
	assert.Equal(t, "late", created.Reason)

	code, out, _ = h.run(t, "complete", created.ID)
	require.Equal(t, exitOK, code)
	assert.Equal(t, domain.StatusDone, decodeOut[domain.Sanction](t, out).Status)

	code, _, stderr = h.run(t, "complete", created.ID)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "Error:")
}

func TestCreateListAndSummary(t *testing.T) {
	h := newHarness(t)
	for _, sev := range []string{"1", "3", "5"} {
		code, _, stderr := h.run(t, "create", "--severity", sev, "--deadline-days", "3")
		require.Equal(t, exitOK, code, stderr)
	}

	code, out, _ := h.run(t, "list", "--status", "open", "--limit", "2")
	require.Equal(t, exitOK, code)
	page := decodeOut[domain.SanctionPage](t, out)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 2)

	code, out, _ = h.run(t, "escalate", page.Items[0].ID)
	require.Equal(t, exitOK, code)
	assert.Equal(t, 1, decodeOut[domain.Sanction](t, out).EscalationCount)

	code, out, _ = h.run(t, "complete-all")
	require.Equal(t, exitOK, code)
	assert.Equal(t, 3, decodeOut[map[string]int](t, out)["count"])

	code, out, _ = h.run(t, "summary")
	require.Equal(t, exitOK, code)
	sum := decodeOut[domain.Summary](t, out)
	assert.Equal(t, 3, sum.ByStatus[domain.StatusDone])
}

func TestSweepArchivesReport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	store, err := sqlite.NewStore(ctx, h.vars["SANCTIONCORE_SQLITE_PATH"])
	require.NoError(t, err)
	past := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	_, err = store.CreateSanction(ctx, domain.Sanction{
		ID:               "overdue-1",
		Title:            "Push-up set",
		Severity:         2,
		Quantity:         10,
		Unit:             domain.UnitTimes,
		Category:         domain.CategoryFitness,
		Status:           domain.StatusOpen,
		Deadline:         past,
		EscalationFactor: 5,
		CreatedAt:        past.Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	code, out, stderr := h.run(t, "sweep")
	require.Equal(t, exitOK, code, stderr)
	report := decodeOut[core.SweepReport](t, out)
	assert.Equal(t, 1, report.Escalated)
	require.Len(t, report.Items, 1)
	assert.Equal(t, 15, report.Items[0].Quantity)

	files, err := filepath.Glob(filepath.Join(h.dir, "reports", "sweeps", "*", "*", "*", "*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	code, out, _ = h.run(t, "sweep")
	require.Equal(t, exitOK, code)
	assert.Equal(t, 0, decodeOut[core.SweepReport](t, out).Candidates)
}

func TestSweepWithoutArchive(t *testing.T) {
	h := newHarness(t)
	h.vars["SANCTIONCORE_BLOB_DRIVER"] = "none"
	code, _, stderr := h.run(t, "sweep")
	require.Equal(t, exitOK, code, stderr)
}

func TestTemplates(t *testing.T) {
	h := newHarness(t)
	code, out, _ := h.run(t, "templates", "--severity", "3")
	require.Equal(t, exitOK, code)
	rows := decodeOut[[]templateRow](t, out)
	require.Len(t, rows, 4)
	assert.Equal(t, "Phone lockdown", rows[1].Title)

	code, out, _ = h.run(t, "templates", "--yaml")
	require.Equal(t, exitOK, code)
	path := filepath.Join(h.dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o600))

	h.vars["SANCTIONCORE_CATALOG_PATH"] = path
	code, _, stderr := h.run(t, "assign", "--severity", "5", "--template", "2")
	assert.Equal(t, exitOK, code, stderr)
}

func TestExitCodes(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name string
		args []string
		code int
	}{
		{"invalid severity", []string{"create", "--severity", "7"}, exitUsage},
		{"missing severity", []string{"create"}, exitUsage},
		{"bad flag", []string{"list", "--limit", "many"}, exitUsage},
		{"bad deadline filter", []string{"list", "--deadline-before", "soon"}, exitUsage},
		{"unknown id", []string{"expire", "nope"}, exitUsage},
		{"missing argument", []string{"complete"}, exitUsage},
		{"negative offset", []string{"list", "--offset", "-1"}, exitUsage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, _ := h.run(t, tc.args...)
			assert.Equal(t, tc.code, code)
		})
	}

	h.vars["SANCTIONCORE_STORAGE_DRIVER"] = "cassandra"
	code, _, stderr := h.run(t, "summary")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "unknown storage driver")

	h.vars["SANCTIONCORE_STORAGE_DRIVER"] = "redis"
	h.vars["SANCTIONCORE_REDIS_ADDR"] = "127.0.0.1:1"
	code, _, _ = h.run(t, "summary")
	assert.Equal(t, exitFailure, code)
}

func TestMainExitsWithMappedCode(t *testing.T) {
	var got int
	prev := exitFunc
	exitFunc = func(code int) { got = code }
	t.Cleanup(func() { exitFunc = prev })

	args := os.Args
	os.Args = []string{"sanctionctl", "create", "--severity", "9"}
	t.Cleanup(func() { os.Args = args })
	t.Setenv("SANCTIONCORE_STORAGE_DRIVER", "memory")
	t.Setenv("SANCTIONCORE_LOG_LEVEL", "error")
	main()
	assert.Equal(t, exitUsage, got)
}
