package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/timesheet-engine/export"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute(), out.String())
	return out.String()
}

func TestCLI_UserGenerateExport(t *testing.T) {
	// GIVEN: a file database and a stub holiday API
	// WHEN: a user is created, a year generated and exported
	// THEN: every day of 2025 is filled and the workbook lists them

	holidays := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Neujahrstag":{"datum":"2025-01-01","hinweis":""}}`))
	}))
	defer holidays.Close()
	t.Setenv("TIMESHEET_HOLIDAYS_BASE_URL", holidays.URL+"/")

	dir := t.TempDir()
	db := filepath.Join(dir, "timesheet.db")

	out := run(t, "--db", db, "users", "set", "--id", "u-1", "--weekly-hours", "39", "--state", "BY")
	assert.Contains(t, out, "7.8 hours per day")

	out = run(t, "--db", db, "generate", "year", "--user", "u-1", "--year", "2025")
	assert.Contains(t, out, "365 created, 0 skipped")

	out = run(t, "--db", db, "generate", "year", "--user", "u-1", "--year", "2025")
	assert.Contains(t, out, "0 created, 365 skipped")

	xlsx := filepath.Join(dir, "out.xlsx")
	run(t, "--db", db, "export", "--user", "u-1", "--year", "2025", "--output", xlsx)

	file, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer file.Close()
	rows, err := file.GetRows(export.EntriesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 366)
	assert.Equal(t, "holiday", rows[1][1])
}

func TestCLI_StatusesImport(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "timesheet.db")
	file := filepath.Join(dir, "statuses.json")
	require.NoError(t, os.WriteFile(file, []byte(`[
		{"code": "open", "allow_done_action": true},
		{"code": "processed"},
		{"code": "done", "allow_release_action": true, "transition_target": "released"},
		{"code": "released"}
	]`), 0o600))

	run(t, "--db", db, "statuses", "import", "--file", file)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"code":"open"}]`), 0o600))
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--db", db, "statuses", "import", "--file", bad})
	assert.Error(t, root.Execute())
}

func TestCLI_ReferencesImport(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "refs.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"kind":"project","code":"P-1"},{"kind":"activity","code":"DEV"}]`), 0o600))

	out := run(t, "--db", filepath.Join(dir, "timesheet.db"), "references", "import", "--file", file)
	assert.Contains(t, out, "imported 2 reference codes")
}
