package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate clears the environment the configuration reads and returns an output directory
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("MEDINSIGHT_GEMINI_API_KEY", "")
	t.Setenv("MEDINSIGHT_SERVER_ENVIRONMENT", "development")
	t.Setenv("MEDINSIGHT_REPORT_OUTPUT_DIR", "")
	return t.TempDir()
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, cliName, cmd.Use)

	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"render", "analyze", "scan"})
}

func TestRenderCmd(t *testing.T) {
	dir := isolate(t)
	input := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(input, []byte(`{"patient_summary":"Stable","allergies":["penicillin"]}`), 0o644))

	out, _, err := run(t, "", "render", input, "--output-dir", dir, "-o", "jane.pdf", "--title", "Jane Doe")
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.Equal(t, filepath.Join(dir, "jane.pdf"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRenderCmd_Stdin(t *testing.T) {
	dir := isolate(t)

	out, _, err := run(t, `{"patient_summary":"Stable"}`, "render", "-", "--output-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "medical_report_")
	assert.FileExists(t, strings.TrimSpace(out))
}

func TestRenderCmd_RejectsNonObject(t *testing.T) {
	dir := isolate(t)

	_, _, err := run(t, `["a","b"]`, "render", "-", "--output-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON object")

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestAnalyzeCmd_FallsBackWithoutModel(t *testing.T) {
	isolate(t)

	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	doc.AddPage()
	doc.Cell(0, 14, "Hemoglobin 13.5 g/dL")
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))

	input := filepath.Join(t.TempDir(), "labs.pdf")
	require.NoError(t, os.WriteFile(input, buf.Bytes(), 0o644))

	out, _, err := run(t, "", "analyze", input)
	require.NoError(t, err)
	assert.Contains(t, out, `"fallback": true`)
	assert.Contains(t, out, `"filename": "labs.pdf"`)
}

func TestAnalyzeCmd_UnsupportedContent(t *testing.T) {
	isolate(t)
	input := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(input, []byte("plain text"), 0o644))

	_, _, err := run(t, "", "analyze", input)
	assert.Error(t, err)
}

func TestScanCmd_RequiresAPIKey(t *testing.T) {
	isolate(t)

	_, _, err := run(t, `{"name":"Jane"}`, "scan", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}
