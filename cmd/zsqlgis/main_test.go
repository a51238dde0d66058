package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Tqy43/ZSQL-gis/internal/adapters/project"
	"github.com/Tqy43/ZSQL-gis/internal/config"
)

func TestImportAndQueryCommands(t *testing.T) {
	t.Setenv("ZSQLGIS_METRICS_ENABLED", "false")
	dir := t.TempDir()
	src := filepath.Join(dir, "cities.csv")
	if err := os.WriteFile(src, []byte("name,lon,lat\nBeijing,116.4,39.9\nA,200,50\nShanghai,121.5,31.2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")
	projectPath := filepath.Join(dir, "session.yaml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"import", src, "--out-dir", outDir, "--save", projectPath, "--log-level", "error"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("import error = %v", err)
	}
	if !strings.Contains(out.String(), "cities") {
		t.Errorf("import output = %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(outDir, "cities.geojson")); err != nil {
		t.Errorf("export missing: %v", err)
	}

	out.Reset()
	rootCmd.SetArgs([]string{"query", "--project", projectPath, "--bbox", "115,39,117,41", "--log-level", "error"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("query error = %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Beijing") || strings.Contains(got, "Shanghai") {
		t.Errorf("query output = %q", got)
	}
}

func TestProjectNewCommand(t *testing.T) {
	t.Setenv("ZSQLGIS_METRICS_ENABLED", "false")
	dir := t.TempDir()
	src := filepath.Join(dir, "cities.csv")
	if err := os.WriteFile(src, []byte("name,lon,lat\nBeijing,116.4,39.9\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	projectPath := filepath.Join(dir, "session.yaml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"import", src, "--save", projectPath, "--log-level", "error"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("import error = %v", err)
	}

	rootCmd.SetArgs([]string{"project", "new", "--project", projectPath, "--log-level", "error"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("project new error = %v", err)
	}
	if !strings.Contains(out.String(), "new project "+projectPath) {
		t.Errorf("output = %q", out.String())
	}

	layers, err := project.Open(projectPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(layers) != 0 {
		t.Errorf("layers after project new = %d, want 0", len(layers))
	}
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("log output = %q", buf.String())
	}
}
