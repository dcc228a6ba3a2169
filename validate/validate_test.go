package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestValidateConfig_ValidConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fast.json", `{
		"name": "fast",
		"description": "Faster base tick",
		"timing": {"base_tick_ms": 250}
	}`)

	result := validateConfig(path)
	if !result.Valid {
		t.Fatalf("Expected valid config, but got errors: %v", result.Errors)
	}
	if result.File != "fast.json" {
		t.Errorf("Expected file name fast.json, got %s", result.File)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", result.Warnings)
	}
	if !strings.Contains(strings.Join(result.Info, "\n"), "Stress: 100 boxes (50-150)") {
		t.Errorf("Expected stress summary, got %v", result.Info)
	}
}

func TestValidateConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"invalid json", `{"name": "test", invalid json}`, "failed to parse config JSON"},
		{"unknown variant", `{"name": "x", "variant": "sprites"}`, "variant"},
		{"inverted bounds", `{"name": "x", "bounds": {"min": 400, "max": 100}}`, "bounds.min"},
		{"empty palette", `{"name": "x", "palette": []}`, "palette"},
		{"zero period", `{"name": "x", "timing": {"run_tick_ms": 0}}`, "timing.run_tick_ms"},
		{"stress range", `{"name": "x", "stress": {"population": 200}}`, "stress.population"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "x.json", tt.content)

			result := validateConfig(path)
			if result.Valid {
				t.Fatal("Expected invalid config")
			}
			if !strings.Contains(strings.Join(result.Errors, "\n"), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, result.Errors)
			}
		})
	}
}

func TestValidateConfig_MissingFile(t *testing.T) {
	result := validateConfig("/non/existent/file.json")
	if result.Valid {
		t.Error("Expected invalid result for missing file")
	}
	if !strings.Contains(result.Errors[0], "failed to read config file") {
		t.Errorf("Expected read error, got %v", result.Errors)
	}
}

func TestValidateConfig_Warnings(t *testing.T) {
	path := writeFile(t, t.TempDir(), "loud.json", `{
		"name": "party",
		"palette": ["red", "#00ff00", "#zzz", "blurple"],
		"timing": {"stress_step_ms": 8}
	}`)

	result := validateConfig(path)
	if !result.Valid {
		t.Fatalf("Warnings must not invalidate the profile: %v", result.Errors)
	}

	warnings := strings.Join(result.Warnings, "\n")
	for _, want := range []string{`name "party"`, `palette[2] "#zzz"`, `palette[3] "blurple"`, "stress_step_ms 8"} {
		if !strings.Contains(warnings, want) {
			t.Errorf("Expected warning containing %q, got %v", want, result.Warnings)
		}
	}
	if strings.Contains(warnings, "#00ff00") {
		t.Errorf("Hex color should be accepted, got %v", result.Warnings)
	}
}

func TestIsColor(t *testing.T) {
	tests := []struct {
		color string
		want  bool
	}{
		{"red", true},
		{"Magenta", true},
		{"#ff8800", true},
		{"#FFF", true},
		{"#12345", false},
		{"notacolor", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isColor(tt.color); got != tt.want {
			t.Errorf("isColor(%q) = %v, want %v", tt.color, got, tt.want)
		}
	}
}

func TestValidateFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", `{"name": "good"}`)
	bad := writeFile(t, dir, "bad.json", `{"name": "bad", "variant": "nope"}`)

	var out bytes.Buffer
	if !validateFiles(&out, []string{good}) {
		t.Errorf("Expected all valid, output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "All profiles are valid") {
		t.Errorf("Expected success summary, got:\n%s", out.String())
	}

	out.Reset()
	if validateFiles(&out, []string{good, bad}) {
		t.Error("Expected failure with an invalid profile")
	}
	if !strings.Contains(out.String(), "❌ INVALID") {
		t.Errorf("Expected invalid marker, got:\n%s", out.String())
	}
}

func TestCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.json", `{"name": "default"}`)
	writeFile(t, dir, "boy.json", `{"name": "boy", "variant": "boy"}`)

	t.Run("scans directory", func(t *testing.T) {
		var out bytes.Buffer
		if err := newCommand(&out).Run(context.Background(), []string{"validate", "--dir", dir}); err != nil {
			t.Fatalf("Expected success, got %v\n%s", err, out.String())
		}
		for _, name := range []string{"default.json", "boy.json"} {
			if !strings.Contains(out.String(), name) {
				t.Errorf("Expected %s in report", name)
			}
		}
	})

	t.Run("invalid file argument", func(t *testing.T) {
		bad := writeFile(t, dir, "broken.json", `{`)
		var out bytes.Buffer
		err := newCommand(&out).Run(context.Background(), []string{"validate", bad})
		if !errors.Is(err, errInvalidProfiles) {
			t.Errorf("Expected errInvalidProfiles, got %v", err)
		}
	})

	t.Run("empty directory", func(t *testing.T) {
		var out bytes.Buffer
		if err := newCommand(&out).Run(context.Background(), []string{"validate", "--dir", t.TempDir()}); err == nil {
			t.Error("Expected error for a directory without profiles")
		}
	})
}

func TestRepositoryProfiles(t *testing.T) {
	files, _ := filepath.Glob(filepath.Join("..", "configs", "*.json"))
	if len(files) == 0 {
		t.Skip("Skipping test - configs directory not found")
	}

	for _, file := range files {
		if result := validateConfig(file); !result.Valid {
			t.Errorf("%s: %v", result.File, result.Errors)
		}
	}
}
