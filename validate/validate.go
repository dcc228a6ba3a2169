// Command validate checks simulation profile JSON files. It reports, per file:
//   - JSON structure and every rule enforced by engine.ValidateSimConfig
//   - palette colors a browser would not understand
//   - a profile name that differs from its file name
//   - stress steps faster than the 60 updates/s viewers are expected to render
//
// With no arguments it scans the directory given by --dir (default configs).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/boxcast/game/engine"
)

var errInvalidProfiles = errors.New("some profiles are invalid")

// minStressStepMs is the fastest stress step that stays at or below 60 updates/s
const minStressStepMs = 16

// cssColors are the named colors profiles commonly use
var cssColors = map[string]bool{
	"black": true, "white": true, "gray": true, "grey": true, "silver": true,
	"red": true, "maroon": true, "orange": true, "yellow": true, "olive": true,
	"lime": true, "green": true, "teal": true, "cyan": true, "aqua": true,
	"blue": true, "navy": true, "purple": true, "magenta": true, "fuchsia": true,
	"pink": true, "brown": true, "gold": true, "indigo": true, "violet": true,
	"coral": true, "salmon": true, "turquoise": true, "crimson": true, "orchid": true,
}

// ValidationResult captures the outcome of validating a single file.
// Errors make the file invalid; Warnings and Info do not.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
	Info     []string
}

// validateConfig loads and validates a single profile file
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	cfg, err := engine.LoadSimConfigFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	if want := strings.TrimSuffix(result.File, ".json"); cfg.Name != want {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("name %q differs from file name; the profile loads as %q", cfg.Name, want))
	}

	for i, c := range cfg.Palette {
		if !isColor(c) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("palette[%d] %q is not a known color", i, c))
		}
	}

	if cfg.Variant == engine.VariantBoxes && cfg.Timing.StressStepMs < minStressStepMs {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("timing.stress_step_ms %d exceeds 60 updates/s", cfg.Timing.StressStepMs))
	}

	result.Info = append(result.Info,
		fmt.Sprintf("Variant: %s", cfg.Variant),
		fmt.Sprintf("Bounds: [%v, %v], jump %v", cfg.Bounds.Min, cfg.Bounds.Max, cfg.JumpOffset),
		fmt.Sprintf("Run: %d boxes for %dms", cfg.Run.Population, cfg.Timing.RunDurationMs),
	)
	if cfg.Variant == engine.VariantBoxes {
		result.Info = append(result.Info, fmt.Sprintf("Stress: %d boxes (%d-%d) for %dms",
			cfg.Stress.Population, cfg.Stress.MinPopulation, cfg.Stress.MaxPopulation, cfg.Timing.StressDurationMs))
	}

	return result
}

// isColor reports whether c is a hex color or a common CSS color name
func isColor(c string) bool {
	if strings.HasPrefix(c, "#") {
		if len(c) != 4 && len(c) != 7 {
			return false
		}
		_, err := colorful.Hex(c)
		return err == nil
	}
	return cssColors[strings.ToLower(c)]
}

// validateFiles validates every file and prints a report to w.
// It returns false if any file is invalid.
func validateFiles(w io.Writer, files []string) bool {
	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)
		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Info {
				fmt.Fprintln(w, "  "+info)
			}
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Fprintln(w, "  ❌ "+err)
			}
		}
		for _, warning := range result.Warnings {
			fmt.Fprintln(w, "  ⚠️  "+warning)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All profiles are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some profiles have errors")
	}
	return allValid
}

func newCommand(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "validate simulation profile JSON files",
		ArgsUsage: "[file.json ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Value:   "configs",
				Usage:   "Directory scanned when no files are given",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				found, err := filepath.Glob(filepath.Join(cmd.String("dir"), "*.json"))
				if err != nil {
					return fmt.Errorf("error finding profile files: %w", err)
				}
				files = found
			}
			if len(files) == 0 {
				return fmt.Errorf("no profile files found in %s", cmd.String("dir"))
			}

			if !validateFiles(w, files) {
				return errInvalidProfiles
			}
			return nil
		},
	}
}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
