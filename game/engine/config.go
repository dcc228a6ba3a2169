package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Limits enforced by ValidateSimConfig
const (
	MinPeriodMs       = 1
	MaxPeriodMs       = 60000
	MaxPopulation     = 1000
	MinPaletteColors  = 1
	MaxStressDuration = 10 * time.Minute
)

// SimConfig is a simulation profile loaded from JSON
type SimConfig struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Variant      Variant        `json:"variant"`
	Bounds       Bounds         `json:"bounds"`
	StressBounds Bounds         `json:"stress_bounds"`
	JumpOffset   float64        `json:"jump_offset"`
	Palette      []string       `json:"palette"`
	Timing       Timing         `json:"timing"`
	Run          RunSettings    `json:"run"`
	Stress       StressSettings `json:"stress"`
}

// Timing holds every period and lifetime in milliseconds
type Timing struct {
	BaseTickMs       int `json:"base_tick_ms"`
	RunTickMs        int `json:"run_tick_ms"`
	ColorStepMs      int `json:"color_step_ms"`
	SizeStepMs       int `json:"size_step_ms"`
	StressStepMs     int `json:"stress_step_ms"`
	RunDurationMs    int `json:"run_duration_ms"`
	StressDurationMs int `json:"stress_duration_ms"`
}

// BaseTick is the baseline simulation clock period
func (t Timing) BaseTick() time.Duration { return ms(t.BaseTickMs) }

// RunTick is the simulation clock period while run mode is active
func (t Timing) RunTick() time.Duration { return ms(t.RunTickMs) }

// ColorStep is the color-cycle step period
func (t Timing) ColorStep() time.Duration { return ms(t.ColorStepMs) }

// SizeStep is the size-pulse step period
func (t Timing) SizeStep() time.Duration { return ms(t.SizeStepMs) }

// StressStep is the stress step period
func (t Timing) StressStep() time.Duration { return ms(t.StressStepMs) }

// RunDuration is the lifetime of a run effect
func (t Timing) RunDuration() time.Duration { return ms(t.RunDurationMs) }

// StressDuration is the lifetime of a stress effect
func (t Timing) StressDuration() time.Duration { return ms(t.StressDurationMs) }

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// RunSettings tunes the run effect
type RunSettings struct {
	Population  int     `json:"population"`
	SpawnSpread float64 `json:"spawn_spread"`
	MinSpeed    float64 `json:"min_speed"`
	MaxSpeed    float64 `json:"max_speed"`
	BoySpeed    float64 `json:"boy_speed"`
	SizeFloor   float64 `json:"size_floor"`
	SizeCeiling float64 `json:"size_ceiling"`
	SizeStep    float64 `json:"size_step"`
}

// StressSettings tunes the stress effect
type StressSettings struct {
	Population        int     `json:"population"`
	MinPopulation     int     `json:"min_population"`
	MaxPopulation     int     `json:"max_population"`
	SpawnChance       float64 `json:"spawn_chance"`
	DespawnChance     float64 `json:"despawn_chance"`
	TeleportChance    float64 `json:"teleport_chance"`
	ShapeToggleFrames int     `json:"shape_toggle_frames"`
	BaseSize          float64 `json:"base_size"`
	PulseAmplitude    float64 `json:"pulse_amplitude"`
	Jitter            float64 `json:"jitter"`
}

// DefaultSimConfig returns the built-in profile
func DefaultSimConfig() *SimConfig {
	return &SimConfig{
		Name:         "default",
		Description:  "Shared box world with run and stress effects",
		Variant:      VariantBoxes,
		Bounds:       Bounds{Min: 50, Max: 450},
		StressBounds: Bounds{Min: 10, Max: 490},
		JumpOffset:   50,
		Palette: []string{
			"red", "green", "blue", "purple", "orange",
			"yellow", "pink", "cyan", "magenta", "lime",
		},
		Timing: Timing{
			BaseTickMs:       1000,
			RunTickMs:        100,
			ColorStepMs:      100,
			SizeStepMs:       50,
			StressStepMs:     16,
			RunDurationMs:    5000,
			StressDurationMs: 10000,
		},
		Run: RunSettings{
			Population:  10,
			SpawnSpread: 100,
			MinSpeed:    4,
			MaxSpeed:    8,
			BoySpeed:    8,
			SizeFloor:   10,
			SizeCeiling: 60,
			SizeStep:    8,
		},
		Stress: StressSettings{
			Population:        100,
			MinPopulation:     50,
			MaxPopulation:     150,
			SpawnChance:       0.05,
			DespawnChance:     0.05,
			TeleportChance:    0.002,
			ShapeToggleFrames: 60,
			BaseSize:          20,
			PulseAmplitude:    10,
			Jitter:            1.5,
		},
	}
}

// ValidateSimConfig validates a simulation profile for consistency
func ValidateSimConfig(config *SimConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}

	switch config.Variant {
	case VariantBoxes, VariantBoy:
	default:
		return fmt.Errorf("config validation: variant must be %q or %q, got %q", VariantBoxes, VariantBoy, config.Variant)
	}

	if config.Bounds.Min >= config.Bounds.Max {
		return fmt.Errorf("config validation: bounds.min (%v) must be below bounds.max (%v)", config.Bounds.Min, config.Bounds.Max)
	}
	if config.StressBounds.Min >= config.StressBounds.Max {
		return fmt.Errorf("config validation: stress_bounds.min (%v) must be below stress_bounds.max (%v)",
			config.StressBounds.Min, config.StressBounds.Max)
	}
	if !config.Bounds.Contains(DefaultX) || !config.Bounds.Contains(DefaultY) {
		return fmt.Errorf("config validation: bounds must contain the default box position (%v,%v)", DefaultX, DefaultY)
	}
	if config.JumpOffset < 0 {
		return fmt.Errorf("config validation: jump_offset must not be negative, got %v", config.JumpOffset)
	}

	if len(config.Palette) < MinPaletteColors {
		return fmt.Errorf("config validation: palette must contain at least %d color", MinPaletteColors)
	}
	for i, c := range config.Palette {
		if c == "" {
			return fmt.Errorf("config validation: palette[%d] is empty", i)
		}
	}

	periods := []struct {
		name  string
		value int
	}{
		{"timing.base_tick_ms", config.Timing.BaseTickMs},
		{"timing.run_tick_ms", config.Timing.RunTickMs},
		{"timing.color_step_ms", config.Timing.ColorStepMs},
		{"timing.size_step_ms", config.Timing.SizeStepMs},
		{"timing.stress_step_ms", config.Timing.StressStepMs},
		{"timing.run_duration_ms", config.Timing.RunDurationMs},
	}
	for _, p := range periods {
		if p.value < MinPeriodMs || p.value > MaxPeriodMs {
			return fmt.Errorf("config validation: %s must be between %d and %d, got %d", p.name, MinPeriodMs, MaxPeriodMs, p.value)
		}
	}
	if config.Timing.StressDuration() <= 0 || config.Timing.StressDuration() > MaxStressDuration {
		return fmt.Errorf("config validation: timing.stress_duration_ms must be between 1 and %d, got %d",
			MaxStressDuration.Milliseconds(), config.Timing.StressDurationMs)
	}

	run := config.Run
	if run.Population < 1 || run.Population > MaxPopulation {
		return fmt.Errorf("config validation: run.population must be between 1 and %d, got %d", MaxPopulation, run.Population)
	}
	if run.MinSpeed < 0 || run.MaxSpeed < run.MinSpeed {
		return fmt.Errorf("config validation: run speeds must satisfy 0 <= min_speed <= max_speed, got %v..%v", run.MinSpeed, run.MaxSpeed)
	}
	if run.SizeFloor <= 0 || run.SizeCeiling <= run.SizeFloor {
		return fmt.Errorf("config validation: run sizes must satisfy 0 < size_floor < size_ceiling, got %v..%v", run.SizeFloor, run.SizeCeiling)
	}
	if run.SizeStep <= 0 {
		return fmt.Errorf("config validation: run.size_step must be positive, got %v", run.SizeStep)
	}

	stress := config.Stress
	if stress.MinPopulation < 1 || stress.MaxPopulation > MaxPopulation || stress.MinPopulation > stress.MaxPopulation {
		return fmt.Errorf("config validation: stress population range must satisfy 1 <= min <= max <= %d, got %d..%d",
			MaxPopulation, stress.MinPopulation, stress.MaxPopulation)
	}
	if stress.Population < stress.MinPopulation || stress.Population > stress.MaxPopulation {
		return fmt.Errorf("config validation: stress.population must be within %d..%d, got %d",
			stress.MinPopulation, stress.MaxPopulation, stress.Population)
	}
	for name, p := range map[string]float64{
		"stress.spawn_chance":    stress.SpawnChance,
		"stress.despawn_chance":  stress.DespawnChance,
		"stress.teleport_chance": stress.TeleportChance,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("config validation: %s must be a probability, got %v", name, p)
		}
	}
	if stress.ShapeToggleFrames < 1 {
		return fmt.Errorf("config validation: stress.shape_toggle_frames must be positive, got %d", stress.ShapeToggleFrames)
	}
	if stress.BaseSize <= stress.PulseAmplitude {
		return fmt.Errorf("config validation: stress.base_size (%v) must exceed stress.pulse_amplitude (%v)",
			stress.BaseSize, stress.PulseAmplitude)
	}

	return nil
}

// LoadSimConfigFile reads and validates a profile from a JSON file.
// Fields missing from the file keep their built-in defaults.
func LoadSimConfigFile(path string) (*SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultSimConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := ValidateSimConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}
