package engine

import (
	"math"
	"slices"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	stressSaturation = 0.8
	stressValue      = 0.95
	hueStepPerFrame  = 2.0
	noiseScale       = 0.05
	noiseIDScale     = 0.37
)

// NewStressWorld replaces the world with cfg.Stress.Population fresh stress boxes
func NewStressWorld(cfg *SimConfig, rng Rand) World {
	pop := cfg.Stress.Population
	w := World{Boxes: make([]Box, 0, pop), NextID: 1}
	for i := 0; i < pop; i++ {
		w.Boxes = append(w.Boxes, newStressBox(w.NextID, cfg, rng))
		w.NextID++
	}
	return w
}

func newStressBox(id int, cfg *SimConfig, rng Rand) Box {
	bounds := cfg.StressBounds
	shape := ShapeSquare
	if rng.Float64() < 0.5 {
		shape = ShapeCircle
	}
	return Box{
		X:     randRange(rng, bounds.Min, bounds.Max),
		Y:     randRange(rng, bounds.Min, bounds.Max),
		Speed: randRange(rng, 1, 4),
		Color: hueColor(rng.Float64() * 360),
		Size:  cfg.Stress.BaseSize,
		StressAttrs: &StressAttrs{
			ID:         id,
			Rotation:   rng.Float64() * 360,
			Opacity:    1,
			Shape:      shape,
			PulseRate:  randRange(rng, 0.05, 0.2),
			WobbleFreq: randRange(rng, 0.02, 0.1),
			Phase:      rng.Float64() * 2 * math.Pi,
		},
	}
}

func hueColor(hue float64) string {
	return colorful.Hsv(wrapDegrees(hue), stressSaturation, stressValue).Hex()
}

// StressStep computes the next stress frame from w without modifying it.
//
// Each box oscillates around its path using its phase and wobble frequency
// plus a coherent noise jitter, takes a hue keyed by frame and index, pulses
// its size, spins, fades, periodically toggles shape and occasionally
// teleports. Afterwards at most one box is inserted and at most one removed,
// keeping the population within [MinPopulation, MaxPopulation]. An empty
// world is returned as-is.
func StressStep(w World, frame uint64, cfg *SimConfig, rng Rand, noise Noise) World {
	if len(w.Boxes) == 0 {
		return w
	}

	s := cfg.Stress
	bounds := cfg.StressBounds
	f := float64(frame)
	n := float64(len(w.Boxes))

	next := World{Boxes: make([]Box, 0, len(w.Boxes)+1), NextID: w.NextID}
	for i, src := range w.Boxes {
		b := src.Clone()
		if b.StressAttrs == nil {
			b.StressAttrs = &StressAttrs{
				ID:         next.NextID,
				Opacity:    1,
				Shape:      ShapeSquare,
				PulseRate:  0.1,
				WobbleFreq: 0.05,
			}
			next.NextID++
		}
		a := b.StressAttrs

		angle := f*a.WobbleFreq + a.Phase
		dx := math.Cos(angle) * b.Speed
		dy := math.Sin(angle*1.3) * b.Speed
		if noise != nil {
			id := float64(a.ID) * noiseIDScale
			dx += noise.Eval2(id, f*noiseScale) * s.Jitter
			dy += noise.Eval2(f*noiseScale, id) * s.Jitter
		}
		b.X = bounds.Clamp(b.X + dx)
		b.Y = bounds.Clamp(b.Y + dy)

		b.Color = hueColor(f*hueStepPerFrame + float64(i)*360/n)
		b.Size = s.BaseSize + s.PulseAmplitude*math.Sin(f*a.PulseRate+a.Phase)
		a.Rotation = wrapDegrees(a.Rotation + b.Speed*2)
		a.Opacity = 0.65 + 0.35*math.Sin(f*a.PulseRate*0.5+a.Phase)

		if (frame+uint64(a.ID))%uint64(s.ShapeToggleFrames) == 0 {
			if a.Shape == ShapeSquare {
				a.Shape = ShapeCircle
			} else {
				a.Shape = ShapeSquare
			}
		}

		if rng.Float64() < s.TeleportChance {
			b.X = randRange(rng, bounds.Min, bounds.Max)
			b.Y = randRange(rng, bounds.Min, bounds.Max)
		}

		next.Boxes = append(next.Boxes, b)
	}

	if len(next.Boxes) < s.MaxPopulation && rng.Float64() < s.SpawnChance {
		next.Boxes = append(next.Boxes, newStressBox(next.NextID, cfg, rng))
		next.NextID++
	}
	if len(next.Boxes) > s.MinPopulation && rng.Float64() < s.DespawnChance {
		idx := rng.IntN(len(next.Boxes))
		next.Boxes = slices.Delete(next.Boxes, idx, idx+1)
	}

	return next
}
