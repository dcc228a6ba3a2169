package engine

import (
	"strings"
	"testing"

	"github.com/ojrac/opensimplex-go"
)

func TestNewStressWorld(t *testing.T) {
	cfg := DefaultSimConfig()
	world := NewStressWorld(cfg, newTestRand())

	if world.Len() != 100 {
		t.Fatalf("Expected 100 stress boxes, got %d", world.Len())
	}

	seen := make(map[int]bool)
	for i, b := range world.Boxes {
		if b.StressAttrs == nil {
			t.Fatalf("Box %d has no stress fields", i)
		}
		if seen[b.ID] {
			t.Errorf("Duplicate stress id %d", b.ID)
		}
		seen[b.ID] = true
		if b.Shape != ShapeSquare && b.Shape != ShapeCircle {
			t.Errorf("Box %d: unexpected shape %q", i, b.Shape)
		}
	}
	if !InBounds(world, cfg.StressBounds) {
		t.Error("Stress boxes must start inside the stress bounds")
	}
	if world.NextID != 101 {
		t.Errorf("Expected next id 101, got %d", world.NextID)
	}
}

func TestStressStep_Invariants(t *testing.T) {
	cfg := DefaultSimConfig()
	rng := newTestRand()
	noise := opensimplex.New(7)

	world := NewStressWorld(cfg, rng)
	for frame := uint64(1); frame <= 2000; frame++ {
		world = StressStep(world, frame, cfg, rng, noise)

		if world.Len() < cfg.Stress.MinPopulation || world.Len() > cfg.Stress.MaxPopulation {
			t.Fatalf("Frame %d: population %d outside [%d,%d]", frame, world.Len(),
				cfg.Stress.MinPopulation, cfg.Stress.MaxPopulation)
		}
		if !InBounds(world, cfg.StressBounds) {
			t.Fatalf("Frame %d: box left the stress bounds", frame)
		}
		for _, b := range world.Boxes {
			if b.Opacity < 0.3 || b.Opacity > 1 {
				t.Fatalf("Frame %d: opacity %v out of range", frame, b.Opacity)
			}
			if b.Rotation < 0 || b.Rotation >= 360 {
				t.Fatalf("Frame %d: rotation %v out of range", frame, b.Rotation)
			}
			if b.Size <= 0 {
				t.Fatalf("Frame %d: non-positive size %v", frame, b.Size)
			}
			if !strings.HasPrefix(b.Color, "#") {
				t.Fatalf("Frame %d: expected hex color, got %q", frame, b.Color)
			}
		}
	}
}

func TestStressStep_DoesNotModifyInput(t *testing.T) {
	cfg := DefaultSimConfig()
	rng := newTestRand()

	world := NewStressWorld(cfg, rng)
	before := world.Clone()
	_ = StressStep(world, 1, cfg, rng, nil)

	if world.Len() != before.Len() {
		t.Fatal("StressStep changed the input population")
	}
	for i := range world.Boxes {
		if world.Boxes[i].X != before.Boxes[i].X || world.Boxes[i].Rotation != before.Boxes[i].Rotation {
			t.Fatalf("StressStep modified input box %d", i)
		}
	}
}

func TestStressStep_EmptyWorldIsNoOp(t *testing.T) {
	next := StressStep(World{}, 5, DefaultSimConfig(), newTestRand(), nil)
	if next.Len() != 0 {
		t.Errorf("Expected empty world to stay empty, got %d boxes", next.Len())
	}
}

func TestStressStep_UpgradesPlainBoxes(t *testing.T) {
	cfg := DefaultSimConfig()
	next := StressStep(NewWorld(), 1, cfg, newTestRand(), nil)

	for i, b := range next.Boxes {
		if b.StressAttrs == nil {
			t.Errorf("Box %d: expected stress fields after a stress step", i)
		}
	}
}

func TestStressStep_ShapeToggle(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.Stress.SpawnChance = 0
	cfg.Stress.DespawnChance = 0
	cfg.Stress.TeleportChance = 0

	rng := newTestRand()
	world := NewStressWorld(cfg, rng)
	box := world.Boxes[0]
	start := box.Shape

	// Box id 1 toggles on frames where (frame+1) % 60 == 0.
	for frame := uint64(1); frame <= 59; frame++ {
		world = StressStep(world, frame, cfg, rng, nil)
	}
	if world.Boxes[0].Shape == start {
		t.Errorf("Expected shape of box %d to toggle by frame 59", box.ID)
	}
}

func TestStressStep_HueRotation(t *testing.T) {
	cfg := DefaultSimConfig()
	rng := newTestRand()
	world := NewStressWorld(cfg, rng)

	a := StressStep(world, 10, cfg, rng, nil)
	b := StressStep(world, 40, cfg, rng, nil)

	if a.Boxes[0].Color == b.Boxes[0].Color {
		t.Error("Expected hue to rotate with the frame counter")
	}
	if a.Boxes[0].Color == a.Boxes[50].Color {
		t.Error("Expected hue to differ by box index")
	}
}
