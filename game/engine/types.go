package engine

// Variant selects how the world is rendered on the wire
type Variant string

const (
	// VariantBoxes broadcasts the whole world as "update_boxes"
	VariantBoxes Variant = "boxes"
	// VariantBoy broadcasts only the first box as "update_boy"
	VariantBoy Variant = "boy"
)

// Shapes used by stress boxes
const (
	ShapeSquare = "square"
	ShapeCircle = "circle"
)

const (
	// Canonical default box
	DefaultX     = 100.0
	DefaultY     = 100.0
	DefaultSpeed = 2.0
	DefaultColor = "blue"
	DefaultSize  = 20.0

	// MaxDelta is the largest per-axis displacement of one base tick before speed scaling
	MaxDelta = 5.0
)

// Bounds is the closed interval both coordinates are clamped into
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Clamp returns v limited to [b.Min, b.Max]
func (b Bounds) Clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Contains reports whether v lies within the bounds
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Box is a single simulated entity
type Box struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Speed float64 `json:"speed"`
	Color string  `json:"color"`
	Size  float64 `json:"size"`

	// Present only while stress mode owns the world. Flattened into the box on the wire.
	*StressAttrs
}

// StressAttrs are the extended render fields carried by stress boxes
type StressAttrs struct {
	ID         int     `json:"id"`
	Rotation   float64 `json:"rotation"`
	Opacity    float64 `json:"opacity"`
	Shape      string  `json:"shape"`
	PulseRate  float64 `json:"pulseRate"`
	WobbleFreq float64 `json:"wobbleFreq"`
	Phase      float64 `json:"phase"`
}

// Clone returns a deep copy of the box
func (b Box) Clone() Box {
	if b.StressAttrs != nil {
		attrs := *b.StressAttrs
		b.StressAttrs = &attrs
	}
	return b
}

// World is the ordered collection of simulated boxes.
// Insertion order is render order.
type World struct {
	Boxes []Box `json:"boxes"`

	// NextID is the id handed to the next stress box created in this world
	NextID int `json:"-"`
}

// Len returns the population of the world
func (w World) Len() int {
	return len(w.Boxes)
}

// Clone returns a deep copy of the world
func (w World) Clone() World {
	boxes := make([]Box, len(w.Boxes))
	for i, b := range w.Boxes {
		boxes[i] = b.Clone()
	}
	return World{Boxes: boxes, NextID: w.NextID}
}

// Rand is the source of randomness the mutation functions draw from.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Noise is a 2D coherent noise field; opensimplex.Noise satisfies it.
type Noise interface {
	Eval2(x, y float64) float64
}
