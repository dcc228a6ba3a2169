package engine

// DefaultBox returns the canonical box the world starts with
func DefaultBox() Box {
	return Box{
		X:     DefaultX,
		Y:     DefaultY,
		Speed: DefaultSpeed,
		Color: DefaultColor,
		Size:  DefaultSize,
	}
}

// NewWorld returns a world holding exactly one default box
func NewWorld() World {
	return World{Boxes: []Box{DefaultBox()}, NextID: 1}
}

// ResetToDefault replaces the world contents with exactly one default box
func ResetToDefault(World) World {
	return NewWorld()
}

// EnsureNonEmpty returns w unchanged unless it has no boxes, in which case
// the default world is returned. The second result reports a repair.
func EnsureNonEmpty(w World) (World, bool) {
	if len(w.Boxes) > 0 {
		return w, false
	}
	return NewWorld(), true
}

// AdvanceBase displaces every box by an independent uniform delta in
// [-MaxDelta, MaxDelta] * speed on each axis, then clamps both coordinates.
func AdvanceBase(w World, bounds Bounds, rng Rand) World {
	next := w.Clone()
	for i := range next.Boxes {
		b := &next.Boxes[i]
		b.X = bounds.Clamp(b.X + randomDelta(rng)*b.Speed)
		b.Y = bounds.Clamp(b.Y + randomDelta(rng)*b.Speed)
	}
	return next
}

// Jump lifts every box by offset. The result is intentionally not clamped.
func Jump(w World, offset float64) World {
	next := w.Clone()
	for i := range next.Boxes {
		next.Boxes[i].Y -= offset
	}
	return next
}

// ClampWorld clamps every box position into bounds
func ClampWorld(w World, bounds Bounds) World {
	next := w.Clone()
	for i := range next.Boxes {
		b := &next.Boxes[i]
		b.X = bounds.Clamp(b.X)
		b.Y = bounds.Clamp(b.Y)
	}
	return next
}

// InBounds reports whether every box lies within bounds
func InBounds(w World, bounds Bounds) bool {
	for _, b := range w.Boxes {
		if !bounds.Contains(b.X) || !bounds.Contains(b.Y) {
			return false
		}
	}
	return true
}
