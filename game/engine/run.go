package engine

// SpawnRunBatch grows a single-box world into a batch of cfg.Run.Population boxes.
// The existing box stays first; the rest are scattered around the default
// position and clamped into bounds. Worlds that already hold more than one box
// are returned unchanged so repeated triggers never duplicate boxes.
func SpawnRunBatch(w World, cfg *SimConfig, rng Rand) World {
	if len(w.Boxes) != 1 {
		return w.Clone()
	}

	pop := cfg.Run.Population
	next := World{Boxes: make([]Box, 0, pop), NextID: w.NextID}
	next.Boxes = append(next.Boxes, w.Boxes[0].Clone())

	spread := cfg.Run.SpawnSpread
	for i := 1; i < pop; i++ {
		next.Boxes = append(next.Boxes, Box{
			X:     cfg.Bounds.Clamp(DefaultX + randRange(rng, -spread, spread)),
			Y:     cfg.Bounds.Clamp(DefaultY + randRange(rng, -spread, spread)),
			Speed: randRange(rng, DefaultSpeed, DefaultSpeed+4),
			Color: DefaultColor,
			Size:  DefaultSize,
		})
	}
	return next
}

// BoostSpeeds assigns every box a speed drawn uniformly from [min, max)
func BoostSpeeds(w World, min, max float64, rng Rand) World {
	next := w.Clone()
	for i := range next.Boxes {
		next.Boxes[i].Speed = randRange(rng, min, max)
	}
	return next
}

// SetSpeed assigns the same speed to every box
func SetSpeed(w World, speed float64) World {
	next := w.Clone()
	for i := range next.Boxes {
		next.Boxes[i].Speed = speed
	}
	return next
}

// CycleColors paints the world from palette at the given step index.
// In lock-step mode every box gets palette[index]; otherwise box i gets
// palette[(index+i) % len(palette)].
func CycleColors(w World, palette []string, index int, lockstep bool) World {
	next := w.Clone()
	if len(palette) == 0 {
		return next
	}
	for i := range next.Boxes {
		offset := i
		if lockstep {
			offset = 0
		}
		next.Boxes[i].Color = palette[(index+offset)%len(palette)]
	}
	return next
}

// SetSize assigns the same render size to every box
func SetSize(w World, size float64) World {
	next := w.Clone()
	for i := range next.Boxes {
		next.Boxes[i].Size = size
	}
	return next
}

// NextPulse advances a size pulse by one step. The size moves by step in the
// current direction, stays within [floor, ceiling], and the direction flips
// once a bound is reached.
func NextPulse(size float64, growing bool, run RunSettings) (float64, bool) {
	if growing {
		size = clampFloat(size+run.SizeStep, run.SizeFloor, run.SizeCeiling)
		if size >= run.SizeCeiling {
			growing = false
		}
	} else {
		size = clampFloat(size-run.SizeStep, run.SizeFloor, run.SizeCeiling)
		if size <= run.SizeFloor {
			growing = true
		}
	}
	return size, growing
}
