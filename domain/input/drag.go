package input

// DragTracker follows one joystick drag gesture.
//
// A drag starts only on a pointer-down over the surface. Once started, move
// and release events are accepted from anywhere in the viewport, so a drag
// that leaves the base keeps tracking until the pointer is released. The
// tracker is not safe for concurrent use; the session serialises access.
type DragTracker struct {
	surface    Surface
	overTravel float64
	active     bool
	current    Vector
}

// NewDragTracker creates a tracker for surface with the given over-travel cap.
func NewDragTracker(surface Surface, overTravel float64) *DragTracker {
	if overTravel <= 0 {
		overTravel = DefaultOverTravel
	}
	return &DragTracker{surface: surface, overTravel: overTravel}
}

// SetSurface updates the layout, e.g. after the UI resizes.
func (d *DragTracker) SetSurface(surface Surface) {
	d.surface = surface
}

// Surface returns the current layout.
func (d *DragTracker) Surface() Surface {
	return d.surface
}

// Begin starts a drag when p lies on the surface and returns the first deflection.
func (d *DragTracker) Begin(p Point) (Vector, bool) {
	if !d.surface.Contains(p) {
		return Vector{}, false
	}
	d.active = true
	d.current = Normalize(p, d.surface, d.overTravel)
	return d.current, true
}

// Move updates the deflection of an active drag. p may lie outside the surface.
func (d *DragTracker) Move(p Point) (Vector, bool) {
	if !d.active {
		return Vector{}, false
	}
	d.current = Normalize(p, d.surface, d.overTravel)
	return d.current, true
}

// End finishes the drag and snaps the stick back to center.
// It reports whether a drag was in progress.
func (d *DragTracker) End() bool {
	wasActive := d.active
	d.active = false
	d.current = Vector{}
	return wasActive
}

// Cancel drops an active drag without it counting as a release.
func (d *DragTracker) Cancel() {
	d.active = false
	d.current = Vector{}
}

// Active reports whether a drag is in progress.
func (d *DragTracker) Active() bool {
	return d.active
}

// Current returns the last deflection, zero when idle.
func (d *DragTracker) Current() Vector {
	return d.current
}
