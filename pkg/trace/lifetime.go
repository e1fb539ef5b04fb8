package trace

const (
	// FrameLifetime is the lifetime end of a local that is live until its
	// frame closes.
	FrameLifetime = -1
	// LifetimeUnset is the lifetime end of a local slot that has not been
	// resolved.
	LifetimeUnset = -2
)

// lifetimes tracks, per real frame, the PC at which each local variable
// stops being live (the PC of the instruction following its last access).
//
// When a local is accessed its end is set to FrameLifetime; each executed
// instruction then closes every live local at its own PC. The close only
// happens if that PC exceeds the largest PC ever recorded for the local.
// Otherwise a loop such as
//
//	while (x < foo()) {
//	    x = x + 1;
//	}
//
// would close x at the PC of foo, which is smaller than the PCs of the
// loop body that was already executed with x live.
type lifetimes struct {
	ends    map[int][]int
	endsMax map[int][]int
}

func newLifetimes() *lifetimes {
	return &lifetimes{
		ends:    make(map[int][]int),
		endsMax: make(map[int][]int),
	}
}

func grow(s []int, n int) []int {
	for len(s) < n {
		s = append(s, LifetimeUnset)
	}
	return s
}

// openFrame records the parameters of a newly opened frame as live. Slots
// of absent parameters stay unset.
func (lt *lifetimes) openFrame(frame int, params []bool) {
	ends := lt.ends[frame]
	for i, present := range params {
		if present {
			ends = grow(ends, i+1)
			ends[i] = FrameLifetime
		}
	}
	if ends == nil {
		ends = []int{}
	}
	lt.ends[frame] = ends
}

// markAlive makes a local live until the end of its frame.
func (lt *lifetimes) markAlive(frame, slot int) {
	if slot < 0 {
		return
	}
	ends := grow(lt.ends[frame], slot+1)
	ends[slot] = FrameLifetime
	lt.ends[frame] = ends
}

// instruction closes the live locals of frame at pc.
func (lt *lifetimes) instruction(frame, pc int) {
	ends := lt.ends[frame]
	high := grow(lt.endsMax[frame], len(ends))
	for i := range ends {
		if ends[i] != LifetimeUnset && ends[i] != FrameLifetime {
			continue
		}
		if high[i] == LifetimeUnset || high[i] < pc {
			ends[i] = pc
			high[i] = pc
		}
	}
	if ends == nil {
		ends = []int{}
	}
	lt.ends[frame] = ends
	lt.endsMax[frame] = high
}
