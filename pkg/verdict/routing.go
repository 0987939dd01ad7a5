package verdict

// Router selects engines for a task by registration order and
// content-based applicability. Registration order is meaningful: the
// first registered engine is the general-purpose one that single-depth
// requests fall to.
type Router struct {
	engines []Engine
}

// NewRouter builds a router over engines in priority order.
func NewRouter(engines ...Engine) *Router {
	return &Router{engines: engines}
}

// Register appends an engine at the lowest priority.
func (r *Router) Register(e Engine) {
	r.engines = append(r.engines, e)
}

// Select returns the engines to run for the requested depth. The slice
// preserves registration order; it may be empty when nothing applies.
func (r *Router) Select(task Task, mode Mode) []Engine {
	limit := len(r.engines)
	switch mode {
	case ModeSingle:
		limit = 1
	case ModeHigh:
		limit = 2
	}

	var picked []Engine
	for _, e := range r.engines {
		if len(picked) >= limit {
			break
		}
		if e.Applicable(task) {
			picked = append(picked, e)
		}
	}
	return picked
}

// Engines exposes the registered engines, for introspection endpoints.
func (r *Router) Engines() []Engine {
	out := make([]Engine, len(r.engines))
	copy(out, r.engines)
	return out
}
