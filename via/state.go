package via

// StateHandle is a typed reference to a piece of per-tab server state.
type StateHandle[T any] struct {
	id      string
	initial T
}

// State declares per-tab state with an initial value. It must be called
// before View.
func State[T any](c *Composition, initial T) *StateHandle[T] {
	c.mustBeBeforeView("State")
	s := &StateHandle[T]{
		id:      genRandID(),
		initial: initial,
	}
	c.states = append(c.states, stateRegistration{id: s.id, initial: initial})
	return s
}

func (s *StateHandle[T]) Get(ctx *Context) T {
	if ctx == nil || ctx.s == nil {
		return s.initial
	}
	if val, ok := ctx.s.state[s.id].(T); ok {
		return val
	}
	return s.initial
}

// Set stores value and syncs the view.
func (s *StateHandle[T]) Set(ctx *Context, value T) {
	if ctx == nil || ctx.s == nil {
		return
	}
	if ctx.mode == sessionModeView {
		ctx.warn("State.Set() called during view render; mutation ignored")
		return
	}
	ctx.s.state[s.id] = value
	ctx.Sync()
}

// Update replaces the value with fn applied to the current one.
func (s *StateHandle[T]) Update(ctx *Context, fn func(T) T) {
	s.Set(ctx, fn(s.Get(ctx)))
}
