package classfile

// ExceptionHandler protects instructions [Start, End) and transfers control
// to Handler. A nil CatchType catches everything.
type ExceptionHandler struct {
	Start, End int
	Handler    int
	CatchType  *ClassInfo
}

// Handles reports whether the instruction at sequence index i is protected.
func (h *ExceptionHandler) Handles(i int) bool {
	return h.Start <= i && i < h.End
}

// CatchName returns the internal name of the caught class, or "" for a
// catch-all handler.
func (h *ExceptionHandler) CatchName() string {
	if h.CatchType == nil {
		return ""
	}
	return h.CatchType.ClassName()
}

// HandlersCovering returns the handlers protecting instruction i, in table
// order.
func (c *Code) HandlersCovering(i int) []*ExceptionHandler {
	var out []*ExceptionHandler
	for _, h := range c.Handlers {
		if h.Handles(i) {
			out = append(out, h)
		}
	}
	return out
}

// EnclosingHandlers returns the handlers whose handler entry is the closest
// one at or before instruction i. This groups the catch clauses of the try
// statement whose handler code contains i.
func (c *Code) EnclosingHandlers(i int) []*ExceptionHandler {
	best := -1
	for _, h := range c.Handlers {
		if h.Handler <= i && h.Handler > best {
			best = h.Handler
		}
	}
	if best < 0 {
		return nil
	}
	var out []*ExceptionHandler
	for _, h := range c.Handlers {
		if h.Handler == best {
			out = append(out, h)
		}
	}
	return out
}

// IsHandlerEntry reports whether some handler starts at instruction i.
func (c *Code) IsHandlerEntry(i int) bool {
	for _, h := range c.Handlers {
		if h.Handler == i {
			return true
		}
	}
	return false
}
