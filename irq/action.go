package irq

// Handler is invoked with the dev_data cookie supplied at RequestIRQ
// time when the owning virq fires.
type Handler func(devData any)

// action is one registered handler plus its cookie and flags. Chains
// form the descriptor's action list (spec §3: "ordered non-empty list
// of (handler, flags, dev_data, name) tuples").
type action struct {
	handler Handler
	flags   RequestFlags
	devData any
	name    string
	next    *action
}

func (a *action) shared() bool { return a.flags&Shared != 0 }
