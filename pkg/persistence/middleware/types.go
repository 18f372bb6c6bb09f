package middleware

import "github.com/aretw0/lattice/pkg/ports"

// Middleware wraps a RunRecorder to add behavior.
type Middleware func(ports.RunRecorder) ports.RunRecorder

// Chain wraps r with mws; the first middleware sees a record first on Save.
func Chain(r ports.RunRecorder, mws ...Middleware) ports.RunRecorder {
	for i := len(mws) - 1; i >= 0; i-- {
		r = mws[i](r)
	}
	return r
}
