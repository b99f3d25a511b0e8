// Package trigger turns viewport movement into load requests.
package trigger

import "context"

// DefaultThreshold is how many unseen rows may remain before more are loaded.
const DefaultThreshold = 3

// Proximity calls Load when the viewport gets within Threshold rows of the
// end of the loaded list. It makes no attempt to debounce: Load is expected
// to ignore calls while a page is in flight.
type Proximity struct {
	Threshold int
	Load      func(ctx context.Context) error
}

// NearEnd reports whether position (index of the last visible row) is within
// the threshold of loaded rows.
func (p Proximity) NearEnd(position, loaded int) bool {
	threshold := p.Threshold
	if threshold < 0 {
		threshold = 0
	}
	return loaded-1-position <= threshold
}

// OnScroll is called with the last visible row index after every viewport
// change. It returns whether a load was requested and the load's error.
func (p Proximity) OnScroll(ctx context.Context, position, loaded int) (bool, error) {
	if p.Load == nil || !p.NearEnd(position, loaded) {
		return false, nil
	}
	return true, p.Load(ctx)
}
