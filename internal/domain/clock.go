package domain

import "github.com/jonboulle/clockwork"

// clock is the package time source for ScrapedAt stamps. Tests freeze it via
// SetClock so incident fixtures are byte-stable.
var clock clockwork.Clock = clockwork.NewRealClock()

// SetClock swaps the package time source. Pass nil to restore real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
