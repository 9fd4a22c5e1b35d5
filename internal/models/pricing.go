package models

// SessionQuote is the derived price of a session slot.
type SessionQuote struct {
	DurationMinutes int     `json:"duration_minutes"`
	Cost            float64 `json:"cost"`
	RateMissing     bool    `json:"rate_missing,omitempty"`
}

// PriceSession derives duration and cost from a minute interval and an hourly
// rate. A missing (zero) rate yields zero cost and flags the quote so callers
// can surface a warning instead of failing the booking.
func PriceSession(startMinute, endMinute int, hourlyRate float64) SessionQuote {
	duration := endMinute - startMinute
	if duration < 0 {
		duration = 0
	}
	quote := SessionQuote{DurationMinutes: duration}
	if hourlyRate <= 0 {
		quote.RateMissing = true
		return quote
	}
	quote.Cost = hourlyRate * float64(duration) / 60
	return quote
}
