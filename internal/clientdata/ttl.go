package clientdata

import "time"

// TTL constants for memoized data.
// These are added to time.Now() when storing to calculate expires_at.
const (
	TTLCurrentPrice = 10 * time.Minute   // quotes move, but a batch run can share them
	TTLProfile      = 7 * 24 * time.Hour // dividends, fees, sectors, holdings, volatility
	TTLForecast     = 24 * time.Hour     // keyed by date, so one trading day at most

	// StaleRetention is how long an entry survives past its expiry so Get can
	// still serve it as a fallback. Redis applies it as key TTL, SQLite through
	// the cleanup job.
	StaleRetention = 7 * 24 * time.Hour
)
