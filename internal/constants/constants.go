package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	SessionIdleTTL       = 30 * time.Minute
	SessionSweepInterval = 1 * time.Minute
)

const (
	ClientMaxConnsPerHost     = 100
	ClientMaxIdleConnDuration = 1 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultTopCountersLimit = 8
	MaxTopCountersLimit     = 50
	SubscriberBuffer        = 1
)

const (
	ServiceErrorMessage = "We couldn't find any matchup data for this champion and role. Try a different role or a more popular champion."
	GenericErrorMessage = "Something went wrong while loading matchups. Please try again later."
)
