package config

import "time"

// DomainConfig holds the tunable limits of a collaboration session
type DomainConfig struct {
	// History
	HistoryCapacity int

	// Notifications
	NotificationCapacity int

	// Link constraints
	MinLinkStrength      float64
	MaxLinkStrength      float64
	DefaultLinkStrength  float64
	AllowSelfConnections bool

	// Presence
	IdleAfter            time.Duration
	CursorUpdateInterval time.Duration
	CursorUpdateBurst    int

	// Durable requests
	MutationTimeout time.Duration
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		HistoryCapacity:      100,
		NotificationCapacity: 200,

		MinLinkStrength:      0.0,
		MaxLinkStrength:      1.0,
		DefaultLinkStrength:  0.5,
		AllowSelfConnections: false,

		IdleAfter:            2 * time.Minute,
		CursorUpdateInterval: 50 * time.Millisecond,
		CursorUpdateBurst:    5,

		MutationTimeout: 30 * time.Second,
	}
}
