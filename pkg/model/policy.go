package model

// Policy carries the engine's external knobs (spec §6 Inputs).
type Policy struct {
	TolerancePercent         float64 // default 8
	EmergencyTolerancePercent float64 // default 10
	CriticalTolerancePercent float64 // default 15
	Phase2TolerancePercent   float64 // default 12
	Seed                     int64
	NumPosts                 int
}

// DefaultPolicy returns the spec's stated defaults.
func DefaultPolicy() Policy {
	return Policy{
		TolerancePercent:          8,
		EmergencyTolerancePercent: 10,
		CriticalTolerancePercent:  15,
		Phase2TolerancePercent:    12,
		Seed:                      42,
		NumPosts:                  1,
	}
}
