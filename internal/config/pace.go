package config

// Pace selects how hard discovery leans on the cloud API
type Pace string

const (
	PaceCautious   Pace = "cautious"   // Shared keys, leave headroom for other tools
	PaceBalanced   Pace = "balanced"   // Five calls per second, ten workers
	PaceAggressive Pace = "aggressive" // Up to the per-organization ceiling
)

// ParsePace converts a string to Pace, defaulting to PaceBalanced
func ParsePace(s string) Pace {
	switch s {
	case "cautious":
		return PaceCautious
	case "balanced":
		return PaceBalanced
	case "aggressive":
		return PaceAggressive
	default:
		return PaceBalanced
	}
}

// FetchProfile defines throttle and concurrency settings
type FetchProfile struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	Workers       int     `yaml:"workers"`
}

// PaceProfiles maps paces to their default fetch profiles.
// Every profile uses a burst of one so RatePerSecond is a hard ceiling;
// a larger burst is only available through an explicit fetch override.
var PaceProfiles = map[Pace]FetchProfile{
	PaceCautious: {
		RatePerSecond: 2,
		Burst:         1,
		Workers:       4,
	},
	PaceBalanced: {
		RatePerSecond: 5,
		Burst:         1,
		Workers:       10,
	},
	PaceAggressive: {
		RatePerSecond: 10,
		Burst:         1,
		Workers:       20,
	},
}

// GetProfile returns the fetch profile for a pace
func (p Pace) GetProfile() FetchProfile {
	if profile, ok := PaceProfiles[p]; ok {
		return profile
	}
	return PaceProfiles[PaceBalanced]
}
