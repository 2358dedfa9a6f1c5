package domain

// FetchFailure records an external fetch that failed and was left out of the results
type FetchFailure struct {
	Key    string `json:"key" yaml:"key"`
	Reason string `json:"reason" yaml:"reason"`
}

// SkippedItem records an input item ignored because a required field was missing
type SkippedItem struct {
	Kind   string `json:"kind" yaml:"kind"`
	Ref    string `json:"ref" yaml:"ref"`
	Reason string `json:"reason" yaml:"reason"`
}
