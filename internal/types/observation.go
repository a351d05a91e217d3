package types

import "time"

// SourceObservation is the transient per-date bundle produced by an ingestion
// adapter. Every field is optional. Raw sample sets are kept so the merge
// engine can derive resting heart rate and sleep duration itself.
type SourceObservation struct {
	Weight *float64 `json:"weight,omitempty"`
	Steps  *int     `json:"steps,omitempty"`

	// RestingHeartRate is a dedicated resting-rate metric, when the platform
	// supplies one. It takes priority over HeartRateSamples.
	RestingHeartRate *float64 `json:"resting_heart_rate,omitempty"`
	HeartRateSamples []float64 `json:"heart_rate_samples,omitempty"`

	SleepStages   []SleepStage   `json:"sleep_stages,omitempty"`
	SleepSessions []SleepSession `json:"sleep_sessions,omitempty"`

	Workouts []Exercise `json:"workouts,omitempty"`
}

// IsEmpty reports whether the observation carries no data at all.
func (o SourceObservation) IsEmpty() bool {
	return o.Weight == nil &&
		o.Steps == nil &&
		o.RestingHeartRate == nil &&
		len(o.HeartRateSamples) == 0 &&
		len(o.SleepStages) == 0 &&
		len(o.SleepSessions) == 0 &&
		len(o.Workouts) == 0
}

// SleepStageKind classifies a sleep segment.
type SleepStageKind string

const (
	StageAwake  SleepStageKind = "awake"
	StageInBed  SleepStageKind = "in_bed"
	StageAsleep SleepStageKind = "asleep"
	StageLight  SleepStageKind = "light"
	StageCore   SleepStageKind = "core"
	StageDeep   SleepStageKind = "deep"
	StageREM    SleepStageKind = "rem"
)

// IsSleep reports whether the stage counts as actual sleep.
func (k SleepStageKind) IsSleep() bool {
	switch k {
	case StageAsleep, StageLight, StageCore, StageDeep, StageREM:
		return true
	default:
		return false
	}
}

// SleepStage is one classified segment of a night.
type SleepStage struct {
	Kind  SleepStageKind `json:"kind"`
	Start time.Time      `json:"start"`
	End   time.Time      `json:"end"`
}

// SleepSession is an unclassified session span.
type SleepSession struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
