package validation

import (
	"fmt"

	"github.com/hyperengineering/healthsync/internal/types"
)

// Plausibility bounds for observable fields. Values outside them are
// treated as device glitches or typos and rejected at the boundary.
const (
	MinWeight          = 20.0
	MaxWeight          = 400.0
	MaxSteps           = 200000
	MaxSleepHours      = 24.0
	MinHeartRate       = 20.0
	MaxHeartRate       = 250.0
	MaxExerciseMinutes = 24 * 60
	MaxEnergyKcal      = 20000.0
	MaxNameLength      = 200
	MaxNoteLength      = 4000
	MaxExercises       = 50
)

var sleepStageKinds = []string{
	string(types.StageAwake),
	string(types.StageInBed),
	string(types.StageAsleep),
	string(types.StageLight),
	string(types.StageCore),
	string(types.StageDeep),
	string(types.StageREM),
}

// ValidateExercise validates one exercise entry. prefix names the entry in
// field paths (e.g. "exercises[2]").
func ValidateExercise(prefix string, e types.Exercise) []ValidationError {
	c := &Collector{}
	c.Add(ValidateRequired(prefix+".name", e.Name))
	c.Add(ValidateText(prefix+".name", e.Name, MaxNameLength))
	c.Add(ValidateRange(prefix+".duration_minutes", e.DurationMinutes, 0, MaxExerciseMinutes))
	c.Add(ValidateRange(prefix+".energy_kcal", e.EnergyKcal, 0, MaxEnergyKcal))
	return c.Errors()
}

// ValidateDayEdit validates a manual edit. Only the fields present are checked.
func ValidateDayEdit(edit types.DayEdit) []ValidationError {
	c := &Collector{}
	if edit.Weight != nil {
		c.Add(ValidateRange("weight", *edit.Weight, MinWeight, MaxWeight))
	}
	if edit.Steps != nil {
		c.Add(ValidateRange("steps", float64(*edit.Steps), 0, MaxSteps))
	}
	if edit.SleepHours != nil {
		c.Add(ValidateRange("sleep_hours", *edit.SleepHours, 0, MaxSleepHours))
	}
	if edit.RestingHeartRate != nil {
		c.Add(ValidateRange("resting_heart_rate", *edit.RestingHeartRate, MinHeartRate, MaxHeartRate))
	}
	if edit.Note != nil {
		c.Add(ValidateText("note", *edit.Note, MaxNoteLength))
	}
	if edit.Exercises != nil {
		if len(*edit.Exercises) > MaxExercises {
			c.Add(&ValidationError{
				Field:   "exercises",
				Message: fmt.Sprintf("exceeds maximum of %d entries", MaxExercises),
			})
		}
		for i, e := range *edit.Exercises {
			for _, err := range ValidateExercise(fmt.Sprintf("exercises[%d]", i), e) {
				c.Add(&err)
			}
		}
	}
	return c.Errors()
}

// ValidateTransaction validates a transaction before it is stored.
func ValidateTransaction(tx types.NewTransaction) []ValidationError {
	c := &Collector{}
	c.Add(ValidateRequired("description", tx.Description))
	c.Add(ValidateText("description", tx.Description, MaxNameLength))
	c.Add(ValidateText("category", tx.Category, MaxNameLength))
	if len(tx.Currency) != 3 {
		c.Add(&ValidationError{Field: "currency", Message: "must be a 3-letter ISO 4217 code"})
	}
	return c.Errors()
}

// ValidateGoal validates the goal parameters that are set.
func ValidateGoal(goal types.Goal) []ValidationError {
	c := &Collector{}
	if goal.TargetWeight != nil {
		c.Add(ValidateRange("target_weight", *goal.TargetWeight, MinWeight, MaxWeight))
	}
	if goal.WeeklyRate != nil {
		c.Add(ValidateRange("weekly_rate", *goal.WeeklyRate, 0, 2))
	}
	if goal.DailyStepTarget != nil {
		c.Add(ValidateRange("daily_step_target", float64(*goal.DailyStepTarget), 0, MaxSteps))
	}
	return c.Errors()
}

// ValidateObservation validates a tagged observation received from the
// health platform. Any error rejects the whole observation.
func ValidateObservation(obs types.SourceObservation) []ValidationError {
	c := &Collector{}
	if obs.Weight != nil {
		c.Add(ValidateRange("weight", *obs.Weight, MinWeight, MaxWeight))
	}
	if obs.Steps != nil {
		c.Add(ValidateRange("steps", float64(*obs.Steps), 0, MaxSteps))
	}
	if obs.RestingHeartRate != nil {
		c.Add(ValidateRange("resting_heart_rate", *obs.RestingHeartRate, MinHeartRate, MaxHeartRate))
	}
	for i, hr := range obs.HeartRateSamples {
		c.Add(ValidateRange(fmt.Sprintf("heart_rate_samples[%d]", i), hr, MinHeartRate, MaxHeartRate))
	}
	for i, s := range obs.SleepStages {
		field := fmt.Sprintf("sleep_stages[%d]", i)
		c.Add(ValidateEnum(field+".kind", string(s.Kind), sleepStageKinds))
		if s.End.Before(s.Start) {
			c.Add(&ValidationError{Field: field, Message: "end must not be before start"})
		}
	}
	for i, s := range obs.SleepSessions {
		if s.End.Before(s.Start) {
			c.Add(&ValidationError{Field: fmt.Sprintf("sleep_sessions[%d]", i), Message: "end must not be before start"})
		}
	}
	for i, w := range obs.Workouts {
		for _, err := range ValidateExercise(fmt.Sprintf("workouts[%d]", i), w) {
			c.Add(&err)
		}
	}
	return c.Errors()
}
