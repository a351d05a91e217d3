package annotation

import (
	"cmp"
	"slices"

	"github.com/hyperengineering/healthsync/internal/fingerprint"
	"github.com/hyperengineering/healthsync/internal/types"
)

// contentHash digests every input that shapes an annotation: the record's
// non-annotation fields, the linked transactions in ID order, and the active
// goal. Timestamps and the annotation pair are never included.
func contentHash(rec *types.DailyRecord, txs []types.Transaction, goal *types.Goal) (string, error) {
	exercises := make(fingerprint.Array, len(rec.Exercises))
	for i, e := range rec.Exercises {
		exercises[i] = fingerprint.Object{
			"name":             e.Name,
			"duration_minutes": fingerprint.Float(e.DurationMinutes),
			"energy_kcal":      fingerprint.Float(e.EnergyKcal),
		}
	}

	sorted := slices.Clone(txs)
	slices.SortFunc(sorted, func(a, b types.Transaction) int { return cmp.Compare(a.ID, b.ID) })
	transactions := make(fingerprint.Array, len(sorted))
	for i, tx := range sorted {
		transactions[i] = fingerprint.Object{
			"id":          tx.ID,
			"description": tx.Description,
			"category":    tx.Category,
			"amount":      tx.Amount.String(),
			"currency":    tx.Currency,
		}
	}

	record := fingerprint.Object{
		"date":               string(rec.Date),
		"weight":             fingerprint.OptionalFloat(rec.Weight),
		"steps":              optionalInt(rec.Steps),
		"sleep_hours":        fingerprint.OptionalFloat(rec.SleepHours),
		"resting_heart_rate": fingerprint.OptionalFloat(rec.RestingHeartRate),
		"exercises":          exercises,
		"note":               optionalString(rec.Note),
		"off_plan":           rec.OffPlan,
	}

	doc := fingerprint.Object{
		"record":       record,
		"transactions": transactions,
	}
	if goal != nil {
		doc["goal"] = fingerprint.Object{
			"target_weight":     fingerprint.OptionalFloat(goal.TargetWeight),
			"weekly_rate":       fingerprint.OptionalFloat(goal.WeeklyRate),
			"daily_step_target": optionalInt(goal.DailyStepTarget),
		}
	}

	return fingerprint.Of(fingerprint.DomainAnnotation, doc)
}

func optionalInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func optionalString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
