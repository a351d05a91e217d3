package annotation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperengineering/healthsync/internal/types"
)

// BuildContext renders the generator input for one day. Absent fields are
// omitted; the output is deterministic for a given input.
func BuildContext(rec *types.DailyRecord, txs []types.Transaction, goal *types.Goal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Date: %s\n", rec.Date)
	if rec.Weight != nil {
		fmt.Fprintf(&b, "Weight: %s kg\n", num(*rec.Weight))
	}
	if rec.Steps != nil {
		fmt.Fprintf(&b, "Steps: %d\n", *rec.Steps)
	}
	if rec.SleepHours != nil {
		fmt.Fprintf(&b, "Sleep: %s h\n", strconv.FormatFloat(*rec.SleepHours, 'f', 1, 64))
	}
	if rec.RestingHeartRate != nil {
		fmt.Fprintf(&b, "Resting heart rate: %s bpm\n", strconv.FormatFloat(*rec.RestingHeartRate, 'f', 0, 64))
	}
	if len(rec.Exercises) > 0 {
		b.WriteString("Exercises:\n")
		for _, e := range rec.Exercises {
			fmt.Fprintf(&b, "- %s, %s min", e.Name, num(e.DurationMinutes))
			if e.EnergyKcal > 0 {
				fmt.Fprintf(&b, ", %s kcal", num(e.EnergyKcal))
			}
			b.WriteString("\n")
		}
	}
	if rec.Note != nil && *rec.Note != "" {
		fmt.Fprintf(&b, "Note: %s\n", *rec.Note)
	}
	if rec.OffPlan {
		b.WriteString("Off plan: yes\n")
	}

	if len(txs) > 0 {
		b.WriteString("Transactions:\n")
		for _, tx := range txs {
			b.WriteString("- " + tx.Description)
			if tx.Category != "" {
				b.WriteString(" (" + tx.Category + ")")
			}
			fmt.Fprintf(&b, ": %s %s\n", tx.Amount.StringFixed(2), tx.Currency)
		}
	}

	if g := goalLine(goal); g != "" {
		fmt.Fprintf(&b, "Goal: %s\n", g)
	}
	return b.String()
}

func goalLine(goal *types.Goal) string {
	if goal == nil {
		return ""
	}
	var parts []string
	if goal.TargetWeight != nil {
		parts = append(parts, "target "+num(*goal.TargetWeight)+" kg")
	}
	if goal.WeeklyRate != nil {
		parts = append(parts, num(*goal.WeeklyRate)+" kg/week")
	}
	if goal.DailyStepTarget != nil {
		parts = append(parts, strconv.Itoa(*goal.DailyStepTarget)+" steps/day")
	}
	return strings.Join(parts, ", ")
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
