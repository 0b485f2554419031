// Package calculator estimates the time and money automation saves.
// All arithmetic runs on unrounded values; rounding is applied once to the result.
package calculator

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownPreset is returned for a preset id that is not in Presets
var ErrUnknownPreset = errors.New("unknown preset")

// Preset is a task type with a typical duration and the share automation removes
type Preset struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	MinutesPerTask float64 `json:"minutes_per_task"`
	AutomationRate float64 `json:"automation_rate"`
}

// Presets are the fixed task types, in display order
var Presets = []Preset{
	{ID: "lead-followup", Name: "Lead follow-up", MinutesPerTask: 15, AutomationRate: 0.80},
	{ID: "invoice-processing", Name: "Invoice processing", MinutesPerTask: 20, AutomationRate: 0.75},
	{ID: "data-entry", Name: "Data entry", MinutesPerTask: 10, AutomationRate: 0.90},
	{ID: "report-generation", Name: "Report generation", MinutesPerTask: 45, AutomationRate: 0.70},
	{ID: "email-triage", Name: "Email triage", MinutesPerTask: 5, AutomationRate: 0.60},
	{ID: "appointment-scheduling", Name: "Appointment scheduling", MinutesPerTask: 8, AutomationRate: 0.85},
}

// Slider bounds and defaults
const (
	MinTasksPerWeek     = 1
	MaxTasksPerWeek     = 500
	DefaultTasksPerWeek = 50

	MinHourlyRate     = 10
	MaxHourlyRate     = 300
	DefaultHourlyRate = 45

	weeksPerYear  = 52
	monthsPerYear = 12
)

// Input is what the visitor selected. Omitted sliders take their defaults.
type Input struct {
	Presets      []string `json:"presets"`
	TasksPerWeek *int     `json:"tasks_per_week,omitempty"`
	HourlyRate   *float64 `json:"hourly_rate,omitempty"`
}

// Breakdown is the contribution of one preset
type Breakdown struct {
	PresetID           string  `json:"preset_id"`
	Name               string  `json:"name"`
	WeeklyMinutes      float64 `json:"weekly_minutes"`
	WeeklyMinutesSaved float64 `json:"weekly_minutes_saved"`
}

// Result is the rounded estimate
type Result struct {
	TasksPerWeek       int         `json:"tasks_per_week"`
	HourlyRate         float64     `json:"hourly_rate"`
	HoursSavedPerMonth float64     `json:"hours_saved_per_month"`
	MonthlySavings     float64     `json:"monthly_savings"`
	AnnualSavings      float64     `json:"annual_savings"`
	EfficiencyPercent  float64     `json:"efficiency_percent"`
	Breakdown          []Breakdown `json:"breakdown"`
}

// FindPreset looks up a preset by id
func FindPreset(id string) (Preset, bool) {
	for _, p := range Presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// ClampTasks limits tasks per week to its slider range
func ClampTasks(n int) int {
	return int(clamp(float64(n), MinTasksPerWeek, MaxTasksPerWeek))
}

// ClampRate limits the hourly rate to its slider range
func ClampRate(rate float64) float64 {
	if math.IsNaN(rate) {
		return DefaultHourlyRate
	}
	return clamp(rate, MinHourlyRate, MaxHourlyRate)
}

// Calculate estimates the savings for in. Out-of-range sliders clamp; an
// empty selection yields zero savings.
func Calculate(in Input) (*Result, error) {
	tasks := DefaultTasksPerWeek
	if in.TasksPerWeek != nil {
		tasks = ClampTasks(*in.TasksPerWeek)
	}
	rate := float64(DefaultHourlyRate)
	if in.HourlyRate != nil {
		rate = ClampRate(*in.HourlyRate)
	}

	res := &Result{
		TasksPerWeek: tasks,
		HourlyRate:   rate,
		Breakdown:    make([]Breakdown, 0, len(in.Presets)),
	}

	seen := make(map[string]bool, len(in.Presets))
	var weekly, saved float64
	for _, id := range in.Presets {
		if seen[id] {
			continue
		}
		seen[id] = true

		p, ok := FindPreset(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, id)
		}
		minutes := p.MinutesPerTask * float64(tasks)
		minutesSaved := minutes * p.AutomationRate
		weekly += minutes
		saved += minutesSaved

		res.Breakdown = append(res.Breakdown, Breakdown{
			PresetID:           p.ID,
			Name:               p.Name,
			WeeklyMinutes:      round(minutes, 1),
			WeeklyMinutesSaved: round(minutesSaved, 1),
		})
	}

	hours := saved / 60 * weeksPerYear / monthsPerYear
	monthly := hours * rate
	res.HoursSavedPerMonth = round(hours, 1)
	res.MonthlySavings = round(monthly, 2)
	res.AnnualSavings = round(monthly*monthsPerYear, 2)
	if weekly > 0 {
		res.EfficiencyPercent = round(saved/weekly*100, 1)
	}
	return res, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
