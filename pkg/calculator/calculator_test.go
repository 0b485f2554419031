package calculator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func TestCalculateDefaults(t *testing.T) {
	res, err := Calculate(Input{Presets: []string{"lead-followup"}})
	require.NoError(t, err)

	assert.Equal(t, DefaultTasksPerWeek, res.TasksPerWeek)
	assert.Equal(t, float64(DefaultHourlyRate), res.HourlyRate)
	assert.Equal(t, 43.3, res.HoursSavedPerMonth)
	assert.Equal(t, 1950.0, res.MonthlySavings)
	assert.Equal(t, 23400.0, res.AnnualSavings)
	assert.Equal(t, 80.0, res.EfficiencyPercent)

	want := []Breakdown{{PresetID: "lead-followup", Name: "Lead follow-up", WeeklyMinutes: 750, WeeklyMinutesSaved: 600}}
	if diff := cmp.Diff(want, res.Breakdown); diff != "" {
		t.Errorf("breakdown mismatch (-want +got):\n%s", diff)
	}
}

func TestCalculateAllPresets(t *testing.T) {
	ids := make([]string, 0, len(Presets))
	for _, p := range Presets {
		ids = append(ids, p.ID)
	}

	res, err := Calculate(Input{Presets: ids, TasksPerWeek: intp(100), HourlyRate: floatp(60)})
	require.NoError(t, err)

	assert.Equal(t, 558.3, res.HoursSavedPerMonth)
	assert.Equal(t, 33496.67, res.MonthlySavings)
	assert.Equal(t, 401960.0, res.AnnualSavings)
	assert.Equal(t, 75.0, res.EfficiencyPercent)
	assert.Len(t, res.Breakdown, 6)
}

func TestCalculateClampsSliders(t *testing.T) {
	res, err := Calculate(Input{
		Presets:      []string{"data-entry", "email-triage"},
		TasksPerWeek: intp(0),
		HourlyRate:   floatp(5),
	})
	require.NoError(t, err)

	assert.Equal(t, MinTasksPerWeek, res.TasksPerWeek)
	assert.Equal(t, float64(MinHourlyRate), res.HourlyRate)
	assert.Equal(t, 0.9, res.HoursSavedPerMonth)
	assert.Equal(t, 8.67, res.MonthlySavings)
	assert.Equal(t, 104.0, res.AnnualSavings)
	assert.Equal(t, 80.0, res.EfficiencyPercent)

	res, err = Calculate(Input{Presets: []string{"data-entry"}, TasksPerWeek: intp(10000), HourlyRate: floatp(1e6)})
	require.NoError(t, err)
	assert.Equal(t, MaxTasksPerWeek, res.TasksPerWeek)
	assert.Equal(t, float64(MaxHourlyRate), res.HourlyRate)
}

func TestCalculateDuplicatesCountedOnce(t *testing.T) {
	once, err := Calculate(Input{Presets: []string{"invoice-processing"}})
	require.NoError(t, err)
	twice, err := Calculate(Input{Presets: []string{"invoice-processing", "invoice-processing"}})
	require.NoError(t, err)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("duplicate preset changed the result (-once +twice):\n%s", diff)
	}
}

func TestCalculateEmptySelection(t *testing.T) {
	res, err := Calculate(Input{})
	require.NoError(t, err)

	assert.Zero(t, res.HoursSavedPerMonth)
	assert.Zero(t, res.MonthlySavings)
	assert.Zero(t, res.AnnualSavings)
	assert.Zero(t, res.EfficiencyPercent)
	assert.NotNil(t, res.Breakdown)
	assert.Empty(t, res.Breakdown)
}

func TestCalculateUnknownPreset(t *testing.T) {
	_, err := Calculate(Input{Presets: []string{"data-entry", "time-travel"}})
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, ClampTasks(-5))
	assert.Equal(t, 250, ClampTasks(250))
	assert.Equal(t, 500, ClampTasks(501))
	assert.Equal(t, 10.0, ClampRate(0))
	assert.Equal(t, 99.5, ClampRate(99.5))
	assert.Equal(t, 300.0, ClampRate(300.01))
}

func TestPresetsTable(t *testing.T) {
	want := map[string][2]float64{
		"lead-followup":          {15, 0.80},
		"invoice-processing":     {20, 0.75},
		"data-entry":             {10, 0.90},
		"report-generation":      {45, 0.70},
		"email-triage":           {5, 0.60},
		"appointment-scheduling": {8, 0.85},
	}
	require.Len(t, Presets, len(want))
	for id, v := range want {
		p, ok := FindPreset(id)
		require.True(t, ok, id)
		assert.Equal(t, v[0], p.MinutesPerTask, id)
		assert.Equal(t, v[1], p.AutomationRate, id)
	}
}
