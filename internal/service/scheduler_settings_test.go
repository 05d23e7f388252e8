package service

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	"github.com/noah-isme/sma-timetable/pkg/config"
)

func defaultSchedulerConfig() config.SchedulerConfig {
	v := viper.New()
	config.SetDefaults(v)
	return config.FromViper(v).Scheduler
}

func TestNewSchedulerSettingsFromDefaults(t *testing.T) {
	settings, err := NewSchedulerSettings(defaultSchedulerConfig())
	require.NoError(t, err)

	assert.Equal(t, 5, settings.Grid.Days)
	assert.Equal(t, 30, settings.Grid.SlotMinutes)
	assert.Equal(t, timetable.Window{Start: 7 * 60, End: 12 * 60}, settings.Grid.Morning)
	assert.Equal(t, timetable.Window{Start: 12 * 60, End: 13 * 60}, settings.Grid.Lunch)
	assert.Equal(t, timetable.Window{Start: 17 * 60, End: 20 * 60}, settings.Grid.Overload)
	assert.Equal(t, int64(1000), settings.Weights.Match)
	assert.Equal(t, 30*time.Second, settings.Options.TimeLimit)

	normal, capMinutes := settings.Load.Resolve(timetable.LoadProfile{EmploymentType: models.EmploymentPartTime})
	assert.Equal(t, 12*60, normal)
	assert.Zero(t, capMinutes)
}

func TestNewSchedulerSettingsOverrides(t *testing.T) {
	cfg := defaultSchedulerConfig()
	cfg.OverloadMinutesPerUnit = 50
	cfg.FullTimeOverloadUnits = 4
	cfg.TimeBudget = 90 * time.Second
	cfg.Seed = 7

	settings, err := NewSchedulerSettings(cfg)
	require.NoError(t, err)
	_, capMinutes := settings.Load.Resolve(timetable.LoadProfile{EmploymentType: models.EmploymentFullTime})
	assert.Equal(t, 200, capMinutes)
	assert.Equal(t, 90*time.Second, settings.Options.TimeLimit)
	assert.Equal(t, int64(7), settings.Options.Seed)
}

func TestNewSchedulerSettingsRejectsMalformedWindow(t *testing.T) {
	cfg := defaultSchedulerConfig()
	cfg.LunchWindow = "noon-13:00"

	_, err := NewSchedulerSettings(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lunch window")
}
