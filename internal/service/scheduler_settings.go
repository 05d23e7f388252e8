package service

import (
	"fmt"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	"github.com/noah-isme/sma-timetable/pkg/config"
)

// SchedulerSettings is the solver-facing form of config.SchedulerConfig.
type SchedulerSettings struct {
	Grid    timetable.Grid
	Weights timetable.Weights
	Load    timetable.LoadPolicy
	Options timetable.Options
}

// NewSchedulerSettings parses the configured windows and limits.
func NewSchedulerSettings(cfg config.SchedulerConfig) (SchedulerSettings, error) {
	grid := timetable.Grid{Days: cfg.Days, SlotMinutes: cfg.SlotMinutes}
	windows := []struct {
		name   string
		raw    string
		target *timetable.Window
	}{
		{"morning", cfg.MorningWindow, &grid.Morning},
		{"afternoon", cfg.AfternoonWindow, &grid.Afternoon},
		{"overload", cfg.OverloadWindow, &grid.Overload},
		{"lunch", cfg.LunchWindow, &grid.Lunch},
		{"default availability", cfg.DefaultAvailability, &grid.DefaultAvailability},
	}
	for _, w := range windows {
		parsed, err := timetable.ParseWindow(w.raw)
		if err != nil {
			return SchedulerSettings{}, fmt.Errorf("%s window: %w", w.name, err)
		}
		*w.target = parsed
	}

	load := timetable.DefaultLoadPolicy()
	if cfg.OverloadMinutesPerUnit > 0 {
		load.MinutesPerUnit = cfg.OverloadMinutesPerUnit
	}
	if cfg.FullTimeNormalHours > 0 {
		load.DefaultNormalHours[models.EmploymentFullTime] = cfg.FullTimeNormalHours
		load.FallbackNormalHours = cfg.FullTimeNormalHours
	}
	if cfg.PartTimeNormalHours > 0 {
		load.DefaultNormalHours[models.EmploymentPartTime] = cfg.PartTimeNormalHours
	}
	if cfg.FullTimeOverloadUnits >= 0 {
		load.DefaultOverloadUnits[models.EmploymentFullTime] = cfg.FullTimeOverloadUnits
	}
	if cfg.PartTimeOverloadUnits >= 0 {
		load.DefaultOverloadUnits[models.EmploymentPartTime] = cfg.PartTimeOverloadUnits
	}

	opts := timetable.DefaultOptions()
	if cfg.TimeBudget > 0 {
		opts.TimeLimit = cfg.TimeBudget
	}
	if cfg.Seed != 0 {
		opts.Seed = cfg.Seed
	}
	if cfg.MaxIterations > 0 {
		opts.MaxIterations = cfg.MaxIterations
	}
	if cfg.NodeLimit > 0 {
		opts.NodeLimit = cfg.NodeLimit
	}
	if cfg.ProgressInterval > 0 {
		opts.ProgressInterval = cfg.ProgressInterval
	}

	return SchedulerSettings{
		Grid: grid,
		Weights: timetable.Weights{
			Match:        cfg.WeightMatch,
			RoomPriority: cfg.WeightRoomPriority,
			LoadBalance:  cfg.WeightLoadBalance,
			Overload:     cfg.WeightOverload,
		},
		Load:    load,
		Options: opts,
	}, nil
}
