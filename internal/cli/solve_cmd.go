package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/service"
	"github.com/noah-isme/sma-timetable/internal/timetable"
)

type solveFlags struct {
	snapshot   string
	timeBudget time.Duration
	seed       int64
	asJSON     bool
	progress   bool
}

func newSolveCmd(app *App) *cobra.Command {
	var flags solveFlags

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a YAML snapshot and print the assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runSolve(ctx, app, flags)
		},
	}

	cmd.Flags().StringVar(&flags.snapshot, "snapshot", "", "Path to the snapshot YAML file")
	cmd.Flags().DurationVar(&flags.timeBudget, "time-budget", 0, "Override the configured solve time budget")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "Override the configured random seed")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&flags.progress, "progress", false, "Log solver progress")
	_ = cmd.MarkFlagRequired("snapshot")
	return cmd
}

func runSolve(ctx context.Context, app *App, flags solveFlags) error {
	cfg, err := app.loadConfig()
	if err != nil {
		return err
	}
	settings, err := service.NewSchedulerSettings(cfg.Scheduler)
	if err != nil {
		return fmt.Errorf("scheduler settings: %w", err)
	}

	file, err := loadSnapshotFile(flags.snapshot, validator.New())
	if err != nil {
		return err
	}
	snap, err := file.Snapshot(settings.Load)
	if err != nil {
		return err
	}

	model, err := timetable.BuildModel(snap, timetable.ModelOptions{
		Grid:    settings.Grid,
		Weights: settings.Weights,
		Logger:  app.Logger,
	})
	if err != nil {
		return fmt.Errorf("building model: %w", err)
	}

	opts := settings.Options
	opts.Logger = app.Logger
	if flags.timeBudget > 0 {
		opts.TimeLimit = flags.timeBudget
	}
	if flags.seed != 0 {
		opts.Seed = flags.seed
	}
	if flags.progress {
		opts.Progress = func(percent int, message string) {
			app.Logger.Info("solve progress", zap.Int("percent", percent), zap.String("message", message))
		}
	}

	result, err := timetable.Solve(ctx, model, opts)
	if err != nil {
		var infeasible *timetable.InfeasibleError
		if errors.As(err, &infeasible) {
			writeDiagnostic(app.Out, infeasible.Diagnostic)
		}
		return err
	}

	if flags.asJSON {
		enc := json.NewEncoder(app.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	writeResult(app.Out, snap, result)
	return nil
}

func writeResult(out io.Writer, snap timetable.Snapshot, result *timetable.Result) {
	names := make(map[string]string, len(snap.Instructors))
	for _, instr := range snap.Instructors {
		names[instr.ID] = instr.Name
	}

	placements := append([]timetable.Placement(nil), result.Placements...)
	sort.Slice(placements, func(i, j int) bool {
		a, b := placements[i], placements[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.TaskID < b.TaskID
	})

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tSTART\tEND\tSECTION\tKIND\tINSTRUCTOR\tROOM\tOVERTIME")
	for _, p := range placements {
		instructor := p.InstructorID
		if name := names[p.InstructorID]; name != "" {
			instructor = name
		}
		room := p.RoomID
		if room == "" {
			room = "TBA"
		}
		overtime := ""
		if p.Overtime {
			overtime = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			timetable.DayName(p.Day), timetable.FormatClock(p.Start), timetable.FormatClock(p.End),
			p.SectionID, p.Kind, instructor, room, overtime)
	}
	_ = tw.Flush()

	fmt.Fprintf(out, "\nstatus: %s  placed: %d  unplaced: %d  objective: %d  elapsed: %s\n",
		result.Status, result.Placed(), len(result.Unplaced), result.Objective, result.Elapsed.Round(time.Millisecond))
	for _, issue := range result.Unplaced {
		fmt.Fprintf(out, "  unplaced %s (%s): %s %s\n", issue.TaskID, issue.SectionID, issue.Reason, issue.Detail)
	}
	if result.Diagnostic.Short() {
		writeDiagnostic(out, result.Diagnostic)
	}
}

func writeDiagnostic(out io.Writer, d timetable.Diagnostic) {
	fmt.Fprintf(out, "diagnostic: tasks=%d demand=%dmin supply=%dmin capacity=%dmin supply_deficit=%dmin capacity_deficit=%dmin\n",
		d.TaskCount, d.DemandMinutes, d.SupplyMinutes, d.CapacityMinutes, d.SupplyDeficit, d.CapacityDeficit)
	for _, gap := range d.RoomTypeGaps {
		fmt.Fprintf(out, "  no %q room for %d tasks (available: %v)\n", gap.RequiredType, gap.Tasks, gap.AvailableTypes)
	}
	for _, issue := range d.Blocked {
		fmt.Fprintf(out, "  blocked %s (%s): %s %s\n", issue.TaskID, issue.SectionID, issue.Reason, issue.Detail)
	}
}
