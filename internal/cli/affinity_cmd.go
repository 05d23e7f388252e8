package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-timetable/internal/affinity"
	"github.com/noah-isme/sma-timetable/internal/service"
)

func newAffinityCmd(app *App) *cobra.Command {
	var evidencePath string
	var top int

	cmd := &cobra.Command{
		Use:   "affinity",
		Short: "Score every instructor against every subject from a YAML evidence file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAffinity(cmd.Context(), app, evidencePath, top)
		},
	}

	cmd.Flags().StringVar(&evidencePath, "evidence", "", "Path to the evidence YAML file")
	cmd.Flags().IntVar(&top, "top", 0, "Only print the N best subjects per instructor")
	_ = cmd.MarkFlagRequired("evidence")
	return cmd
}

func runAffinity(ctx context.Context, app *App, path string, top int) error {
	cfg, err := app.loadConfig()
	if err != nil {
		return err
	}
	svcCfg := service.NewAffinityServiceConfig(cfg.Affinity)

	ev, err := loadEvidenceFile(path, validator.New())
	if err != nil {
		return err
	}
	if len(ev.Instructors) == 0 || len(ev.Subjects) == 0 {
		return fmt.Errorf("%s needs at least one instructor and one subject", path)
	}

	scorer, err := affinity.Select(ev, svcCfg.Scoring)
	if err != nil {
		return fmt.Errorf("selecting strategy: %w", err)
	}
	corpus := affinity.NewCorpus(ev)
	scores, err := affinity.ScoreMatrix(ctx, scorer, corpus.InstructorIDs(), corpus.SubjectIDs(), svcCfg.Workers)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.Out, "strategy: %s  labelled pairs: %d  scored pairs: %d\n\n", scorer.Strategy(), ev.LabeledPairs(), len(scores))
	writeScores(app.Out, scores, top)
	return nil
}

func writeScores(out io.Writer, scores []affinity.Score, top int) {
	byInstructor := make(map[string][]affinity.Score)
	var order []string
	for _, s := range scores {
		if _, ok := byInstructor[s.InstructorID]; !ok {
			order = append(order, s.InstructorID)
		}
		byInstructor[s.InstructorID] = append(byInstructor[s.InstructorID], s)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTRUCTOR\tSUBJECT\tSCORE")
	for _, instructorID := range order {
		rows := byInstructor[instructorID]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Value > rows[j].Value })
		if top > 0 && len(rows) > top {
			rows = rows[:top]
		}
		for _, s := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%.4f\n", s.InstructorID, s.SubjectID, s.Value)
		}
	}
	_ = tw.Flush()
}
