package affinity

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config selects and tunes scoring strategies.
type Config struct {
	ColdStartScore      float64
	AugmentedMinLabels  int
	ClassifierMinLabels int
	Augment             AugmentOptions
	Train               TrainOptions
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		ColdStartScore:      0.05,
		AugmentedMinLabels:  5,
		ClassifierMinLabels: 30,
		Augment:             DefaultAugmentOptions(),
		Train:               DefaultTrainOptions(),
	}
}

// Select picks the strongest strategy the labelled data volume supports.
// The classifier falls back to augmentation when labels are one-sided.
func Select(ev Evidence, cfg Config) (Scorer, error) {
	corpus := NewCorpus(ev)
	labels := ev.LabeledPairs()
	if cfg.ClassifierMinLabels > 0 && labels >= cfg.ClassifierMinLabels {
		scorer, err := NewClassifierScorer(corpus, cfg.ColdStartScore, cfg.Train)
		if err == nil {
			return scorer, nil
		}
		if !errors.Is(err, ErrInsufficientLabels) {
			return nil, err
		}
	}
	if cfg.AugmentedMinLabels > 0 && labels >= cfg.AugmentedMinLabels {
		return NewAugmentedScorer(corpus, cfg.ColdStartScore, cfg.Augment), nil
	}
	return NewSimilarityScorer(corpus, cfg.ColdStartScore), nil
}

// Score is one scored instructor/subject pair.
type Score struct {
	InstructorID string
	SubjectID    string
	Value        float64
}

// ScoreMatrix scores every instructor against every subject using a bounded
// pool of goroutines. Output order follows the input order, instructor major.
func ScoreMatrix(ctx context.Context, scorer Scorer, instructorIDs, subjectIDs []string, workers int) ([]Score, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	out := make([]Score, len(instructorIDs)*len(subjectIDs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, instructorID := range instructorIDs {
		i, instructorID := i, instructorID
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for j, subjectID := range subjectIDs {
				out[i*len(subjectIDs)+j] = Score{
					InstructorID: instructorID,
					SubjectID:    subjectID,
					Value:        scorer.Score(instructorID, subjectID),
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
