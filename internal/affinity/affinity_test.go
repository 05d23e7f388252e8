package affinity

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvidence() Evidence {
	return Evidence{
		Subjects: []SubjectProfile{
			{ID: "calc", Code: "MATH101", Name: "Calculus", Description: "Limits, derivatives and integrals", Topics: []string{"derivatives", "integrals"}},
			{ID: "prog", Code: "CS101", Name: "Programming Fundamentals", Description: "Introductory programming with Go", Topics: []string{"algorithms", "programming"}},
			{ID: "lit", Code: "ENG201", Name: "World Literature", Description: "Novels, poetry and drama", Topics: []string{"poetry", "novels"}},
		},
		Instructors: []InstructorEvidence{
			{
				ID:          "ana",
				Credentials: []string{"MS Applied Mathematics"},
				Experience:  []string{"Taught calculus and integrals for five years"},
				History:     []HistoryEntry{{SubjectID: "calc", Times: 4}},
				Preference:  "derivatives and calculus",
			},
			{
				ID:          "ben",
				Credentials: []string{"BS Computer Science"},
				Experience:  []string{"Software engineer, programming algorithms"},
				History:     []HistoryEntry{{SubjectID: "prog", Times: 2}},
			},
			{ID: "cora"},
		},
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"intro", "go", "programming", "101"}, Tokenize("Intro to Go-programming (101) & a"))
	assert.Empty(t, Tokenize("  "))
}

func TestSimilarityScorerRanksMatchingProfiles(t *testing.T) {
	scorer := NewSimilarityScorer(NewCorpus(sampleEvidence()), 0.05)
	assert.Equal(t, StrategySimilarity, scorer.Strategy())

	assert.Greater(t, scorer.Score("ana", "calc"), scorer.Score("ana", "prog"))
	assert.Greater(t, scorer.Score("ben", "prog"), scorer.Score("ben", "calc"))
	assert.Equal(t, 0.0, scorer.Score("ana", "lit"))
	for _, subject := range []string{"calc", "prog", "lit"} {
		v := scorer.Score("ana", subject)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestScorersHandleColdStartAndUnknownIDs(t *testing.T) {
	corpus := NewCorpus(sampleEvidence())
	classifier, err := NewClassifierScorer(corpus, 0.05, TrainOptions{})
	require.NoError(t, err)
	scorers := []Scorer{
		NewSimilarityScorer(corpus, 0.05),
		NewAugmentedScorer(corpus, 0.05, DefaultAugmentOptions()),
		classifier,
	}
	for _, scorer := range scorers {
		t.Run(scorer.Strategy(), func(t *testing.T) {
			assert.Equal(t, 0.05, scorer.Score("cora", "calc"))
			assert.Equal(t, 0.0, scorer.Score("nobody", "calc"))
			assert.Equal(t, 0.0, scorer.Score("ana", "unknown"))
		})
	}
}

func TestAugmentedScorerBoostsTaughtSubjects(t *testing.T) {
	corpus := NewCorpus(sampleEvidence())
	plain := NewSimilarityScorer(corpus, 0)
	augmented := NewAugmentedScorer(corpus, 0, DefaultAugmentOptions())
	assert.Greater(t, augmented.Score("ben", "prog"), plain.Score("ben", "prog"))
	assert.Greater(t, augmented.Score("ben", "prog"), augmented.Score("ben", "lit"))
}

func TestClassifierScorerLearnsFromHistory(t *testing.T) {
	scorer, err := NewClassifierScorer(NewCorpus(sampleEvidence()), 0, DefaultTrainOptions())
	require.NoError(t, err)
	assert.Equal(t, StrategyClassifier, scorer.Strategy())
	assert.Len(t, scorer.Weights(), classifierFeatures+1)
	assert.Greater(t, scorer.Score("ana", "calc"), scorer.Score("ana", "lit"))
	assert.Greater(t, scorer.Score("ben", "prog"), scorer.Score("ben", "lit"))

	again, err := NewClassifierScorer(NewCorpus(sampleEvidence()), 0, DefaultTrainOptions())
	require.NoError(t, err)
	assert.Equal(t, scorer.Weights(), again.Weights())
}

func TestClassifierNeedsBothClasses(t *testing.T) {
	ev := Evidence{
		Subjects:    []SubjectProfile{{ID: "calc", Name: "Calculus"}},
		Instructors: []InstructorEvidence{{ID: "ana", Experience: []string{"calculus"}, History: []HistoryEntry{{SubjectID: "calc", Times: 1}}}},
	}
	_, err := NewClassifierScorer(NewCorpus(ev), 0, DefaultTrainOptions())
	assert.ErrorIs(t, err, ErrInsufficientLabels)
}

func TestSelectByLabelVolume(t *testing.T) {
	cfg := DefaultConfig()

	scorer, err := Select(sampleEvidence(), cfg)
	require.NoError(t, err)
	assert.Equal(t, StrategySimilarity, scorer.Strategy())

	cfg.AugmentedMinLabels = 2
	scorer, err = Select(sampleEvidence(), cfg)
	require.NoError(t, err)
	assert.Equal(t, StrategyAugmented, scorer.Strategy())

	cfg.ClassifierMinLabels = 2
	scorer, err = Select(sampleEvidence(), cfg)
	require.NoError(t, err)
	assert.Equal(t, StrategyClassifier, scorer.Strategy())
}

func TestScoreMatrix(t *testing.T) {
	ev := sampleEvidence()
	scorer := NewSimilarityScorer(NewCorpus(ev), 0.05)
	instructors := []string{"ana", "ben", "cora"}
	subjects := []string{"calc", "prog", "lit"}

	scores, err := ScoreMatrix(context.Background(), scorer, instructors, subjects, 2)
	require.NoError(t, err)
	require.Len(t, scores, 9)
	for i, instructorID := range instructors {
		for j, subjectID := range subjects {
			s := scores[i*len(subjects)+j]
			assert.Equal(t, instructorID, s.InstructorID)
			assert.Equal(t, subjectID, s.SubjectID)
			assert.Equal(t, scorer.Score(instructorID, subjectID), s.Value, fmt.Sprintf("%s/%s", instructorID, subjectID))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ScoreMatrix(ctx, scorer, instructors, subjects, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
