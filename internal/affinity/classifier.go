package affinity

import (
	"errors"
	"math"
)

// ErrInsufficientLabels is returned when the classifier lacks positive or
// negative examples.
var ErrInsufficientLabels = errors.New("affinity: classifier needs positive and negative examples")

const classifierFeatures = 4

// ClassifierScorer is a logistic regression over facet similarities, trained
// on teaching history as labels. History itself is never a feature.
type ClassifierScorer struct {
	corpus    *Corpus
	coldStart float64
	weights   [classifierFeatures]float64
	bias      float64
}

// TrainOptions controls gradient descent.
type TrainOptions struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

// DefaultTrainOptions returns the tuned defaults.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{Epochs: 400, LearningRate: 0.5, L2: 0.001}
}

func (c *Corpus) features(instructorID, subjectID string) [classifierFeatures]float64 {
	return [classifierFeatures]float64{
		c.FacetSimilarity(instructorID, FacetCredentials, subjectID),
		c.FacetSimilarity(instructorID, FacetExperience, subjectID),
		c.FacetSimilarity(instructorID, FacetPreference, subjectID),
		c.facetBlend(instructorID, subjectID),
	}
}

// facetBlend is the similarity of all non-history facets combined.
func (c *Corpus) facetBlend(instructorID, subjectID string) float64 {
	facets := c.facets[instructorID]
	blend := facets[FacetCredentials].add(facets[FacetExperience], 1).add(facets[FacetPreference], 1).normalize()
	return clamp01(blend.dot(c.subjectVecs[subjectID]))
}

// NewClassifierScorer trains a class-balanced logistic regression with batch
// gradient descent from zero weights, so training is deterministic.
func NewClassifierScorer(corpus *Corpus, coldStart float64, opts TrainOptions) (*ClassifierScorer, error) {
	if opts.Epochs <= 0 {
		opts = DefaultTrainOptions()
	}
	type sample struct {
		x [classifierFeatures]float64
		y float64
	}
	var samples []sample
	positives := 0
	for _, instructorID := range corpus.InstructorIDs() {
		if corpus.coldStart(instructorID) {
			continue
		}
		for _, subjectID := range corpus.SubjectIDs() {
			y := 0.0
			if corpus.HistoryCount(instructorID, subjectID) > 0 {
				y = 1
				positives++
			}
			samples = append(samples, sample{x: corpus.features(instructorID, subjectID), y: y})
		}
	}
	negatives := len(samples) - positives
	if positives == 0 || negatives == 0 {
		return nil, ErrInsufficientLabels
	}
	posWeight := float64(negatives) / float64(positives)

	s := &ClassifierScorer{corpus: corpus, coldStart: clamp01(coldStart)}
	total := float64(len(samples))
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		var grad [classifierFeatures]float64
		var gradBias float64
		for _, smp := range samples {
			weight := 1.0
			if smp.y == 1 {
				weight = posWeight
			}
			diff := weight * (s.predict(smp.x) - smp.y)
			for k := range grad {
				grad[k] += diff * smp.x[k]
			}
			gradBias += diff
		}
		for k := range s.weights {
			s.weights[k] -= opts.LearningRate * (grad[k]/total + opts.L2*s.weights[k])
		}
		s.bias -= opts.LearningRate * gradBias / total
	}
	return s, nil
}

func (s *ClassifierScorer) predict(x [classifierFeatures]float64) float64 {
	z := s.bias
	for k, w := range s.weights {
		z += w * x[k]
	}
	return 1 / (1 + math.Exp(-z))
}

func (s *ClassifierScorer) Strategy() string { return StrategyClassifier }

// Score implements Scorer.
func (s *ClassifierScorer) Score(instructorID, subjectID string) float64 {
	if !s.corpus.known(instructorID, subjectID) {
		return 0
	}
	if s.corpus.coldStart(instructorID) {
		return s.coldStart
	}
	return clamp01(s.predict(s.corpus.features(instructorID, subjectID)))
}

// Weights exposes the trained coefficients, bias last.
func (s *ClassifierScorer) Weights() []float64 {
	return append(s.weights[:], s.bias)
}
