package affinity

// Strategy names recorded with persisted scores.
const (
	StrategySimilarity = "similarity"
	StrategyAugmented  = "augmented"
	StrategyClassifier = "classifier"
)

// Scorer estimates how well an instructor matches a subject. Scores are in
// [0,1] and deterministic for a given evidence snapshot. Implementations are
// immutable after construction and safe for concurrent use.
type Scorer interface {
	Strategy() string
	Score(instructorID, subjectID string) float64
}

// SimilarityScorer is the unsupervised TF-IDF cosine similarity strategy.
type SimilarityScorer struct {
	corpus    *Corpus
	coldStart float64
}

// NewSimilarityScorer scores pairs by profile similarity alone.
func NewSimilarityScorer(corpus *Corpus, coldStart float64) *SimilarityScorer {
	return &SimilarityScorer{corpus: corpus, coldStart: clamp01(coldStart)}
}

func (s *SimilarityScorer) Strategy() string { return StrategySimilarity }

// Score implements Scorer.
func (s *SimilarityScorer) Score(instructorID, subjectID string) float64 {
	if !s.corpus.known(instructorID, subjectID) {
		return 0
	}
	if s.corpus.coldStart(instructorID) {
		return s.coldStart
	}
	return s.corpus.Similarity(instructorID, subjectID)
}

// AugmentedScorer enriches each instructor profile with the profiles of
// subjects they taught plus confidently similar subjects (self-training),
// then scores by cosine similarity of the augmented profile.
type AugmentedScorer struct {
	corpus    *Corpus
	coldStart float64
	profiles  map[string]vector
}

// AugmentOptions tunes pseudo-labelling.
type AugmentOptions struct {
	// HistoryWeight scales subject profiles of taught subjects.
	HistoryWeight float64
	// PseudoThreshold is the similarity above which an unseen subject is
	// treated as a pseudo-positive.
	PseudoThreshold float64
	PseudoWeight    float64
}

// DefaultAugmentOptions returns the tuned defaults.
func DefaultAugmentOptions() AugmentOptions {
	return AugmentOptions{HistoryWeight: 0.5, PseudoThreshold: 0.35, PseudoWeight: 0.25}
}

// NewAugmentedScorer builds augmented instructor profiles.
func NewAugmentedScorer(corpus *Corpus, coldStart float64, opts AugmentOptions) *AugmentedScorer {
	s := &AugmentedScorer{corpus: corpus, coldStart: clamp01(coldStart), profiles: make(map[string]vector)}
	subjects := corpus.SubjectIDs()
	for _, id := range corpus.InstructorIDs() {
		base := corpus.instructors[id]
		profile := base.add(nil, 0)
		for _, subjectID := range subjects {
			subject := corpus.subjectVecs[subjectID]
			if n := corpus.HistoryCount(id, subjectID); n > 0 {
				profile = profile.add(subject, opts.HistoryWeight*float64(min(n, maxHistoryRepeats)))
				continue
			}
			if base.dot(subject) >= opts.PseudoThreshold {
				profile = profile.add(subject, opts.PseudoWeight)
			}
		}
		s.profiles[id] = profile.normalize()
	}
	return s
}

func (s *AugmentedScorer) Strategy() string { return StrategyAugmented }

// Score implements Scorer.
func (s *AugmentedScorer) Score(instructorID, subjectID string) float64 {
	if !s.corpus.known(instructorID, subjectID) {
		return 0
	}
	if s.corpus.coldStart(instructorID) {
		return s.coldStart
	}
	return clamp01(s.profiles[instructorID].dot(s.corpus.subjectVecs[subjectID]))
}
