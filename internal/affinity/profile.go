package affinity

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// maxHistoryRepeats caps how often a taught subject is repeated in a profile.
const maxHistoryRepeats = 5

// HistoryEntry records how often an instructor taught a subject.
type HistoryEntry struct {
	SubjectID string `yaml:"subjectId" validate:"required"`
	Times     int    `yaml:"times" validate:"min=0"`
}

// InstructorEvidence is the raw text evidence collected for one instructor.
type InstructorEvidence struct {
	ID          string         `yaml:"id" validate:"required"`
	Credentials []string       `yaml:"credentials"`
	Experience  []string       `yaml:"experience"`
	History     []HistoryEntry `yaml:"history" validate:"dive"`
	Preference  string         `yaml:"preference"`
}

// HasEvidence reports whether anything is known about the instructor.
func (e InstructorEvidence) HasEvidence() bool {
	return len(e.Credentials) > 0 || len(e.Experience) > 0 || len(e.History) > 0 || strings.TrimSpace(e.Preference) != ""
}

// SubjectProfile is the descriptive text of a subject.
type SubjectProfile struct {
	ID          string   `yaml:"id" validate:"required"`
	Code        string   `yaml:"code"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Topics      []string `yaml:"topics"`
}

func (s SubjectProfile) text() string {
	return strings.Join(append([]string{s.Code, s.Name, s.Description}, s.Topics...), " ")
}

// Evidence is the full input of an affinity batch.
type Evidence struct {
	Instructors []InstructorEvidence `yaml:"instructors" validate:"dive"`
	Subjects    []SubjectProfile     `yaml:"subjects" validate:"dive"`
}

// LabeledPairs counts instructor/subject pairs backed by teaching history.
func (e Evidence) LabeledPairs() int {
	return lo.SumBy(e.Instructors, func(instr InstructorEvidence) int {
		return len(lo.Filter(instr.History, func(h HistoryEntry, _ int) bool { return h.Times > 0 }))
	})
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "the": {}, "of": {}, "in": {}, "on": {}, "for": {}, "to": {},
	"with": {}, "at": {}, "by": {}, "or": {}, "is": {}, "are": {}, "as": {}, "from": {}, "i": {},
	"my": {}, "me": {}, "be": {}, "it": {}, "this": {}, "that": {}, "into": {}, "ii": {}, "iii": {},
}

// Tokenize lowercases text, splits on anything that is not a letter or digit
// and drops stopwords and single characters.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return lo.Filter(fields, func(tok string, _ int) bool {
		if len(tok) < 2 {
			return false
		}
		_, stop := stopwords[tok]
		return !stop
	})
}

// vector is a sparse L2-normalised term weight vector.
type vector map[string]float64

func (v vector) dot(o vector) float64 {
	if len(o) < len(v) {
		v, o = o, v
	}
	var sum float64
	for _, term := range v.terms() {
		sum += v[term] * o[term]
	}
	return sum
}

// terms lists the vector's terms in sorted order so float sums are stable.
func (v vector) terms() []string {
	out := lo.Keys(v)
	sort.Strings(out)
	return out
}

func (v vector) normalize() vector {
	var norm float64
	for _, term := range v.terms() {
		norm += v[term] * v[term]
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for term := range v {
		v[term] /= norm
	}
	return v
}

// add returns v + scale*o without mutating either operand.
func (v vector) add(o vector, scale float64) vector {
	out := make(vector, len(v)+len(o))
	for term, w := range v {
		out[term] = w
	}
	for term, w := range o {
		out[term] += scale * w
	}
	return out
}

// Corpus holds tokenized instructor and subject documents with shared
// inverse document frequencies.
type Corpus struct {
	evidence    map[string]InstructorEvidence
	subjects    map[string]SubjectProfile
	instructors map[string]vector
	subjectVecs map[string]vector
	facets      map[string]map[string]vector
	idf         map[string]float64
}

// Facet names used by the classifier features.
const (
	FacetCredentials = "credentials"
	FacetExperience  = "experience"
	FacetPreference  = "preference"
)

// NewCorpus tokenizes every profile and fits smoothed IDF weights.
func NewCorpus(ev Evidence) *Corpus {
	c := &Corpus{
		evidence:    make(map[string]InstructorEvidence, len(ev.Instructors)),
		subjects:    make(map[string]SubjectProfile, len(ev.Subjects)),
		instructors: make(map[string]vector, len(ev.Instructors)),
		subjectVecs: make(map[string]vector, len(ev.Subjects)),
		facets:      make(map[string]map[string]vector, len(ev.Instructors)),
		idf:         make(map[string]float64),
	}
	for _, s := range ev.Subjects {
		c.subjects[s.ID] = s
	}

	subjectDocs := make(map[string][]string, len(ev.Subjects))
	for _, s := range ev.Subjects {
		subjectDocs[s.ID] = Tokenize(s.text())
	}
	instructorDocs := make(map[string][]string, len(ev.Instructors))
	facetDocs := make(map[string]map[string][]string, len(ev.Instructors))
	for _, instr := range ev.Instructors {
		c.evidence[instr.ID] = instr
		facets := map[string][]string{
			FacetCredentials: Tokenize(strings.Join(instr.Credentials, " ")),
			FacetExperience:  Tokenize(strings.Join(instr.Experience, " ")),
			FacetPreference:  Tokenize(instr.Preference),
		}
		doc := append(append(append([]string{}, facets[FacetCredentials]...), facets[FacetExperience]...), facets[FacetPreference]...)
		for _, h := range instr.History {
			subject, ok := c.subjects[h.SubjectID]
			if !ok || h.Times <= 0 {
				continue
			}
			tokens := Tokenize(subject.Code + " " + subject.Name)
			for i := 0; i < min(h.Times, maxHistoryRepeats); i++ {
				doc = append(doc, tokens...)
			}
		}
		instructorDocs[instr.ID] = doc
		facetDocs[instr.ID] = facets
	}

	df := make(map[string]int)
	docs := 0
	for _, group := range []map[string][]string{subjectDocs, instructorDocs} {
		for _, doc := range group {
			docs++
			for _, term := range lo.Uniq(doc) {
				df[term]++
			}
		}
	}
	for term, count := range df {
		c.idf[term] = math.Log(float64(1+docs)/float64(1+count)) + 1
	}

	for id, doc := range subjectDocs {
		c.subjectVecs[id] = c.weigh(doc)
	}
	for id, doc := range instructorDocs {
		c.instructors[id] = c.weigh(doc)
		c.facets[id] = make(map[string]vector, len(facetDocs[id]))
		for name, tokens := range facetDocs[id] {
			c.facets[id][name] = c.weigh(tokens)
		}
	}
	return c
}

func (c *Corpus) weigh(tokens []string) vector {
	v := make(vector)
	for _, tok := range tokens {
		v[tok]++
	}
	for term, tf := range v {
		idf, ok := c.idf[term]
		if !ok {
			idf = 1
		}
		v[term] = (1 + math.Log(tf)) * idf
	}
	return v.normalize()
}

// InstructorIDs lists instructors in the corpus in sorted order.
func (c *Corpus) InstructorIDs() []string {
	ids := lo.Keys(c.evidence)
	sort.Strings(ids)
	return ids
}

// SubjectIDs lists subjects in the corpus in sorted order.
func (c *Corpus) SubjectIDs() []string {
	ids := lo.Keys(c.subjects)
	sort.Strings(ids)
	return ids
}

// Evidence returns the stored evidence of an instructor.
func (c *Corpus) Evidence(instructorID string) (InstructorEvidence, bool) {
	ev, ok := c.evidence[instructorID]
	return ev, ok
}

// HistoryCount is how often the instructor taught the subject.
func (c *Corpus) HistoryCount(instructorID, subjectID string) int {
	total := 0
	for _, h := range c.evidence[instructorID].History {
		if h.SubjectID == subjectID && h.Times > 0 {
			total += h.Times
		}
	}
	return total
}

// Similarity is the cosine similarity of the two full profiles.
func (c *Corpus) Similarity(instructorID, subjectID string) float64 {
	return clamp01(c.instructors[instructorID].dot(c.subjectVecs[subjectID]))
}

// FacetSimilarity compares one facet of an instructor profile with a subject.
func (c *Corpus) FacetSimilarity(instructorID, facet, subjectID string) float64 {
	return clamp01(c.facets[instructorID][facet].dot(c.subjectVecs[subjectID]))
}

func (c *Corpus) known(instructorID, subjectID string) bool {
	_, iok := c.evidence[instructorID]
	_, sok := c.subjects[subjectID]
	return iok && sok
}

func (c *Corpus) coldStart(instructorID string) bool {
	return !c.evidence[instructorID].HasEvidence() || len(c.instructors[instructorID]) == 0
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
