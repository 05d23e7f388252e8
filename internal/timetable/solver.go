package timetable

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Status is the outcome class of a solve.
type Status string

const (
	StatusOptimal    Status = "OPTIMAL"
	StatusFeasible   Status = "FEASIBLE"
	StatusInfeasible Status = "INFEASIBLE"
	StatusCancelled  Status = "CANCELLED"
)

// ProgressFunc receives coarse progress updates from the solving goroutine.
// Implementations must return quickly.
type ProgressFunc func(percent int, message string)

// Options bounds a solve.
type Options struct {
	TimeLimit        time.Duration
	Seed             int64
	MaxIterations    int
	StallIterations  int
	NodeLimit        int
	ExactTaskLimit   int
	NeighbourhoodMax int
	Progress         ProgressFunc
	ProgressInterval time.Duration
	Logger           *zap.Logger
}

// DefaultOptions returns the production search limits.
func DefaultOptions() Options {
	return Options{
		TimeLimit:        30 * time.Second,
		Seed:             1,
		MaxIterations:    5000,
		StallIterations:  500,
		NodeLimit:        200000,
		ExactTaskLimit:   16,
		NeighbourhoodMax: 8,
		ProgressInterval: time.Second,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.TimeLimit <= 0 {
		o.TimeLimit = def.TimeLimit
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	if o.StallIterations <= 0 {
		o.StallIterations = def.StallIterations
	}
	if o.NodeLimit <= 0 {
		o.NodeLimit = def.NodeLimit
	}
	if o.ExactTaskLimit < 0 {
		o.ExactTaskLimit = 0
	} else if o.ExactTaskLimit == 0 {
		o.ExactTaskLimit = def.ExactTaskLimit
	}
	if o.NeighbourhoodMax <= 0 {
		o.NeighbourhoodMax = def.NeighbourhoodMax
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = def.ProgressInterval
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Placement is a resolved task assignment.
type Placement struct {
	TaskID       string     `json:"taskId"`
	SectionID    string     `json:"sectionId"`
	SubjectID    string     `json:"subjectId"`
	Kind         TaskKind   `json:"kind"`
	Day          int        `json:"day"`
	DayName      string     `json:"dayName"`
	Start        int        `json:"start"`
	End          int        `json:"end"`
	InstructorID string     `json:"instructorId"`
	RoomID       string     `json:"roomId,omitempty"`
	Bucket       TimeBucket `json:"-"`
	Overtime     bool       `json:"overtime"`
}

// Result is the output of Solve.
type Result struct {
	Status     Status        `json:"status"`
	Placements []Placement   `json:"placements"`
	Unplaced   []TaskIssue   `json:"unplaced,omitempty"`
	Assignment []Slot        `json:"-"`
	Objective  int64         `json:"objective"`
	Breakdown  Breakdown     `json:"breakdown"`
	Diagnostic Diagnostic    `json:"diagnostic"`
	Elapsed    time.Duration `json:"elapsed"`
	Iterations int           `json:"iterations"`
	Nodes      int           `json:"nodes"`
}

// Placed reports the number of placed tasks.
func (r *Result) Placed() int {
	return len(r.Placements)
}

// Solve searches for an assignment maximizing the model objective within the
// time budget. It returns *InfeasibleError when no task can be placed and
// ErrCancelled when ctx ends before anything was placed. A cancelled search
// that already holds an assignment returns it with StatusCancelled.
func Solve(ctx context.Context, m *Model, opts Options) (*Result, error) {
	opts = opts.normalized()
	logger := opts.Logger
	started := time.Now()
	deadline := started.Add(opts.TimeLimit)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	progress := newProgressReporter(opts.Progress, opts.ProgressInterval, started, deadline)
	progress.force(0, "building initial assignment")

	order := difficultyOrder(m)
	st := newState(m)
	greedy(st, order)
	best := st.snapshot()
	bestObj := st.objective()
	logger.Debug("initial assignment built",
		zap.String("semester_id", m.SemesterID),
		zap.Int("placed", st.placed),
		zap.Int("tasks", len(m.Tasks)),
		zap.Int64("objective", bestObj))

	status := StatusFeasible
	cancelled := false
	iterations, nodes := 0, 0

	if ctx.Err() != nil {
		cancelled = true
	}

	if !cancelled && len(m.Tasks) <= opts.ExactTaskLimit {
		progress.force(5, "running exhaustive search")
		b := &branchAndBound{
			ctx:      ctx,
			state:    newState(m),
			order:    order,
			best:     best,
			bestObj:  bestObj,
			limit:    opts.NodeLimit,
			deadline: deadline,
		}
		b.prepare()
		b.search(0)
		nodes = b.nodes
		if b.improved {
			best, bestObj = b.best, b.bestObj
		}
		switch {
		case b.cancelled:
			cancelled = true
		case !b.aborted:
			status = StatusOptimal
		}
	}

	if status != StatusOptimal && !cancelled && len(m.Tasks) > 0 {
		rng := rand.New(rand.NewSource(opts.Seed))
		st.load(best)
		stall := 0
		for iterations < opts.MaxIterations && stall < opts.StallIterations {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			if time.Now().After(deadline) {
				break
			}
			iterations++
			size := 2 + rng.Intn(opts.NeighbourhoodMax)
			freed := destroy(st, rng, size)
			repair(st, freed, rng, 5)
			if obj := st.objective(); obj > bestObj {
				best, bestObj = st.snapshot(), obj
				stall = 0
			} else {
				stall++
				if obj < bestObj {
					st.load(best)
				}
			}
			progress.tick(iterations, opts.MaxIterations, st.placed, len(m.Tasks))
		}
	}

	final := newState(m)
	final.load(best)
	if cancelled {
		status = StatusCancelled
		if final.placed == 0 {
			logger.Info("solve cancelled before any task was placed", zap.String("semester_id", m.SemesterID))
			return nil, fmt.Errorf("%w: %v", ErrCancelled, context.Cause(ctx))
		}
	}

	if violations := Verify(m, best); len(violations) > 0 {
		logger.Error("assignment failed verification",
			zap.String("semester_id", m.SemesterID),
			zap.Int("violations", len(violations)),
			zap.String("first", violations[0].String()))
		return nil, fmt.Errorf("timetable: assignment failed verification: %s", violations[0])
	}

	diag := Diagnose(m)
	unplaced := unplacedIssues(m, final)
	diag.Unplaced = unplaced
	if final.placed == 0 {
		logger.Warn("no feasible assignment",
			zap.String("semester_id", m.SemesterID),
			zap.Int("tasks", len(m.Tasks)),
			zap.Int("supply_minutes", diag.SupplyMinutes),
			zap.Int("demand_minutes", diag.DemandMinutes))
		return nil, &InfeasibleError{Diagnostic: diag}
	}

	res := &Result{
		Status:     status,
		Placements: placements(m, best),
		Unplaced:   unplaced,
		Assignment: best,
		Objective:  bestObj,
		Breakdown:  m.Evaluate(best),
		Diagnostic: diag,
		Elapsed:    time.Since(started),
		Iterations: iterations,
		Nodes:      nodes,
	}
	progress.force(100, fmt.Sprintf("placed %d of %d tasks", res.Placed(), len(m.Tasks)))
	logger.Info("solve finished",
		zap.String("semester_id", m.SemesterID),
		zap.String("status", string(res.Status)),
		zap.Int("placed", res.Placed()),
		zap.Int("unplaced", len(res.Unplaced)),
		zap.Int64("objective", res.Objective),
		zap.Int("iterations", iterations),
		zap.Int("nodes", nodes),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func unplacedIssues(m *Model, st *state) []TaskIssue {
	known := make(map[int]TaskIssue, len(m.Issues))
	for _, issue := range m.Issues {
		if _, ok := known[issue.Task]; !ok {
			known[issue.Task] = issue
		}
	}
	var out []TaskIssue
	for t := range m.Tasks {
		if st.slots[t].Placed {
			continue
		}
		if issue, ok := known[t]; ok {
			out = append(out, issue)
			continue
		}
		reason := st.blockedReason(t)
		detail := "every candidate placement conflicts with the rest of the assignment"
		if reason == ReasonLoadCapExhausted {
			detail = "every eligible instructor is at normal plus overload capacity"
		}
		out = append(out, m.issue(t, reason, detail))
	}
	return out
}

func placements(m *Model, slots []Slot) []Placement {
	var out []Placement
	for t, s := range slots {
		if !s.Placed {
			continue
		}
		task := m.Tasks[t]
		bucket := m.Grid.Classify(s.Start, task.Minutes)
		out = append(out, Placement{
			TaskID:       task.ID,
			SectionID:    task.SectionID,
			SubjectID:    task.SubjectID,
			Kind:         task.Kind,
			Day:          s.Day,
			DayName:      DayName(s.Day),
			Start:        s.Start,
			End:          s.End(task),
			InstructorID: m.InstructorID(s.Instructor),
			RoomID:       m.RoomID(s.Room),
			Bucket:       bucket,
			Overtime:     bucket == BucketOverload,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return strings.Compare(out[i].TaskID, out[j].TaskID) < 0
	})
	return out
}

type branchAndBound struct {
	ctx      context.Context
	state    *state
	order    []int
	suffix   []int64
	best     []Slot
	bestObj  int64
	limit    int
	deadline time.Time

	nodes     int
	improved  bool
	aborted   bool
	cancelled bool
}

func (b *branchAndBound) prepare() {
	m := b.state.m
	b.suffix = make([]int64, len(b.order)+1)
	for d := len(b.order) - 1; d >= 0; d-- {
		b.suffix[d] = b.suffix[d+1] + m.maxGain(b.order[d])
	}
}

// search explores placements depth first. Penalties are never negative, so
// the positive gain of the partial assignment plus the best remaining gains
// bounds any completion.
func (b *branchAndBound) search(depth int) {
	if b.aborted {
		return
	}
	b.nodes++
	if b.nodes > b.limit {
		b.aborted = true
		return
	}
	if b.nodes%1024 == 0 {
		if b.ctx.Err() != nil {
			b.aborted, b.cancelled = true, true
			return
		}
		if time.Now().After(b.deadline) {
			b.aborted = true
			return
		}
	}
	s := b.state
	if depth == len(b.order) {
		if obj := s.objective(); obj > b.bestObj {
			b.best, b.bestObj, b.improved = s.snapshot(), obj, true
		}
		return
	}
	if s.positive+b.suffix[depth] <= b.bestObj {
		return
	}
	t := b.order[depth]
	cands := s.candidates(t, true)
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].gain > cands[j].gain })
	for _, c := range cands {
		s.place(t, c.slot)
		b.search(depth + 1)
		s.remove(t)
		if b.aborted {
			return
		}
	}
	b.search(depth + 1)
}

type progressReporter struct {
	fn       ProgressFunc
	interval time.Duration
	started  time.Time
	deadline time.Time
	last     time.Time
	percent  int
}

func newProgressReporter(fn ProgressFunc, interval time.Duration, started, deadline time.Time) *progressReporter {
	return &progressReporter{fn: fn, interval: interval, started: started, deadline: deadline}
}

func (p *progressReporter) force(percent int, message string) {
	if p.fn == nil {
		return
	}
	if percent < p.percent {
		percent = p.percent
	}
	p.percent = percent
	p.last = time.Now()
	p.fn(percent, message)
}

func (p *progressReporter) tick(iteration, maxIterations, placed, tasks int) {
	if p.fn == nil {
		return
	}
	now := time.Now()
	if now.Sub(p.last) < p.interval {
		return
	}
	byIterations := iteration * 100 / maxIterations
	byTime := 0
	if budget := p.deadline.Sub(p.started); budget > 0 {
		byTime = int(now.Sub(p.started) * 100 / budget)
	}
	percent := byIterations
	if byTime > percent {
		percent = byTime
	}
	if percent > 99 {
		percent = 99
	}
	p.force(percent, fmt.Sprintf("improving assignment, %d of %d tasks placed", placed, tasks))
}
