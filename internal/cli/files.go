package cli

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-timetable/internal/affinity"
	"github.com/noah-isme/sma-timetable/internal/timetable"
)

// windowFile is a day/time range written the way registrars read it,
// e.g. {day: MON, start: "08:00", end: "12:00"}.
type windowFile struct {
	Day   string `yaml:"day" validate:"required"`
	Start string `yaml:"start" validate:"required"`
	End   string `yaml:"end" validate:"required"`
}

func (w windowFile) parse() (int, int, int, error) {
	day := timetable.DayIndex(w.Day)
	if day < 0 {
		return 0, 0, 0, fmt.Errorf("unknown day %q", w.Day)
	}
	start, err := timetable.ParseClock(w.Start)
	if err != nil {
		return 0, 0, 0, err
	}
	end, err := timetable.ParseClock(w.End)
	if err != nil {
		return 0, 0, 0, err
	}
	if end <= start {
		return 0, 0, 0, fmt.Errorf("window %s %s-%s ends before it starts", w.Day, w.Start, w.End)
	}
	return day, start, end, nil
}

type instructorFile struct {
	ID              string       `yaml:"id" validate:"required"`
	Name            string       `yaml:"name"`
	Employment      string       `yaml:"employment"`
	NormalLoadHours *float64     `yaml:"normalLoadHours"`
	OverloadUnits   *int         `yaml:"overloadUnits"`
	Availability    []windowFile `yaml:"availability" validate:"dive"`
}

type affinityFile struct {
	InstructorID string  `yaml:"instructorId" validate:"required"`
	SubjectID    string  `yaml:"subjectId" validate:"required"`
	Score        float64 `yaml:"score" validate:"gte=0,lte=1"`
}

// snapshotFile is the YAML form of a solve input.
type snapshotFile struct {
	SemesterID  string              `yaml:"semesterId" validate:"required"`
	Sections    []timetable.Section `yaml:"sections" validate:"dive"`
	Instructors []instructorFile    `yaml:"instructors" validate:"dive"`
	Rooms       []timetable.Room    `yaml:"rooms" validate:"dive"`
	GenEdBlocks []windowFile        `yaml:"genEdBlocks" validate:"dive"`
	Affinity    []affinityFile      `yaml:"affinity" validate:"dive"`
}

// Snapshot resolves load limits with policy and converts windows to minutes.
func (f snapshotFile) Snapshot(policy timetable.LoadPolicy) (timetable.Snapshot, error) {
	snap := timetable.Snapshot{
		SemesterID: f.SemesterID,
		Sections:   f.Sections,
		Rooms:      f.Rooms,
		Affinity:   make(map[timetable.AffinityKey]float64, len(f.Affinity)),
	}
	for _, in := range f.Instructors {
		normal, overloadCap := policy.Resolve(timetable.LoadProfile{
			EmploymentType:  in.Employment,
			NormalLoadHours: in.NormalLoadHours,
			OverloadUnits:   in.OverloadUnits,
		})
		instr := timetable.Instructor{
			ID:                 in.ID,
			Name:               in.Name,
			NormalMinutes:      normal,
			OverloadCapMinutes: overloadCap,
		}
		for _, w := range in.Availability {
			day, start, end, err := w.parse()
			if err != nil {
				return timetable.Snapshot{}, fmt.Errorf("instructor %s availability: %w", in.ID, err)
			}
			instr.Availability = append(instr.Availability, timetable.AvailabilityWindow{Day: day, Start: start, End: end})
		}
		snap.Instructors = append(snap.Instructors, instr)
	}
	for _, w := range f.GenEdBlocks {
		day, start, end, err := w.parse()
		if err != nil {
			return timetable.Snapshot{}, fmt.Errorf("gen ed block: %w", err)
		}
		snap.GenEdBlocks = append(snap.GenEdBlocks, timetable.GenEdBlock{Day: day, Start: start, End: end})
	}
	for _, a := range f.Affinity {
		snap.Affinity[timetable.AffinityKey{InstructorID: a.InstructorID, SubjectID: a.SubjectID}] = a.Score
	}
	return snap, nil
}

func readYAML(path string, validate *validator.Validate, dest interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := validate.Struct(dest); err != nil {
		return fmt.Errorf("validating %s: %w", path, err)
	}
	return nil
}

func loadSnapshotFile(path string, validate *validator.Validate) (snapshotFile, error) {
	var f snapshotFile
	err := readYAML(path, validate, &f)
	return f, err
}

func loadEvidenceFile(path string, validate *validator.Validate) (affinity.Evidence, error) {
	var ev affinity.Evidence
	err := readYAML(path, validate, &ev)
	return ev, err
}
