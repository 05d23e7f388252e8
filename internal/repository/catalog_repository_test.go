package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var sectionDetailRowColumns = []string{"id", "semester_id", "code", "year_level", "subject_id", "subject_code", "subject_name", "units", "lecture_minutes", "lab_minutes", "has_lab", "room_type", "room_priority", "is_gened"}

func TestSemesterRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSemesterRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, academic_year, is_active, start_date, end_date, created_at, updated_at FROM semesters WHERE id = $1")).
		WithArgs("sem-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "academic_year", "is_active", "start_date", "end_date", "created_at", "updated_at"}).
			AddRow("sem-1", "First Semester", "2026-2027", true, now, now, now, now))

	semester, err := repo.FindByID(context.Background(), "sem-1")
	require.NoError(t, err)
	assert.Equal(t, "First Semester", semester.Name)

	mock.ExpectQuery(regexp.QuoteMeta("FROM semesters WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryListBySemester(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	rows := sqlmock.NewRows(sectionDetailRowColumns).
		AddRow("sec-1", "sem-1", "BSCS-1A", 1, "sub-1", "CS101", "Programming", 3, 120, 180, true, "Lab", true, false).
		AddRow("sec-2", "sem-1", "BSCS-1B", 1, "sub-2", "GE1", "Purposive Communication", 3, 180, 0, false, nil, false, true)
	mock.ExpectQuery(regexp.QuoteMeta("FROM sections sec JOIN subjects subj ON subj.id = sec.subject_id WHERE sec.semester_id = $1")).
		WithArgs("sem-1").
		WillReturnRows(rows)

	sections, err := repo.ListBySemester(context.Background(), "sem-1")
	require.NoError(t, err)
	require.Len(t, sections, 2)
	require.NotNil(t, sections[0].RoomType)
	assert.Equal(t, "Lab", *sections[0].RoomType)
	assert.Nil(t, sections[1].RoomType)
	assert.True(t, sections[1].IsGenEd)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryFindByIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE sec.semester_id = ? AND sec.id IN (?, ?)")).
		WithArgs("sem-1", "sec-1", "sec-gone").
		WillReturnRows(sqlmock.NewRows(sectionDetailRowColumns).
			AddRow("sec-1", "sem-1", "BSCS-1A", 1, "sub-1", "CS101", "Programming", 3, 120, 0, false, nil, false, false))

	found, err := repo.FindByIDs(context.Background(), nil, "sem-1", []string{"sec-1", "sec-gone"})
	require.NoError(t, err)
	assert.Contains(t, found, "sec-1")
	assert.NotContains(t, found, "sec-gone")

	empty, err := repo.FindByIDs(context.Background(), nil, "sem-1", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstructorRepositoryQueries(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstructorRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM instructors i LEFT JOIN ranks rk ON rk.id = i.rank_id")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "employment_type", "normal_load_hours", "overload_units", "rank_normal_load_hours", "designation_release_hours", "attainment_overload_units", "credentials", "experience", "preference"}).
			AddRow("ins-1", "Ana Cruz", "FULL_TIME", nil, nil, 21.0, 3.0, 9, "{\"MS Mathematics\"}", "{}", "calculus"))
	instructors, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, instructors, 1)
	assert.Nil(t, instructors[0].NormalLoadHours)
	require.NotNil(t, instructors[0].RankNormalLoadHours)
	assert.Equal(t, 21.0, *instructors[0].RankNormalLoadHours)
	assert.Equal(t, []string{"MS Mathematics"}, []string(instructors[0].Credentials))

	mock.ExpectQuery(regexp.QuoteMeta("FROM instructor_availability a JOIN instructors i")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "instructor_id", "day_of_week", "start_time", "end_time"}).
			AddRow("av-1", "ins-1", "MONDAY", "08:00:00", "12:00:00"))
	windows, err := repo.ListAvailability(context.Background())
	require.NoError(t, err)
	assert.Len(t, windows, 1)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT instructor_id, subject_id, COUNT(DISTINCT section_id) AS times FROM schedules")).
		WillReturnRows(sqlmock.NewRows([]string{"instructor_id", "subject_id", "times"}).AddRow("ins-1", "sub-1", 3))
	history, err := repo.ListTeachingHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 3, history[0].Times)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomAndGenEdRepositories(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, building, capacity, room_type, is_active FROM rooms WHERE is_active = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "building", "capacity", "room_type", "is_active"}).
			AddRow("room-1", "CL1", "Main", 40, "Lab", true))
	rooms, err := NewRoomRepository(db).ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	mock.ExpectQuery(regexp.QuoteMeta("FROM gened_blocks WHERE semester_id = $1")).
		WithArgs("sem-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "semester_id", "day_of_week", "start_time", "end_time", "label"}).
			AddRow("gb-1", "sem-1", "MONDAY", "08:00:00", "10:00:00", "NSTP"))
	blocks, err := NewGenEdBlockRepository(db).ListBySemester(context.Background(), "sem-1")
	require.NoError(t, err)
	assert.Len(t, blocks, 1)

	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects ORDER BY code ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "description", "topics", "units", "lecture_minutes", "lab_minutes", "has_lab", "room_type", "room_priority", "is_gened", "created_at", "updated_at"}).
			AddRow("sub-1", "CS101", "Programming", "Intro", "{algorithms,go}", 3, 120, 180, true, "Lab", true, false, time.Now(), time.Now()))
	subjects, err := NewSubjectRepository(db).ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, []string{"algorithms", "go"}, []string(subjects[0].Topics))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest map[string]float64
	assert.ErrorIs(t, repo.Get(context.Background(), AffinityKey("b1"), &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), AffinityKey("b1"), map[string]float64{"a": 1}, time.Minute))
	_, err := repo.Progress(context.Background(), "batch-1")
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.Equal(t, "timetable:batch:batch-1:progress", ProgressKey("batch-1"))
	assert.NoError(t, repo.Close())
}
