package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/coursegen/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

func NewCourseRepository(db *sql.DB) course.Repository {
	return &courseRepository{db: sqlx.NewDb(db, "postgres")}
}

type dbCourse struct {
	ID            string     `db:"id"`
	OwnerID       string     `db:"owner_id"`
	Topic         string     `db:"topic"`
	Difficulty    string     `db:"difficulty"`
	CodingRatio   int        `db:"coding_ratio"`
	State         string     `db:"state"`
	Outline       []byte     `db:"outline"`
	Revision      int        `db:"revision"`
	FailureReason string     `db:"failure_reason"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at"`
}

func (c dbCourse) toCore() (course.Course, error) {
	var outline []course.ChapterOutline
	if err := json.Unmarshal(c.Outline, &outline); err != nil {
		return course.Course{}, errors.Wrap(err, "decoding outline")
	}
	return course.Course{
		ID:            c.ID,
		OwnerID:       c.OwnerID,
		Topic:         c.Topic,
		Difficulty:    c.Difficulty,
		CodingRatio:   c.CodingRatio,
		State:         course.State(c.State),
		Outline:       outline,
		Revision:      c.Revision,
		FailureReason: c.FailureReason,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		DeletedAt:     c.DeletedAt,
	}, nil
}

func toDBCourse(crs course.Course) (dbCourse, error) {
	outline := crs.Outline
	if outline == nil {
		outline = []course.ChapterOutline{}
	}
	raw, err := json.Marshal(outline)
	if err != nil {
		return dbCourse{}, errors.Wrap(err, "encoding outline")
	}
	return dbCourse{
		ID:            crs.ID,
		OwnerID:       crs.OwnerID,
		Topic:         crs.Topic,
		Difficulty:    crs.Difficulty,
		CodingRatio:   crs.CodingRatio,
		State:         string(crs.State),
		Outline:       raw,
		Revision:      crs.Revision,
		FailureReason: crs.FailureReason,
		CreatedAt:     crs.CreatedAt,
		UpdatedAt:     crs.UpdatedAt,
		DeletedAt:     crs.DeletedAt,
	}, nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	row, err := toDBCourse(crs)
	if err != nil {
		return course.Course{}, err
	}
	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO course (id, owner_id, topic, difficulty, coding_ratio, state, outline, revision, failure_reason, created_at, updated_at)
		VALUES (:id, :owner_id, :topic, :difficulty, :coding_ratio, :state, :outline, :revision, :failure_reason, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var row dbCourse
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM course WHERE id = $1 AND deleted_at IS NULL`, id)
	if err == sql.ErrNoRows {
		return course.Course{}, course.ErrNotFound
	}
	if err != nil {
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	return row.toCore()
}

func (repo *courseRepository) QueryCoursesByOwner(ctx context.Context, ownerID string) ([]course.Course, error) {
	var rows []dbCourse
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM course WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		crs, err := row.toCore()
		if err != nil {
			return nil, err
		}
		courses = append(courses, crs)
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	row, err := toDBCourse(crs)
	if err != nil {
		return course.Course{}, err
	}
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE course
		SET topic = :topic, difficulty = :difficulty, coding_ratio = :coding_ratio, state = :state,
		    outline = :outline, revision = :revision, failure_reason = :failure_reason, updated_at = :updated_at
		WHERE id = :id AND deleted_at IS NULL`,
		row,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

func (repo *courseRepository) SoftDeleteCourse(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE course SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.ErrNotFound
	}
	return nil
}

type dbFeedbackRound struct {
	ID              string    `db:"id"`
	CourseID        string    `db:"course_id"`
	Feedback        string    `db:"feedback"`
	Keep            []byte    `db:"keep"`
	AppliedRevision int       `db:"applied_revision"`
	Diff            string    `db:"diff"`
	CreatedAt       time.Time `db:"created_at"`
}

func (r dbFeedbackRound) toCore() (course.FeedbackRound, error) {
	var keep []string
	if err := json.Unmarshal(r.Keep, &keep); err != nil {
		return course.FeedbackRound{}, errors.Wrap(err, "decoding keep list")
	}
	return course.FeedbackRound{
		ID:              r.ID,
		CourseID:        r.CourseID,
		Feedback:        r.Feedback,
		Keep:            keep,
		AppliedRevision: r.AppliedRevision,
		Diff:            r.Diff,
		CreatedAt:       r.CreatedAt,
	}, nil
}

func (repo *courseRepository) CreateFeedbackRound(ctx context.Context, round course.FeedbackRound) (course.FeedbackRound, error) {
	keep := round.Keep
	if keep == nil {
		keep = []string{}
	}
	raw, err := json.Marshal(keep)
	if err != nil {
		return course.FeedbackRound{}, errors.Wrap(err, "encoding keep list")
	}
	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO feedback_round (id, course_id, feedback, keep, applied_revision, diff, created_at)
		VALUES (:id, :course_id, :feedback, :keep, :applied_revision, :diff, :created_at)`,
		dbFeedbackRound{
			ID:              round.ID,
			CourseID:        round.CourseID,
			Feedback:        round.Feedback,
			Keep:            raw,
			AppliedRevision: round.AppliedRevision,
			Diff:            round.Diff,
			CreatedAt:       round.CreatedAt,
		},
	)
	if err != nil {
		return course.FeedbackRound{}, errors.Wrap(err, "inserting feedback round")
	}
	return round, nil
}

func (repo *courseRepository) QueryFeedbackRounds(ctx context.Context, courseID string) ([]course.FeedbackRound, error) {
	var rows []dbFeedbackRound
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM feedback_round WHERE course_id = $1 ORDER BY created_at`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying feedback rounds")
	}
	rounds := make([]course.FeedbackRound, 0, len(rows))
	for _, row := range rows {
		round, err := row.toCore()
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, round)
	}
	return rounds, nil
}

type dbChapterContent struct {
	ID        string    `db:"id"`
	CourseID  string    `db:"course_id"`
	Position  int       `db:"position"`
	Version   int       `db:"version"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

func (repo *courseRepository) GetLatestChapterContent(ctx context.Context, courseID string, position int) (course.ChapterContent, error) {
	var row dbChapterContent
	err := repo.db.GetContext(ctx, &row, `
		SELECT * FROM chapter_content
		WHERE course_id = $1 AND position = $2
		ORDER BY version DESC
		LIMIT 1`,
		courseID, position,
	)
	if err == sql.ErrNoRows {
		return course.ChapterContent{}, course.ErrContentNotFound
	}
	if err != nil {
		return course.ChapterContent{}, errors.Wrap(err, "getting chapter content")
	}
	return course.ChapterContent(row), nil
}

func (repo *courseRepository) CreateChapterContent(ctx context.Context, content course.ChapterContent) (course.ChapterContent, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO chapter_content (id, course_id, position, version, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		content.ID, content.CourseID, content.Position, content.Version, content.Body, content.CreatedAt,
	)
	if err != nil {
		return course.ChapterContent{}, errors.Wrap(err, "inserting chapter content")
	}
	return content, nil
}
