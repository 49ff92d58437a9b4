package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/coursegen/core/course"
)

type courseRepository struct {
	db *courseTable
}

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

// copyCourse deep-copies the outline so callers never alias stored state.
func copyCourse(crs course.Course) course.Course {
	outline := make([]course.ChapterOutline, len(crs.Outline))
	copy(outline, crs.Outline)
	crs.Outline = outline
	return crs
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := copyCourse(crs)
	repo.db.courses[crs.ID] = &stored
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok && !crs.IsDeleted() {
		return copyCourse(*crs), nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCoursesByOwner(_ context.Context, ownerID string) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0)
	for _, crs := range repo.db.courses {
		if crs.OwnerID == ownerID && !crs.IsDeleted() {
			courses = append(courses, copyCourse(*crs))
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.courses[crs.ID]
	if !ok || orig.IsDeleted() {
		return course.Course{}, course.ErrNotFound
	}
	stored := copyCourse(crs)
	stored.CreatedAt = orig.CreatedAt
	repo.db.courses[crs.ID] = &stored
	return copyCourse(stored), nil
}

func (repo *courseRepository) SoftDeleteCourse(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs, ok := repo.db.courses[id]
	if !ok || crs.IsDeleted() {
		return course.ErrNotFound
	}
	now := time.Now().UTC()
	crs.DeletedAt = &now
	return nil
}

func (repo *courseRepository) CreateFeedbackRound(_ context.Context, round course.FeedbackRound) (course.FeedbackRound, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.rounds[round.CourseID] = append(repo.db.rounds[round.CourseID], round)
	return round, nil
}

func (repo *courseRepository) QueryFeedbackRounds(_ context.Context, courseID string) ([]course.FeedbackRound, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rounds := make([]course.FeedbackRound, len(repo.db.rounds[courseID]))
	copy(rounds, repo.db.rounds[courseID])
	return rounds, nil
}

func (repo *courseRepository) GetLatestChapterContent(_ context.Context, courseID string, position int) (course.ChapterContent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var latest *course.ChapterContent
	for i, c := range repo.db.contents[courseID] {
		if c.Position == position && (latest == nil || c.Version > latest.Version) {
			latest = &repo.db.contents[courseID][i]
		}
	}
	if latest == nil {
		return course.ChapterContent{}, course.ErrContentNotFound
	}
	return *latest, nil
}

func (repo *courseRepository) CreateChapterContent(_ context.Context, content course.ChapterContent) (course.ChapterContent, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.contents[content.CourseID] = append(repo.db.contents[content.CourseID], content)
	return content, nil
}
