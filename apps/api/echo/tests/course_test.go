package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/trezcool/coursegen/core/course"
)

func Test_courseApi_authRequired(t *testing.T) {
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/v1/courses"},
		{http.MethodGet, "/v1/courses"},
		{http.MethodGet, "/v1/courses/topics"},
		{http.MethodGet, "/v1/courses/some-id"},
		{http.MethodDelete, "/v1/courses/some-id"},
		{http.MethodPost, "/v1/courses/some-id/feedback"},
		{http.MethodPost, "/v1/courses/some-id/approve"},
		{http.MethodPost, "/v1/courses/some-id/start"},
		{http.MethodGet, "/v1/courses/some-id/chapters/1"},
		{http.MethodPost, "/v1/courses/some-id/chapters/1/consumed"},
	}
	for _, tt := range paths {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, tt.method, tt.path, "")
			checkCode(t, rec, http.StatusUnauthorized)

			var body httpErr
			decode(t, rec, &body)
			if body != errMissingToken {
				t.Errorf("body = %+v; want %+v", body, errMissingToken)
			}
		})
	}
}

func Test_courseApi_create_validation(t *testing.T) {
	token := getToken(t, "usr-val", "val@test.cd")

	tests := []struct {
		name string
		body string
	}{
		{name: "empty payload", body: `{}`},
		{name: "topic too short", body: `{"topic":"ab","difficulty":"beginner"}`},
		{name: "unknown difficulty", body: `{"topic":"Graph Algorithms","difficulty":"expert"}`},
		{name: "coding ratio out of range", body: `{"topic":"Graph Algorithms","difficulty":"beginner","coding_ratio":120}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, http.MethodPost, "/v1/courses", token, []byte(tt.body))
			checkCode(t, rec, http.StatusBadRequest)
		})
	}
}

func Test_courseApi_pipeline(t *testing.T) {
	owner := "usr-pipeline"
	token := getToken(t, owner, "pipeline@test.cd")
	otherToken := getToken(t, "usr-other", "other@test.cd")

	// submit: the outline is drafted synchronously and lands in REVIEW
	rec := do(t, http.MethodPost, "/v1/courses", token,
		[]byte(`{"topic":"Graph Algorithms","difficulty":"beginner","coding_ratio":40}`))
	checkCode(t, rec, http.StatusCreated)

	var crs course.Course
	decode(t, rec, &crs)
	if crs.State != course.StateReview {
		t.Fatalf("state = %s; want %s", crs.State, course.StateReview)
	}
	if crs.Revision != 1 {
		t.Errorf("revision = %d; want 1", crs.Revision)
	}
	if len(crs.Outline) != 4 {
		t.Fatalf("len(outline) = %d; want 4", len(crs.Outline))
	}
	base := "/v1/courses/" + crs.ID

	// ownership: other users never see the course
	checkCode(t, do(t, http.MethodGet, base, otherToken), http.StatusNotFound)
	checkCode(t, do(t, http.MethodGet, base, token), http.StatusOK)

	// querying lists it
	var listed []course.Course
	rec = do(t, http.MethodGet, "/v1/courses", token)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &listed)
	if len(listed) != 1 {
		t.Errorf("len(courses) = %d; want 1", len(listed))
	}

	// starting from REVIEW is rejected
	checkCode(t, do(t, http.MethodPost, base+"/start", token), http.StatusConflict)

	// feedback: one refinement round, revision bumped
	rec = do(t, http.MethodPost, base+"/feedback", token, []byte(`{"text":"add dynamic programming"}`))
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &crs)
	if crs.Revision != 2 {
		t.Errorf("revision = %d; want 2", crs.Revision)
	}
	if len(crs.Outline) != 5 {
		t.Errorf("len(outline) = %d; want 5", len(crs.Outline))
	}

	var rounds []course.FeedbackRound
	rec = do(t, http.MethodGet, base+"/feedback", token)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &rounds)
	if len(rounds) != 1 {
		t.Fatalf("len(rounds) = %d; want 1", len(rounds))
	}
	if rounds[0].Diff == "" {
		t.Error("round diff is empty")
	}

	// approve locks the outline
	rec = do(t, http.MethodPost, base+"/approve", token)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &crs)
	if crs.State != course.StateFinalized {
		t.Fatalf("state = %s; want %s", crs.State, course.StateFinalized)
	}
	checkCode(t, do(t, http.MethodPost, base+"/feedback", token, []byte(`{"text":"too late"}`)), http.StatusConflict)
	checkCode(t, do(t, http.MethodPost, base+"/approve", token), http.StatusConflict)

	// start
	rec = do(t, http.MethodPost, base+"/start", token)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &crs)
	if crs.State != course.StateInProgress {
		t.Fatalf("state = %s; want %s", crs.State, course.StateInProgress)
	}

	// chapters are generated lazily and then served from the store
	var content course.ChapterContent
	rec = do(t, http.MethodGet, base+"/chapters/1", token)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &content)
	if content.Body == "" {
		t.Error("chapter body is empty")
	}
	if content.Version != 1 {
		t.Errorf("version = %d; want 1", content.Version)
	}

	var again course.ChapterContent
	rec = do(t, http.MethodGet, base+"/chapters/1", token)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &again)
	if again.ID != content.ID {
		t.Error("second request did not serve the stored content")
	}

	checkCode(t, do(t, http.MethodGet, base+"/chapters/99", token), http.StatusNotFound)
	checkCode(t, do(t, http.MethodGet, base+"/chapters/lol", token), http.StatusNotFound)

	// consuming an ungenerated chapter is rejected
	checkCode(t, do(t, http.MethodPost, base+"/chapters/2/consumed", token), http.StatusConflict)

	// consume all chapters; the last one completes the course
	for pos := 1; pos <= 5; pos++ {
		if pos > 1 {
			checkCode(t, do(t, http.MethodGet, fmt.Sprintf("%s/chapters/%d", base, pos), token), http.StatusOK)
		}
		rec = do(t, http.MethodPost, fmt.Sprintf("%s/chapters/%d/consumed", base, pos), token)
		checkCode(t, rec, http.StatusOK)
		decode(t, rec, &crs)
	}
	if crs.State != course.StateCompleted {
		t.Fatalf("state = %s; want %s", crs.State, course.StateCompleted)
	}

	// consuming again stays a no-op success
	checkCode(t, do(t, http.MethodPost, base+"/chapters/5/consumed", token), http.StatusOK)

	// soft delete
	checkCode(t, do(t, http.MethodDelete, base, otherToken), http.StatusNotFound)
	checkCode(t, do(t, http.MethodDelete, base, token), http.StatusNoContent)
	checkCode(t, do(t, http.MethodGet, base, token), http.StatusNotFound)
}

func Test_courseApi_topics(t *testing.T) {
	token := getToken(t, "usr-topics", "topics@test.cd")

	rec := do(t, http.MethodGet, "/v1/courses/topics", token)
	checkCode(t, rec, http.StatusOK)

	var topics []string
	decode(t, rec, &topics)
	if len(topics) == 0 {
		t.Error("empty topic catalog")
	}
}

func Test_courseApi_refinementLimit(t *testing.T) {
	token := getToken(t, "usr-limit", "limit@test.cd")

	rec := do(t, http.MethodPost, "/v1/courses", token,
		[]byte(`{"topic":"Relational Databases & SQL","difficulty":"intermediate"}`))
	checkCode(t, rec, http.StatusCreated)
	var crs course.Course
	decode(t, rec, &crs)
	base := "/v1/courses/" + crs.ID

	for i := 0; i < 2; i++ { // MaxRefinementRounds
		checkCode(t, do(t, http.MethodPost, base+"/feedback", token, []byte(`{"text":"again"}`)), http.StatusOK)
	}
	checkCode(t, do(t, http.MethodPost, base+"/feedback", token, []byte(`{"text":"one more"}`)), http.StatusUnprocessableEntity)
	checkCode(t, do(t, http.MethodPost, base+"/feedback", token, []byte(`{"text":"one more","override":true}`)), http.StatusOK)
}
