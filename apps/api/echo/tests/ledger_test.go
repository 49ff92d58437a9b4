package tests

import (
	"net/http"
	"testing"

	"github.com/trezcool/coursegen/core/course"
	"github.com/trezcool/coursegen/core/ledger"
	"github.com/trezcool/coursegen/tests"
)

func Test_ledgerApi_authRequired(t *testing.T) {
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/points/balance"},
		{http.MethodGet, "/v1/points/entries"},
		{http.MethodPost, "/v1/points/redeem"},
	}
	for _, tt := range paths {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, tt.method, tt.path, "")
			checkCode(t, rec, http.StatusUnauthorized)
		})
	}
}

func Test_ledgerApi_points(t *testing.T) {
	owner := "usr-points"
	token := getToken(t, owner, "points@test.cd")

	// fresh users start at zero
	var bal ledger.Balance
	rec := do(t, http.MethodGet, "/v1/points/balance", token)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &bal)
	if bal.Points != 0 {
		t.Fatalf("points = %d; want 0", bal.Points)
	}

	// consume two chapters of a seeded course; duplicates credit once
	crs := testutil.CreateCourse(t, courseRepo, owner, "Web Application Security", course.StateInProgress, 3)
	for pos := 1; pos <= 2; pos++ {
		testutil.CreateChapterContent(t, courseRepo, crs.ID, pos)
	}
	base := "/v1/courses/" + crs.ID
	checkCode(t, do(t, http.MethodPost, base+"/chapters/1/consumed", token), http.StatusOK)
	checkCode(t, do(t, http.MethodPost, base+"/chapters/2/consumed", token), http.StatusOK)
	checkCode(t, do(t, http.MethodPost, base+"/chapters/2/consumed", token), http.StatusOK)

	rec = do(t, http.MethodGet, "/v1/points/balance", token)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &bal)
	if bal.Points != 20 {
		t.Fatalf("points = %d; want 20", bal.Points)
	}

	var entries []ledger.Entry
	rec = do(t, http.MethodGet, "/v1/points/entries", token)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &entries)
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d; want 2", len(entries))
	}

	// redemption payload validation
	checkCode(t, do(t, http.MethodPost, "/v1/points/redeem", token, []byte(`{}`)), http.StatusBadRequest)
	checkCode(t, do(t, http.MethodPost, "/v1/points/redeem", token, []byte(`{"amount":-5,"partner_ref":"order-1"}`)), http.StatusBadRequest)

	// overdraft fails fast with no writes
	checkCode(t, do(t, http.MethodPost, "/v1/points/redeem", token, []byte(`{"amount":50,"partner_ref":"order-1"}`)), http.StatusBadRequest)
	rec = do(t, http.MethodGet, "/v1/points/entries", token)
	decode(t, rec, &entries)
	if len(entries) != 2 {
		t.Fatalf("len(entries) after overdraft = %d; want 2", len(entries))
	}

	// redeem within balance
	var entry ledger.Entry
	rec = do(t, http.MethodPost, "/v1/points/redeem", token, []byte(`{"amount":15,"partner_ref":"order-1"}`))
	checkCode(t, rec, http.StatusCreated)
	decode(t, rec, &entry)
	if entry.Amount != -15 || entry.Reason != ledger.ReasonRedeemed {
		t.Errorf("entry = %+v; want amount -15, reason %s", entry, ledger.ReasonRedeemed)
	}

	rec = do(t, http.MethodGet, "/v1/points/balance", token)
	decode(t, rec, &bal)
	if bal.Points != 5 {
		t.Fatalf("points = %d; want 5", bal.Points)
	}

	// retrying the same reference appends nothing
	checkCode(t, do(t, http.MethodPost, "/v1/points/redeem", token, []byte(`{"amount":15,"partner_ref":"order-1"}`)), http.StatusCreated)
	rec = do(t, http.MethodGet, "/v1/points/entries", token)
	decode(t, rec, &entries)
	if len(entries) != 3 {
		t.Fatalf("len(entries) after retry = %d; want 3", len(entries))
	}
}
