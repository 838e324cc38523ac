package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/empire/internal/goals"
	"github.com/eleven-am/empire/internal/logger"
	"github.com/eleven-am/empire/internal/metrics"
	"github.com/eleven-am/empire/internal/orm"
)

type call struct {
	method      string
	uid, id     int64
	categoryIDs []int64
	statement   string
	input       goals.CreateInput
}

type fakeGoals struct {
	calls []call
	err   error
}

func (f *fakeGoals) record(c call) error {
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakeGoals) List(_ context.Context, uid, longTermID int64) ([]goals.GoalWithCategoryIDs, error) {
	if err := f.record(call{method: "List", uid: uid, id: longTermID}); err != nil {
		return nil, err
	}
	return []goals.GoalWithCategoryIDs{{Goal: goals.Goal{ID: 2}, CategoryIDs: []int64{20, 21}}}, nil
}

func (f *fakeGoals) Create(_ context.Context, uid int64, in goals.CreateInput) (*goals.Goal, error) {
	if err := f.record(call{method: "Create", uid: uid, input: in}); err != nil {
		return nil, err
	}
	return &goals.Goal{ID: 9, LongTermID: in.LongTermID, Statement: in.Statement}, nil
}

func (f *fakeGoals) Update(_ context.Context, uid, id int64, statement string) (*goals.Goal, error) {
	if err := f.record(call{method: "Update", uid: uid, id: id, statement: statement}); err != nil {
		return nil, err
	}
	return &goals.Goal{ID: id, Statement: statement}, nil
}

func (f *fakeGoals) Delete(_ context.Context, uid, id int64) error {
	return f.record(call{method: "Delete", uid: uid, id: id})
}

func (f *fakeGoals) Link(_ context.Context, uid, id int64, categoryIDs []int64) error {
	return f.record(call{method: "Link", uid: uid, id: id, categoryIDs: categoryIDs})
}

func (f *fakeGoals) Unlink(_ context.Context, uid, id int64, categoryIDs []int64) error {
	return f.record(call{method: "Unlink", uid: uid, id: id, categoryIDs: categoryIDs})
}

func (f *fakeGoals) Categories(_ context.Context, uid, id int64) ([]orm.Row, error) {
	if err := f.record(call{method: "Categories", uid: uid, id: id}); err != nil {
		return nil, err
	}
	return []orm.Row{{"category_id": 10, "name": "Fitness"}}, nil
}

func (f *fakeGoals) LongTerms(_ context.Context, uid int64) ([]goals.LongTerm, error) {
	if err := f.record(call{method: "LongTerms", uid: uid}); err != nil {
		return nil, err
	}
	return []goals.LongTerm{{ID: 3, UserID: uid, Title: "Health"}}, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestServer(svc GoalService, db Pinger) (*Server, *metrics.Metrics) {
	m := metrics.New()
	return New(Config{}, svc, db, m, logger.Nop()), m
}

func do(t *testing.T, s *Server, method, target, body string, uid string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if uid != "" {
		req.Header.Set(DefaultIdentityHeader, uid)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestIdentityRequired(t *testing.T) {
	svc := &fakeGoals{}
	s, _ := newTestServer(svc, nil)

	for _, uid := range []string{"", "abc", "0", "-4"} {
		rec := do(t, s, http.MethodGet, "/goals?longTermId=3", "", uid)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, uid)
		assert.Equal(t, "unauthorized", decodeError(t, rec).Error)
	}
	assert.Empty(t, svc.calls)
}

func TestCustomIdentityHeader(t *testing.T) {
	svc := &fakeGoals{}
	s := New(Config{IdentityHeader: "X-Auth-User"}, svc, nil, nil, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/long-terms", nil)
	req.Header.Set("X-Auth-User", "42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.calls, 1)
	assert.Equal(t, int64(42), svc.calls[0].uid)
}

func TestListGoals(t *testing.T) {
	svc := &fakeGoals{}
	s, _ := newTestServer(svc, nil)

	rec := do(t, s, http.MethodGet, "/goals?longTermId=3", "", "42")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, []interface{}{float64(20), float64(21)}, body[0]["category_ids"])

	require.Len(t, svc.calls, 1)
	assert.Equal(t, call{method: "List", uid: 42, id: 3}, svc.calls[0])

	rec = do(t, s, http.MethodGet, "/goals", "", "42")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid longTermId", decodeError(t, rec).Error)
}

func TestCreateGoal(t *testing.T) {
	svc := &fakeGoals{}
	s, _ := newTestServer(svc, nil)

	rec := do(t, s, http.MethodPost, "/goals", `{"longTermId":3,"statement":"Run","categoryIds":[10,11]}`, "42")
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, svc.calls, 1)
	assert.Equal(t, goals.CreateInput{LongTermID: 3, Statement: "Run", CategoryIDs: []int64{10, 11}}, svc.calls[0].input)

	rec = do(t, s, http.MethodPost, "/goals", `{"longTermId":`, "42")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decodeError(t, rec).Error)
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantIDs    []int64
	}{
		{"invalid statement", &goals.ValidationError{Message: goals.MsgInvalidStatement}, http.StatusBadRequest, "invalid statement", nil},
		{"goal cap", &goals.ValidationError{Message: goals.MsgGoalCapReached}, http.StatusBadRequest, "goal cap reached", nil},
		{"duplicate payload", &goals.ValidationError{Message: goals.MsgDuplicatePayload}, http.StatusBadRequest, "duplicate category_ids in payload", nil},
		{"not found", goals.ErrNotFound, http.StatusNotFound, "not found", nil},
		{"wrapped not found", errors.Join(errors.New("ctx"), goals.ErrNotFound), http.StatusNotFound, "not found", nil},
		{"conflict", &goals.ConflictError{CategoryIDs: []int64{10, 12}}, http.StatusConflict, "category link already exists", []int64{10, 12}},
		{"internal", errors.New("pq: password authentication failed"), http.StatusInternalServerError, "internal server error", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(&fakeGoals{err: tt.err}, nil)

			rec := do(t, s, http.MethodPost, "/goals", `{"longTermId":3,"statement":"x"}`, "42")
			assert.Equal(t, tt.wantStatus, rec.Code)

			body := decodeError(t, rec)
			assert.Equal(t, tt.wantError, body.Error)
			assert.Equal(t, tt.wantIDs, body.CategoryIDs)
			assert.NotContains(t, rec.Body.String(), "password")
		})
	}
}

func TestUpdateGoal(t *testing.T) {
	svc := &fakeGoals{}
	s, _ := newTestServer(svc, nil)

	rec := do(t, s, http.MethodPatch, "/goals/9", `{"statement":"Run more"}`, "42")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, call{method: "Update", uid: 42, id: 9, statement: "Run more"}, svc.calls[0])

	rec = do(t, s, http.MethodPatch, "/goals/nine", `{"statement":"Run more"}`, "42")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid id", decodeError(t, rec).Error)
	assert.Len(t, svc.calls, 1)
}

func TestDeleteGoal(t *testing.T) {
	svc := &fakeGoals{}
	s, _ := newTestServer(svc, nil)

	rec := do(t, s, http.MethodDelete, "/goals/9", "", "42")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, call{method: "Delete", uid: 42, id: 9}, svc.calls[0])
}

func TestCategoryLinks(t *testing.T) {
	svc := &fakeGoals{}
	s, _ := newTestServer(svc, nil)

	rec := do(t, s, http.MethodPost, "/goals/9/categories", `{"categoryIds":[10,11]}`, "42")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodDelete, "/goals/9/categories", `{"categoryIds":[10]}`, "42")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodDelete, "/goals/9/categories", "", "42")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/goals/9/categories", "", "42")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Fitness")

	require.Len(t, svc.calls, 4)
	assert.Equal(t, call{method: "Link", uid: 42, id: 9, categoryIDs: []int64{10, 11}}, svc.calls[0])
	assert.Equal(t, call{method: "Unlink", uid: 42, id: 9, categoryIDs: []int64{10}}, svc.calls[1])
	assert.Nil(t, svc.calls[2].categoryIDs)
	assert.Equal(t, "Categories", svc.calls[3].method)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(&fakeGoals{}, fakePinger{})
	rec := do(t, s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	s, _ = newTestServer(&fakeGoals{}, fakePinger{err: errors.New("down")})
	rec = do(t, s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDAndMetrics(t *testing.T) {
	s, _ := newTestServer(&fakeGoals{}, nil)

	rec := do(t, s, http.MethodDelete, "/goals/9", "", "42")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))

	rec = do(t, s, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `empire_http_requests_total{code="204",method="DELETE",route="/goals/{id}"} 1`)
}
