package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/attendance/internal/database"
	"github.com/kozaktomas/attendance/internal/database/mock"
)

func seedAttendance(t *testing.T) *mock.MockAttendanceStore {
	t.Helper()
	students := mock.NewMockStudentReader()
	students.AddStudent(database.Student{ID: 1, RegistrationNumber: "CS101", Name: "Alice Nováková", Course: "CS"})
	students.AddStudent(database.Student{ID: 2, RegistrationNumber: "CS102", Name: "Bob Dvořák", Course: "CS"})
	store := mock.NewMockAttendanceStore(students)

	ctx := context.Background()
	records := []database.AttendanceRecord{
		{StudentID: 1, Date: "2026-03-01", Time: "08:01:00", MatchPercentage: 71.5},
		{StudentID: 2, Date: "2026-03-01", Time: "08:05:00", MatchPercentage: 66},
		{StudentID: 1, Date: "2026-03-02", Time: "09:00:00", MatchPercentage: 80},
	}
	for _, rec := range records {
		if _, err := store.InsertAttendance(ctx, rec); err != nil {
			t.Fatalf("seeding attendance: %v", err)
		}
	}
	return store
}

func TestAttendanceHandler_List(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantCount int
		wantFirst string
	}{
		{"all newest first", "", 3, "2026-03-02"},
		{"by date", "?date=2026-03-01", 2, "2026-03-01"},
		{"by registration number", "?search=cs102", 1, "2026-03-01"},
		{"by name without diacritics", "?search=novakova", 2, "2026-03-02"},
		{"date and search", "?date=2026-03-02&search=bob", 0, ""},
	}

	h := NewAttendanceHandler(seedAttendance(t), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance"+tt.query, nil)
			recorder := httptest.NewRecorder()
			h.List(recorder, req)

			assertStatusCode(t, recorder, http.StatusOK)
			var resp AttendanceListResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.Count != tt.wantCount || len(resp.Rows) != tt.wantCount {
				t.Fatalf("count = %d (rows %d), want %d", resp.Count, len(resp.Rows), tt.wantCount)
			}
			if tt.wantCount > 0 && resp.Rows[0].Date != tt.wantFirst {
				t.Errorf("first date = %s, want %s", resp.Rows[0].Date, tt.wantFirst)
			}
		})
	}
}

func TestAttendanceHandler_List_EmptyIsArray(t *testing.T) {
	h := NewAttendanceHandler(mock.NewMockAttendanceStore(nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance", nil)
	recorder := httptest.NewRecorder()
	h.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if got := recorder.Body.String(); got != "{\"rows\":[],\"count\":0}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestAttendanceHandler_List_InvalidDate(t *testing.T) {
	h := NewAttendanceHandler(seedAttendance(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance?date=01.03.2026", nil)
	recorder := httptest.NewRecorder()
	h.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "invalid date, expected YYYY-MM-DD")
}

func TestAttendanceHandler_List_StoreError(t *testing.T) {
	store := seedAttendance(t)
	store.ListError = errors.New("connection refused")
	h := NewAttendanceHandler(store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance", nil)
	recorder := httptest.NewRecorder()
	h.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "failed to list attendance")
}

func TestAttendanceHandler_Summary(t *testing.T) {
	h := NewAttendanceHandler(seedAttendance(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/summary", nil)
	recorder := httptest.NewRecorder()
	h.Summary(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp SummaryResponse
	parseJSONResponse(t, recorder, &resp)

	want := []database.DaySummary{
		{Date: "2026-03-02", PresentCount: 1},
		{Date: "2026-03-01", PresentCount: 2},
	}
	if len(resp.Days) != len(want) {
		t.Fatalf("days = %v, want %v", resp.Days, want)
	}
	for i := range want {
		if resp.Days[i] != want[i] {
			t.Errorf("days[%d] = %+v, want %+v", i, resp.Days[i], want[i])
		}
	}
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
}

func TestAttendanceHandler_Summary_CountError(t *testing.T) {
	store := seedAttendance(t)
	store.CountError = errors.New("timeout")
	h := NewAttendanceHandler(store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/summary", nil)
	recorder := httptest.NewRecorder()
	h.Summary(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
}
