package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/lookout/internal/database"
	"github.com/kozaktomas/lookout/internal/database/mock"
	"github.com/kozaktomas/lookout/internal/logging"
	"github.com/kozaktomas/lookout/internal/photostore"
)

func newReportsHandler(t *testing.T) (*ReportsHandler, *mock.MockReportWriter, *photostore.LocalStore, *fakeCrossRef) {
	t.Helper()
	reports := mock.NewMockReportWriter()
	photos := photostore.NewLocalStore(t.TempDir())
	crossref := &fakeCrossRef{}
	return NewReportsHandler(reports, photos, crossref, logging.Discard()), reports, photos, crossref
}

func TestReportsHandler_Create(t *testing.T) {
	handler, reports, photos, crossref := newReportsHandler(t)
	photo := testPNG(t, 10)

	req := multipartRequest(t, "/api/v1/reports", map[string]string{
		"owner_id":           "family-1",
		"name":               "Jana Nováková",
		"phone":              "+420111222333",
		"last_seen_location": "Brno",
	}, photo)
	recorder := httptest.NewRecorder()
	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)

	var resp CreateReportResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Report.ID == "" || resp.Report.Status != database.ReportStatusActive {
		t.Errorf("unexpected report %+v", resp.Report)
	}
	if !strings.HasPrefix(resp.Report.PhotoRef, "reports/") || !strings.HasSuffix(resp.Report.PhotoRef, ".png") {
		t.Errorf("unexpected photo ref %q", resp.Report.PhotoRef)
	}
	if resp.CrossRef == nil || resp.CrossRef.Summary == nil || resp.CrossRef.Error != "" {
		t.Errorf("expected a cross-reference summary, got %+v", resp.CrossRef)
	}

	stored, err := photos.Read(context.Background(), resp.Report.PhotoRef)
	if err != nil || string(stored) != string(photo) {
		t.Errorf("photo not stored: %v", err)
	}
	if _, err := reports.GetReport(context.Background(), resp.Report.ID); err != nil {
		t.Errorf("report not stored: %v", err)
	}
	if len(crossref.reports) != 1 || crossref.reports[0] != resp.Report.ID {
		t.Errorf("cross-reference calls = %v", crossref.reports)
	}
}

func TestReportsHandler_Create_WithoutPhotoSkipsMatching(t *testing.T) {
	handler, _, _, crossref := newReportsHandler(t)

	req := multipartRequest(t, "/api/v1/reports", map[string]string{"owner_id": "o", "name": "n"}, nil)
	recorder := httptest.NewRecorder()
	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)
	var resp CreateReportResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.CrossRef != nil || len(crossref.reports) != 0 {
		t.Errorf("no matching expected without a photo, got %+v", resp.CrossRef)
	}
}

func TestReportsHandler_Create_MatchingFailureStillCreates(t *testing.T) {
	handler, reports, _, crossref := newReportsHandler(t)
	crossref.err = errors.New("corpus unavailable")

	req := multipartRequest(t, "/api/v1/reports", map[string]string{"owner_id": "o", "name": "n"}, testPNG(t, 1))
	recorder := httptest.NewRecorder()
	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)
	var resp CreateReportResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.CrossRef == nil || resp.CrossRef.Error == "" {
		t.Errorf("expected cross-reference error in response, got %+v", resp.CrossRef)
	}
	if _, err := reports.GetReport(context.Background(), resp.Report.ID); err != nil {
		t.Errorf("report must be stored despite the failure: %v", err)
	}
}

func TestReportsHandler_Create_Validation(t *testing.T) {
	tests := []struct {
		name      string
		fields    map[string]string
		photo     []byte
		wantError string
	}{
		{"missing owner", map[string]string{"name": "n"}, nil, "owner_id and name are required"},
		{"missing name", map[string]string{"owner_id": "o"}, nil, "owner_id and name are required"},
		{"not an image", map[string]string{"owner_id": "o", "name": "n"}, []byte("plain text"), errNotAnImage.Error()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler, reports, _, _ := newReportsHandler(t)
			recorder := httptest.NewRecorder()
			handler.Create(recorder, multipartRequest(t, "/api/v1/reports", tc.fields, tc.photo))

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tc.wantError)
			if list, _ := reports.ListReports(context.Background(), ""); len(list) != 0 {
				t.Error("nothing should be stored")
			}
		})
	}
}

func TestReportsHandler_Create_StoreFailure(t *testing.T) {
	handler, reports, _, _ := newReportsHandler(t)
	reports.CreateError = errors.New("disk full")

	recorder := httptest.NewRecorder()
	handler.Create(recorder, multipartRequest(t, "/api/v1/reports", map[string]string{"owner_id": "o", "name": "n"}, nil))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "failed to create report")
}

func TestReportsHandler_GetAndResolve(t *testing.T) {
	handler, reports, _, _ := newReportsHandler(t)
	reports.AddReport(database.MissingPerson{ID: "r1", OwnerID: "o", Name: "n"})

	recorder := httptest.NewRecorder()
	handler.Get(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/reports/r1", nil), map[string]string{"id": "r1"}))
	assertStatusCode(t, recorder, http.StatusOK)

	recorder = httptest.NewRecorder()
	handler.Resolve(recorder, requestWithChiParams(httptest.NewRequest(http.MethodPost, "/api/v1/reports/r1/resolve", nil), map[string]string{"id": "r1"}))
	assertStatusCode(t, recorder, http.StatusOK)

	p, err := reports.GetReport(context.Background(), "r1")
	if err != nil || p.Status != database.ReportStatusResolved {
		t.Errorf("report status = %v, %v", p, err)
	}

	recorder = httptest.NewRecorder()
	handler.Resolve(recorder, requestWithChiParams(httptest.NewRequest(http.MethodPost, "/api/v1/reports/nope/resolve", nil), map[string]string{"id": "nope"}))
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestReportsHandler_List(t *testing.T) {
	handler, reports, _, _ := newReportsHandler(t)
	reports.AddReport(database.MissingPerson{ID: "a", Name: "A"})
	reports.AddReport(database.MissingPerson{ID: "b", Name: "B", Status: database.ReportStatusResolved})

	tests := []struct {
		query      string
		wantStatus int
		wantCount  int
	}{
		{"", http.StatusOK, 2},
		{"?status=active", http.StatusOK, 1},
		{"?status=resolved", http.StatusOK, 1},
		{"?status=bogus", http.StatusBadRequest, 0},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/reports"+tc.query, nil))

			assertStatusCode(t, recorder, tc.wantStatus)
			if tc.wantStatus != http.StatusOK {
				return
			}
			var result []ReportResponse
			parseJSONResponse(t, recorder, &result)
			if len(result) != tc.wantCount {
				t.Errorf("expected %d reports, got %d", tc.wantCount, len(result))
			}
		})
	}
}
