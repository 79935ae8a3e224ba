package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zento-erp/zento/internal/charts"
)

func TestBusinessLinesSendsQuery(t *testing.T) {
	var gotQuery, gotHost string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != businessLinesPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		gotHost = r.Host
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"business_lines_data":[{"name":"Clínica","ingresos":1750.5}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "maria.zentoerp.com", srv.Client())
	q := charts.Query{
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		Level: "2",
	}
	points, err := c.BusinessLines(context.Background(), q)
	if err != nil {
		t.Fatalf("business lines: %v", err)
	}
	if len(points) != 1 || points[0].Name != "Clínica" || points[0].Ingresos != 1750.5 {
		t.Fatalf("unexpected points %+v", points)
	}
	if gotQuery != "end_date=2025-01-31&level=2&start_date=2025-01-01" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if gotHost != "maria.zentoerp.com" {
		t.Fatalf("expected tenant host, got %q", gotHost)
	}
}

func TestBusinessLinesEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	points, err := New(srv.URL, "", nil).BusinessLines(context.Background(), charts.Query{})
	if err != nil {
		t.Fatalf("business lines: %v", err)
	}
	if points == nil || len(points) != 0 {
		t.Fatalf("expected empty slice, got %#v", points)
	}
}

func TestUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "level out of range", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", nil).BusinessLines(context.Background(), charts.Query{Level: "9"})
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
	}
}

func TestExpensesAndPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case healthPath:
			w.WriteHeader(http.StatusOK)
		case expensesPath:
			if r.URL.Query().Get("start_date") != "2025-02-01" || r.URL.Query().Get("end_date") != "" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"expenses_data":[{"name":"Alquiler","total":800}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "", nil)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	points, err := c.Expenses(context.Background(), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	if err != nil {
		t.Fatalf("expenses: %v", err)
	}
	if len(points) != 1 || points[0].Total != 800 {
		t.Fatalf("unexpected expenses %+v", points)
	}
}

func TestRefreshThroughClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"business_lines_data":[{"name":"Online","ingresos":300}]}`))
	}))
	defer srv.Close()

	page := charts.DashboardPage()
	ctrl, err := charts.New(charts.Dependencies{
		Library:   charts.NewRecorder(),
		Surfaces:  page,
		Theme:     charts.DefaultTheme(),
		Formatter: charts.DefaultFormatter(),
		Source:    New(srv.URL, "", nil),
	})
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	if !ctrl.Init(charts.Payload{}) {
		t.Fatalf("init failed")
	}
	applied, err := ctrl.RefreshBusinessLines(context.Background(), charts.Filter{Period: "90"})
	if err != nil || !applied {
		t.Fatalf("refresh applied=%v err=%v", applied, err)
	}
	if got := ctrl.BusinessLines(); len(got) != 1 || got[0].Name != "Online" {
		t.Fatalf("unexpected business lines %+v", got)
	}
}
