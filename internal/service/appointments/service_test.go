package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"schedula/client/internal/apiclient"
	"schedula/client/internal/domain"
)

type staticTokens struct{}

func (staticTokens) AccessToken(ctx context.Context) string                  { return "a1" }
func (staticTokens) RefreshToken(ctx context.Context) string                 { return "r1" }
func (staticTokens) SetAccessToken(ctx context.Context, access string) error { return nil }
func (staticTokens) Clear(ctx context.Context) error                         { return nil }

func newService(t *testing.T, h http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	api, err := apiclient.New(apiclient.Options{
		BaseURL:    srv.URL + "/api",
		HTTPClient: srv.Client(),
		Tokens:     staticTokens{},
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("apiclient.New error: %v", err)
	}
	return NewService(api)
}

func unexpected(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func TestServiceCreate_ValidationErrorType(t *testing.T) {
	svc := newService(t, unexpected(t))

	_, err := svc.Create(context.Background(), CreateInput{
		ServiceID: "",
		Start:     time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if vErr.Error() != "service_id is required" {
		t.Fatalf("error = %q, want %q", vErr.Error(), "service_id is required")
	}
}

func TestServiceCreate_RejectsEndBeforeStart(t *testing.T) {
	svc := newService(t, unexpected(t))

	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), CreateInput{
		ServiceID: "s1",
		Start:     start,
		End:       start,
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Error() != "end must be after start" {
		t.Fatalf("err = %v", err)
	}
}

func TestServiceCreate_SendsUTCTimesToTrailingSlashPath(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}

	var got createRequest
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/appointments/" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"ap1","status":"pending","start":"2026-01-10T17:00:00Z","end":"2026-01-10T18:00:00Z"}`))
	})

	appt, err := svc.Create(context.Background(), CreateInput{
		BusinessID: "b1",
		ServiceID:  " s1 ",
		Start:      time.Date(2026, 1, 10, 9, 0, 0, 0, loc),
		End:        time.Date(2026, 1, 10, 10, 0, 0, 0, loc),
		Notes:      "  window seat  ",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if appt.ID != "ap1" || appt.Status != domain.AppointmentStatusPending {
		t.Fatalf("appointment = %+v", appt)
	}
	if got.ServiceID != "s1" || got.Notes != "window seat" {
		t.Fatalf("request = %+v", got)
	}
	if !got.Start.Equal(time.Date(2026, 1, 10, 17, 0, 0, 0, time.UTC)) || got.End == nil {
		t.Fatalf("request times = %v %v", got.Start, got.End)
	}
}

func TestServiceCreate_IdempotencyKeyDeterministicHeader(t *testing.T) {
	var keys []string
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		w.WriteHeader(http.StatusCreated)
	})

	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for _, k := range []string{"k1", "k1", "k2"} {
		if _, err := svc.Create(context.Background(), CreateInput{ServiceID: "s1", Start: start, IdempotencyKey: k}); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}
	if _, err := svc.Create(context.Background(), CreateInput{ServiceID: "s1", Start: start}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if len(keys) != 4 {
		t.Fatalf("captured keys = %d, want 4", len(keys))
	}
	if keys[0] == "" || keys[0] != keys[1] {
		t.Fatalf("same key produced %q and %q", keys[0], keys[1])
	}
	if keys[0] == keys[2] {
		t.Fatalf("different keys produced the same header %q", keys[0])
	}
	if keys[3] != "" {
		t.Fatalf("no key should send no header, got %q", keys[3])
	}
	if keys[0] != IdempotencyKey("k1").String() {
		t.Fatalf("header = %q, want %q", keys[0], IdempotencyKey("k1"))
	}
}

func TestServiceList_ToleratesEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{name: "bare", body: `[{"id":"a1"},{"id":"a2"}]`, want: []string{"a1", "a2"}},
		{name: "results", body: `{"results":[{"id":"a1"},{"id":"a2"}]}`, want: []string{"a1", "a2"}},
		{name: "data", body: `{"data":[{"id":"a1"},{"id":"a2"}]}`, want: []string{"a1", "a2"}},
		{name: "unexpected", body: `{"unexpected":true}`, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			list, err := svc.List(context.Background(), ListFilter{})
			if err != nil {
				t.Fatalf("List error: %v", err)
			}
			ids := make([]string, 0, len(list))
			for _, a := range list {
				ids = append(ids, a.ID)
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Fatalf("ids = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestServiceList_AcceptsNumericIDsAndStringPrices(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"id":7,"business":{"id":11,"name":"Fade Room"},"service":{"id":3,"name":"Cut","duration":"45","price":"25.00"},
			 "status":"confirmed","start":"2026-02-01T10:00:00Z","end":"2026-02-01T10:45:00Z","created_at":""},
			{"id":8,"business_id":11,"service":4,"status":"pending","start":"2026-02-02T09:00:00Z","end":"2026-02-02T09:30:00Z"}
		]}`))
	})

	list, err := svc.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("appointments = %+v, want 2", list)
	}

	first := list[0]
	if first.ID != "7" || first.BusinessID != "11" || first.ServiceID != "3" {
		t.Fatalf("first ids = %+v", first)
	}
	wantService := &domain.ServiceSummary{ID: "3", Name: "Cut", DurationMinutes: 45, Price: 25}
	if !reflect.DeepEqual(first.Service, wantService) {
		t.Fatalf("service = %+v, want %+v", first.Service, wantService)
	}
	if !first.Start.Equal(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)) || !first.CreatedAt.IsZero() {
		t.Fatalf("times = %v / %v", first.Start, first.CreatedAt)
	}

	second := list[1]
	if second.ID != "8" || second.BusinessID != "11" || second.ServiceID != "4" || second.Service != nil {
		t.Fatalf("second = %+v", second)
	}
	if second.Status != domain.AppointmentStatusPending {
		t.Fatalf("status = %q", second.Status)
	}
}

func TestServiceGet_AcceptsNumericID(t *testing.T) {
	var path string
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"id":42,"service_id":9,"service":null,"status":"completed","start":"2026-02-01T10:00:00Z"}`))
	})

	appt, err := svc.Get(context.Background(), "42")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if path != "/api/appointments/42/" {
		t.Fatalf("path = %q", path)
	}
	if appt.ID != "42" || appt.ServiceID != "9" || appt.Service != nil || appt.Status != domain.AppointmentStatusCompleted {
		t.Fatalf("appointment = %+v", appt)
	}
}

func TestServiceList_EncodesFilter(t *testing.T) {
	var query map[string][]string
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(`[]`))
	})

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.List(context.Background(), ListFilter{
		Status: domain.AppointmentStatusConfirmed,
		From:   from,
		To:     from.AddDate(0, 0, 7),
	})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	want := map[string][]string{
		"status": {"confirmed"},
		"from":   {"2026-02-01T00:00:00Z"},
		"to":     {"2026-02-08T00:00:00Z"},
	}
	if !reflect.DeepEqual(query, want) {
		t.Fatalf("query = %v, want %v", query, want)
	}

	if _, err := svc.List(context.Background(), ListFilter{Status: "rescheduled"}); err == nil {
		t.Fatalf("expected validation error for unknown status")
	}
}

func TestServiceCancel_PostsToCancelAction(t *testing.T) {
	var path, reason string
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		var body cancelRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		reason = body.Reason
		_, _ = w.Write([]byte(`{"id":"ap1","status":"cancelled"}`))
	})

	appt, err := svc.Cancel(context.Background(), "ap1", "sick")
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if path != "/api/appointments/ap1/cancel/" || reason != "sick" {
		t.Fatalf("path = %q reason = %q", path, reason)
	}
	if appt.Status != domain.AppointmentStatusCancelled {
		t.Fatalf("status = %q", appt.Status)
	}
}

func TestServiceCancel_SurfacesConflict(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail":"Appointment already completed."}`))
	})

	_, err := svc.Cancel(context.Background(), "ap1", "")
	if !errors.Is(err, apiclient.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if got := apiclient.MessageOr(err, ""); got != "Appointment already completed." {
		t.Fatalf("message = %q", got)
	}
}

func TestServiceAvailability_AcceptsSlotShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{name: "bare strings", body: `["09:00","09:30"]`, want: []string{"09:00", "09:30"}},
		{name: "slots", body: `{"date":"2026-03-02","slots":["09:00","09:30"]}`, want: []string{"09:00", "09:30"}},
		{name: "available slots", body: `{"available_slots":["10:00"]}`, want: []string{"10:00"}},
		{name: "results of objects", body: `{"results":[{"time":"11:00"},{"start":"11:30"},{"label":"12:00"},{"other":1}]}`, want: []string{"11:00", "11:30", "12:00"}},
		{name: "unexpected", body: `{"open":false}`, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/businesses/b1/availability/" {
					t.Errorf("path = %q", r.URL.Path)
				}
				if r.URL.Query().Get("service") != "s1" || r.URL.Query().Get("date") != "2026-03-02" {
					t.Errorf("query = %q", r.URL.RawQuery)
				}
				_, _ = w.Write([]byte(tt.body))
			})
			got, err := svc.Availability(context.Background(), "b1", "s1", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
			if err != nil {
				t.Fatalf("Availability error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("slots = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServiceAvailability_RequiresIdentifiers(t *testing.T) {
	svc := newService(t, unexpected(t))

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if _, err := svc.Availability(context.Background(), "", "s1", day); err == nil {
		t.Fatalf("expected error for missing business")
	}
	if _, err := svc.Availability(context.Background(), "b1", "", day); err == nil {
		t.Fatalf("expected error for missing service")
	}
	if _, err := svc.Availability(context.Background(), "b1", "s1", time.Time{}); err == nil {
		t.Fatalf("expected error for missing date")
	}
}
