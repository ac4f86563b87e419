package businesses

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"schedula/client/internal/apiclient"
	"schedula/client/internal/domain"
)

type noTokens struct{}

func (noTokens) AccessToken(ctx context.Context) string                  { return "" }
func (noTokens) RefreshToken(ctx context.Context) string                 { return "" }
func (noTokens) SetAccessToken(ctx context.Context, access string) error { return nil }
func (noTokens) Clear(ctx context.Context) error                         { return nil }

func newService(t *testing.T, routes map[string]string) *Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not found."}`))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	api, err := apiclient.New(apiclient.Options{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Tokens:     noTokens{},
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("apiclient.New error: %v", err)
	}
	return NewService(api)
}

func TestList_NormalizesFieldAliases(t *testing.T) {
	svc := newService(t, map[string]string{
		"/businesses/": `{"count":2,"results":[
			{"id":7,"name":"Fade Room","category":{"id":1,"name":"Barber"},"image":"https://img/7.png","average_rating":"4.5"},
			{"id":"b2","name":"Glow","category_name":"Spa","image_url":"https://img/b2.png","rating":4}
		]}`,
	})

	got, err := svc.List(context.Background(), Query{})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	want := []domain.Business{
		{ID: "7", Name: "Fade Room", Category: "Barber", ImageURL: "https://img/7.png", Rating: 4.5},
		{ID: "b2", Name: "Glow", Category: "Spa", ImageURL: "https://img/b2.png", Rating: 4},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("List = %+v, want %+v", got, want)
	}
}

func TestServices_AcceptsDurationAliasesAndStringPrices(t *testing.T) {
	svc := newService(t, map[string]string{
		"/businesses/b1/services/": `[
			{"id":1,"name":"Cut","duration":30,"price":"25.00"},
			{"id":2,"business":"b9","name":"Shave","duration_minutes":15,"price":12.5}
		]`,
	})

	got, err := svc.Services(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Services error: %v", err)
	}
	want := []domain.Service{
		{ID: "1", BusinessID: "b1", Name: "Cut", DurationMinutes: 30, Price: 25},
		{ID: "2", BusinessID: "b9", Name: "Shave", DurationMinutes: 15, Price: 12.5},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Services = %+v, want %+v", got, want)
	}
}

func TestCategories_AcceptsObjectsAndNames(t *testing.T) {
	svc := newService(t, map[string]string{
		"/businesses/categories/": `{"data":[{"id":1,"name":"Barber","slug":"barber"},"Spa",42,""]}`,
	})

	got, err := svc.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories error: %v", err)
	}
	want := []domain.Category{{ID: "1", Name: "Barber", Slug: "barber"}, {Name: "Spa"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Categories = %+v, want %+v", got, want)
	}
}

func TestGet_NotFoundAndMissingID(t *testing.T) {
	svc := newService(t, map[string]string{})

	if _, err := svc.Get(context.Background(), " "); !errors.Is(err, ErrIDRequired) {
		t.Fatalf("err = %v, want ErrIDRequired", err)
	}
	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, apiclient.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}
