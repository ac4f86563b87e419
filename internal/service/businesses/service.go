package businesses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"schedula/client/internal/apiclient"
	"schedula/client/internal/domain"
)

var ErrIDRequired = errors.New("business id is required")

type Service struct {
	api *apiclient.Client
}

func NewService(api *apiclient.Client) *Service {
	return &Service{api: api}
}

type Query struct {
	Search   string
	Category string
}

func (s *Service) List(ctx context.Context, q Query) ([]domain.Business, error) {
	values := url.Values{}
	if v := strings.TrimSpace(q.Search); v != "" {
		values.Set("search", v)
	}
	if v := strings.TrimSpace(q.Category); v != "" {
		values.Set("category", v)
	}

	records, err := apiclient.GetList[businessRecord](ctx, s.api, "/businesses/", values)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Business, 0, len(records))
	for _, r := range records {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// Get fetches one business by id or slug.
func (s *Service) Get(ctx context.Context, idOrSlug string) (domain.Business, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return domain.Business{}, ErrIDRequired
	}
	var r businessRecord
	if err := s.api.Get(ctx, "/businesses/"+url.PathEscape(idOrSlug)+"/", &r); err != nil {
		return domain.Business{}, err
	}
	return r.toDomain(), nil
}

func (s *Service) Services(ctx context.Context, businessID string) ([]domain.Service, error) {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return nil, ErrIDRequired
	}
	path := "/businesses/" + url.PathEscape(businessID) + "/services/"
	records, err := apiclient.GetList[serviceRecord](ctx, s.api, path, nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Service, 0, len(records))
	for _, r := range records {
		svc := r.toDomain()
		if svc.BusinessID == "" {
			svc.BusinessID = businessID
		}
		out = append(out, svc)
	}
	return out, nil
}

func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	records, err := apiclient.GetList[json.RawMessage](ctx, s.api, "/businesses/categories/", nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(records))
	for _, raw := range records {
		if c, ok := decodeCategory(raw); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// businessRecord lists every field name the backend has used for a business.
// The first non-empty alias wins.
type businessRecord struct {
	ID            apiclient.FlexString `json:"id"`
	Name          string               `json:"name"`
	Slug          string               `json:"slug"`
	Category      json.RawMessage      `json:"category"`
	CategoryName  string               `json:"category_name"`
	Description   string               `json:"description"`
	Address       string               `json:"address"`
	City          string               `json:"city"`
	Phone         string               `json:"phone"`
	Image         apiclient.FlexString `json:"image"`
	ImageURL      apiclient.FlexString `json:"image_url"`
	Logo          apiclient.FlexString `json:"logo"`
	Rating        apiclient.FlexFloat  `json:"rating"`
	AverageRating apiclient.FlexFloat  `json:"average_rating"`
}

func (r businessRecord) toDomain() domain.Business {
	b := domain.Business{
		ID:          string(r.ID),
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Address:     r.Address,
		City:        r.City,
		Phone:       r.Phone,
		ImageURL:    apiclient.FirstNonEmpty(r.ImageURL, r.Image, r.Logo),
		Rating:      float64(r.Rating),
	}
	if b.Rating == 0 {
		b.Rating = float64(r.AverageRating)
	}
	b.Category = r.CategoryName
	if b.Category == "" {
		if c, ok := decodeCategory(r.Category); ok {
			b.Category = c.Name
		}
	}
	return b
}

type serviceRecord struct {
	ID              apiclient.FlexString `json:"id"`
	Business        apiclient.FlexString `json:"business"`
	BusinessID      apiclient.FlexString `json:"business_id"`
	Name            string               `json:"name"`
	Description     string               `json:"description"`
	DurationMinutes apiclient.FlexFloat  `json:"duration_minutes"`
	Duration        apiclient.FlexFloat  `json:"duration"`
	Price           apiclient.FlexFloat  `json:"price"`
}

func (r serviceRecord) toDomain() domain.Service {
	duration := r.DurationMinutes
	if duration == 0 {
		duration = r.Duration
	}
	return domain.Service{
		ID:              string(r.ID),
		BusinessID:      apiclient.FirstNonEmpty(r.BusinessID, r.Business),
		Name:            r.Name,
		Description:     r.Description,
		DurationMinutes: int(duration),
		Price:           float64(r.Price),
	}
}

type categoryRecord struct {
	ID   apiclient.FlexString `json:"id"`
	Name string               `json:"name"`
	Slug string               `json:"slug"`
}

// decodeCategory accepts a category object or a bare category name.
func decodeCategory(raw json.RawMessage) (domain.Category, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return domain.Category{}, false
	}
	switch raw[0] {
	case '"':
		var name string
		if err := json.Unmarshal(raw, &name); err != nil || strings.TrimSpace(name) == "" {
			return domain.Category{}, false
		}
		return domain.Category{Name: name}, true
	case '{':
		var c categoryRecord
		if err := json.Unmarshal(raw, &c); err != nil || c.Name == "" {
			return domain.Category{}, false
		}
		return domain.Category{ID: string(c.ID), Name: c.Name, Slug: c.Slug}, true
	}
	return domain.Category{}, false
}
