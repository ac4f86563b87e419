package favorites

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"schedula/client/internal/apiclient"
	"schedula/client/internal/domain"
)

var ErrBusinessIDRequired = errors.New("business id is required")

type Service struct {
	api *apiclient.Client
}

func NewService(api *apiclient.Client) *Service {
	return &Service{api: api}
}

// List returns the session's favorites in backend order. Duplicate business
// ids keep their first occurrence.
func (s *Service) List(ctx context.Context) ([]domain.FavoriteEntry, error) {
	records, err := apiclient.GetList[favoriteRecord](ctx, s.api, "/favorites/", nil)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(records))
	out := make([]domain.FavoriteEntry, 0, len(records))
	for _, r := range records {
		e := r.toDomain()
		if e.ID == "" {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

type toggleRequest struct {
	BusinessID string `json:"business_id"`
}

type stateResponse struct {
	IsFavorite bool `json:"is_favorite"`
}

// Toggle flips the favorite flag server-side and returns the resulting state.
func (s *Service) Toggle(ctx context.Context, businessID string) (bool, error) {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return false, ErrBusinessIDRequired
	}
	var out stateResponse
	if err := s.api.Post(ctx, "/favorites/toggle", toggleRequest{BusinessID: businessID}, &out); err != nil {
		return false, err
	}
	return out.IsFavorite, nil
}

func (s *Service) Check(ctx context.Context, businessID string) (bool, error) {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return false, ErrBusinessIDRequired
	}
	var out stateResponse
	if err := s.api.Get(ctx, "/favorites/check/"+url.PathEscape(businessID)+"/", &out); err != nil {
		return false, err
	}
	return out.IsFavorite, nil
}

type businessSummary struct {
	ID       apiclient.FlexString `json:"id"`
	Name     string               `json:"name"`
	Slug     string               `json:"slug"`
	Category apiclient.FlexString `json:"category_name"`
	Address  string               `json:"address"`
	City     string               `json:"city"`
	Image    apiclient.FlexString `json:"image"`
	ImageURL apiclient.FlexString `json:"image_url"`
	Rating   apiclient.FlexFloat  `json:"rating"`
}

// favoriteRecord is either a flat business summary or a favorite row with the
// business nested under "business".
type favoriteRecord struct {
	businessSummary
	BusinessID apiclient.FlexString `json:"business_id"`
	Business   *businessSummary     `json:"business"`
	CreatedAt  apiclient.FlexTime   `json:"created_at"`
}

func (r favoriteRecord) toDomain() domain.FavoriteEntry {
	b := r.businessSummary
	id := apiclient.FirstNonEmpty(r.BusinessID, b.ID)
	if r.Business != nil {
		b = *r.Business
		id = apiclient.FirstNonEmpty(b.ID, r.BusinessID)
	}
	return domain.FavoriteEntry{
		ID:        id,
		Name:      b.Name,
		Slug:      b.Slug,
		Category:  string(b.Category),
		Address:   b.Address,
		City:      b.City,
		ImageURL:  apiclient.FirstNonEmpty(b.ImageURL, b.Image),
		Rating:    float64(b.Rating),
		CreatedAt: r.CreatedAt.Time(),
	}
}
