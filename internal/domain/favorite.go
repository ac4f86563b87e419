package domain

import "time"

// FavoriteEntry is a favorited business together with the summary fields the
// backend embeds so a list can be rendered without a follow-up call.
type FavoriteEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug,omitempty"`
	Category  string    `json:"category,omitempty"`
	Address   string    `json:"address,omitempty"`
	City      string    `json:"city,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	Rating    float64   `json:"rating,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
