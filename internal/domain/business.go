package domain

type Business struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug,omitempty"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
	Address     string  `json:"address,omitempty"`
	City        string  `json:"city,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
}

type Service struct {
	ID              string  `json:"id"`
	BusinessID      string  `json:"business_id,omitempty"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}
