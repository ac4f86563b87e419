package domain

import "time"

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusCancelled, AppointmentStatusCompleted:
		return true
	}
	return false
}

// Upcoming reports whether the appointment still occupies its slot.
func (s AppointmentStatus) Upcoming() bool {
	return s == AppointmentStatusPending || s == AppointmentStatusConfirmed
}

type ServiceSummary struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	Price           float64 `json:"price,omitempty"`
}

type Appointment struct {
	ID         string            `json:"id"`
	BusinessID string            `json:"business_id,omitempty"`
	ServiceID  string            `json:"service_id,omitempty"`
	Service    *ServiceSummary   `json:"service,omitempty"`
	Start      time.Time         `json:"start"`
	End        time.Time         `json:"end"`
	Status     AppointmentStatus `json:"status"`
	Notes      string            `json:"notes,omitempty"`
	CreatedAt  time.Time         `json:"created_at,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
}
