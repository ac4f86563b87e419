package appointments

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"schedula/client/internal/apiclient"
	"schedula/client/internal/domain"
)

const dateLayout = "2006-01-02"

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type Service struct {
	api *apiclient.Client
}

func NewService(api *apiclient.Client) *Service {
	return &Service{api: api}
}

type ListFilter struct {
	Status domain.AppointmentStatus
	From   time.Time
	To     time.Time
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Appointment, error) {
	q := url.Values{}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, validationError("invalid status")
		}
		q.Set("status", string(f.Status))
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.To.After(f.From) {
		return nil, validationError("to must be after from")
	}
	if !f.From.IsZero() {
		q.Set("from", f.From.UTC().Format(time.RFC3339))
	}
	if !f.To.IsZero() {
		q.Set("to", f.To.UTC().Format(time.RFC3339))
	}

	records, err := apiclient.GetList[appointmentRecord](ctx, s.api, "/appointments/", q)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Appointment, 0, len(records))
	for _, r := range records {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	var out appointmentRecord
	if err := s.api.Get(ctx, "/appointments/"+url.PathEscape(id)+"/", &out); err != nil {
		return domain.Appointment{}, err
	}
	return out.toDomain(), nil
}

// appointmentRecord is the wire shape of an appointment. Ids may arrive as
// numbers, prices as strings, and the service and business either nested or as
// bare ids.
type appointmentRecord struct {
	ID         apiclient.FlexString `json:"id"`
	BusinessID apiclient.FlexString `json:"business_id"`
	Business   json.RawMessage      `json:"business"`
	ServiceID  apiclient.FlexString `json:"service_id"`
	Service    json.RawMessage      `json:"service"`
	Start      apiclient.FlexTime   `json:"start"`
	End        apiclient.FlexTime   `json:"end"`
	Status     apiclient.FlexString `json:"status"`
	Notes      apiclient.FlexString `json:"notes"`
	CreatedAt  apiclient.FlexTime   `json:"created_at"`
	UpdatedAt  apiclient.FlexTime   `json:"updated_at"`
}

type serviceSummaryRecord struct {
	ID              apiclient.FlexString `json:"id"`
	Name            apiclient.FlexString `json:"name"`
	DurationMinutes apiclient.FlexFloat  `json:"duration_minutes"`
	Duration        apiclient.FlexFloat  `json:"duration"`
	Price           apiclient.FlexFloat  `json:"price"`
}

func (r appointmentRecord) toDomain() domain.Appointment {
	a := domain.Appointment{
		ID:         string(r.ID),
		BusinessID: apiclient.FirstNonEmpty(r.BusinessID, nestedID(r.Business)),
		ServiceID:  string(r.ServiceID),
		Start:      r.Start.Time(),
		End:        r.End.Time(),
		Status:     domain.AppointmentStatus(strings.ToLower(strings.TrimSpace(string(r.Status)))),
		Notes:      string(r.Notes),
		CreatedAt:  r.CreatedAt.Time(),
		UpdatedAt:  r.UpdatedAt.Time(),
	}

	var svc serviceSummaryRecord
	if len(r.Service) > 0 && r.Service[0] == '{' && json.Unmarshal(r.Service, &svc) == nil {
		duration := svc.DurationMinutes
		if duration == 0 {
			duration = svc.Duration
		}
		a.Service = &domain.ServiceSummary{
			ID:              string(svc.ID),
			Name:            string(svc.Name),
			DurationMinutes: int(duration),
			Price:           float64(svc.Price),
		}
		a.ServiceID = apiclient.FirstNonEmpty(r.ServiceID, svc.ID)
	} else {
		a.ServiceID = apiclient.FirstNonEmpty(r.ServiceID, nestedID(r.Service))
	}
	return a
}

// nestedID reads an id that is either a bare scalar or an object's "id".
func nestedID(raw json.RawMessage) apiclient.FlexString {
	var id apiclient.FlexString
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID apiclient.FlexString `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

type CreateInput struct {
	BusinessID     string
	ServiceID      string
	Start          time.Time
	End            time.Time
	Notes          string
	IdempotencyKey string
}

type createRequest struct {
	BusinessID string     `json:"business_id,omitempty"`
	ServiceID  string     `json:"service_id"`
	Start      time.Time  `json:"start"`
	End        *time.Time `json:"end,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	serviceID := strings.TrimSpace(in.ServiceID)
	if serviceID == "" {
		return domain.Appointment{}, validationError("service_id is required")
	}
	if in.Start.IsZero() {
		return domain.Appointment{}, validationError("start is required")
	}

	req := createRequest{
		BusinessID: strings.TrimSpace(in.BusinessID),
		ServiceID:  serviceID,
		Start:      in.Start.UTC(),
		Notes:      strings.TrimSpace(in.Notes),
	}
	if !in.End.IsZero() {
		end := in.End.UTC()
		if !end.After(req.Start) {
			return domain.Appointment{}, validationError("end must be after start")
		}
		if end.Sub(req.Start) > 24*time.Hour {
			return domain.Appointment{}, validationError("duration too long")
		}
		req.End = &end
	}

	var opts []apiclient.RequestOption
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Appointment{}, validationError("idempotency_key too long")
		}
		opts = append(opts, apiclient.WithHeader("Idempotency-Key", IdempotencyKey(key).String()))
	}

	var out appointmentRecord
	if err := s.api.Post(ctx, "/appointments/", req, &out, opts...); err != nil {
		return domain.Appointment{}, err
	}
	return out.toDomain(), nil
}

// IdempotencyKey derives the header value sent for a caller-chosen key, so a
// retried booking with the same key is recognised by the backend.
func IdempotencyKey(key string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("schedula:create_appointment:"+key))
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (s *Service) Cancel(ctx context.Context, id, reason string) (domain.Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	var out appointmentRecord
	path := "/appointments/" + url.PathEscape(id) + "/cancel"
	if err := s.api.Post(ctx, path, cancelRequest{Reason: strings.TrimSpace(reason)}, &out); err != nil {
		return domain.Appointment{}, err
	}
	return out.toDomain(), nil
}

// availabilityKeys are the envelopes the availability endpoint has been seen
// to use, on top of the generic list envelopes.
var availabilityKeys = []string{"slots", "available_slots"}

// slotLabelKeys are tried in order when a slot comes back as an object.
var slotLabelKeys = []string{"time", "start", "label"}

// Availability returns the bookable time labels for one business service on
// the given day.
func (s *Service) Availability(ctx context.Context, businessID, serviceID string, date time.Time) ([]string, error) {
	businessID = strings.TrimSpace(businessID)
	serviceID = strings.TrimSpace(serviceID)
	if businessID == "" {
		return nil, validationError("business_id is required")
	}
	if serviceID == "" {
		return nil, validationError("service_id is required")
	}
	if date.IsZero() {
		return nil, validationError("date is required")
	}

	q := url.Values{}
	q.Set("service", serviceID)
	q.Set("date", date.Format(dateLayout))

	var raw json.RawMessage
	path := "/businesses/" + url.PathEscape(businessID) + "/availability/"
	if err := s.api.Get(ctx, path, &raw, apiclient.WithQuery(q)); err != nil {
		return nil, err
	}

	items, err := apiclient.DecodeListWithKeys[json.RawMessage](raw, availabilityKeys...)
	if err != nil {
		return nil, err
	}
	slots := make([]string, 0, len(items))
	for _, item := range items {
		if label := slotLabel(item); label != "" {
			slots = append(slots, label)
		}
	}
	return slots, nil
}

func slotLabel(item json.RawMessage) string {
	var label string
	if err := json.Unmarshal(item, &label); err == nil {
		return strings.TrimSpace(label)
	}
	var obj map[string]any
	if err := json.Unmarshal(item, &obj); err != nil {
		return ""
	}
	for _, k := range slotLabelKeys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
