package domain

import "testing"

func TestSessionValid_RequiresBothTokens(t *testing.T) {
	tests := []struct {
		name    string
		session Session
		want    bool
	}{
		{name: "empty", session: Session{}, want: false},
		{name: "access only", session: Session{AccessToken: "a"}, want: false},
		{name: "refresh only", session: Session{RefreshToken: "r"}, want: false},
		{name: "both", session: Session{AccessToken: "a", RefreshToken: "r"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Valid(); got != tt.want {
				t.Fatalf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppointmentStatusValid(t *testing.T) {
	for _, s := range []AppointmentStatus{AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusCancelled, AppointmentStatusCompleted} {
		if !s.Valid() {
			t.Fatalf("%q should be valid", s)
		}
	}
	if AppointmentStatus("rescheduled").Valid() {
		t.Fatalf("unexpected valid status")
	}
	if AppointmentStatusCancelled.Upcoming() {
		t.Fatalf("cancelled appointments are not upcoming")
	}
}

func TestUserDisplayName_FallsBackToEmail(t *testing.T) {
	u := User{Email: "a@example.com"}
	if got := u.DisplayName(); got != "a@example.com" {
		t.Fatalf("DisplayName = %q", got)
	}
	u.FirstName = "Ada"
	if got := u.DisplayName(); got != "Ada" {
		t.Fatalf("DisplayName = %q", got)
	}
}
