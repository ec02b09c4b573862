package client

import (
	"context"
	"time"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/rbac"
)

// Dashboard is what one role sees on its home screen. Fields a role has no
// access to stay empty.
type Dashboard struct {
	Role          model.Role            `json:"role"`
	Upcoming      []*model.Appointment  `json:"upcoming,omitempty"`
	Past          []*model.Appointment  `json:"past,omitempty"`
	Prescriptions []*model.Prescription `json:"prescriptions,omitempty"`
	PendingUsers  []*model.User         `json:"pendingUsers,omitempty"`
	Users         []*model.User         `json:"users,omitempty"`
	FetchedAt     time.Time             `json:"fetchedAt"`
}

type loadFunc func(ctx context.Context, s *Session, d *Dashboard) error

// dashboardLoader picks the requests behind each role's dashboard.
type dashboardLoader struct{}

func (dashboardLoader) Patient() loadFunc {
	return func(ctx context.Context, s *Session, d *Dashboard) error {
		if err := loadAppointments(ctx, s, d); err != nil {
			return err
		}
		var err error
		d.Prescriptions, err = s.ListPrescriptions(ctx, "")
		return err
	}
}

func (dashboardLoader) Doctor() loadFunc {
	return func(ctx context.Context, s *Session, d *Dashboard) error {
		if err := loadAppointments(ctx, s, d); err != nil {
			return err
		}
		var err error
		d.Prescriptions, err = s.ListPrescriptions(ctx, "")
		return err
	}
}

func (dashboardLoader) Pharmacist() loadFunc {
	return func(ctx context.Context, s *Session, d *Dashboard) error {
		var err error
		d.Prescriptions, err = s.ListPrescriptions(ctx, "")
		return err
	}
}

func (dashboardLoader) Admin() loadFunc {
	return func(ctx context.Context, s *Session, d *Dashboard) error {
		var err error
		if d.Users, err = s.ListUsers(ctx); err != nil {
			return err
		}
		if d.PendingUsers, err = s.ListPendingUsers(ctx); err != nil {
			return err
		}
		return loadAppointments(ctx, s, d)
	}
}

func loadAppointments(ctx context.Context, s *Session, d *Dashboard) error {
	var err error
	if d.Upcoming, err = s.ListAppointments(ctx, AppointmentQuery{Scope: "upcoming"}); err != nil {
		return err
	}
	d.Past, err = s.ListAppointments(ctx, AppointmentQuery{Scope: "past"})
	return err
}

// Dashboard fetches the signed-in user's dashboard.
func (s *Session) Dashboard(ctx context.Context) (*Dashboard, error) {
	load, err := rbac.Visit[loadFunc](s.User.Role, dashboardLoader{})
	if err != nil {
		return nil, err
	}

	d := &Dashboard{Role: s.User.Role}
	if err := load(ctx, s, d); err != nil {
		return nil, err
	}
	d.FetchedAt = time.Now()
	return d, nil
}
