package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/hospital-api/internal/client"
	"github.com/jwalitptl/hospital-api/internal/model"
)

func dashboardCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the dashboard for your role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), opts, func(ctx context.Context, s *client.Session) error {
				d, err := s.Dashboard(ctx)
				if err != nil {
					return err
				}
				printDashboard(cmd.OutOrStdout(), d)
				return nil
			})
		},
	}
}

func departmentsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "departments",
		Short: "List the departments that accept bookings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), opts, func(ctx context.Context, s *client.Session) error {
				list, err := s.ListActiveDepartments(ctx)
				if err != nil {
					return err
				}
				printDepartments(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
}

func watchCmd(opts *options) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the dashboard on screen, refreshing it until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), opts, func(ctx context.Context, s *client.Session) error {
				poller := client.NewPoller(s, interval)

				go func() {
					for {
						select {
						case <-ctx.Done():
							return
						case d := <-poller.Updates():
							fmt.Fprintf(cmd.OutOrStdout(), "\n--- %s ---\n", d.FetchedAt.Format(time.TimeOnly))
							printDashboard(cmd.OutOrStdout(), d)
						}
					}
				}()

				return poller.Run(ctx)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", client.MinPollInterval, "refresh interval (10s to 15s)")
	return cmd
}

func bookCmd(opts *options) *cobra.Command {
	var (
		req      model.BookAppointmentRequest
		date     string
		doctorID string
	)

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an appointment (patients)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := model.ParseDate(date)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}
			req.AppointmentDate = d
			if doctorID != "" {
				id, err := uuid.Parse(doctorID)
				if err != nil {
					return fmt.Errorf("--doctor-id: %w", err)
				}
				req.DoctorID = &id
			}

			return withSession(cmd.Context(), opts, func(ctx context.Context, s *client.Session) error {
				if req.PatientName == "" {
					req.PatientName = s.User.Name
				}
				apt, err := s.Book(ctx, &req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Booked %s with %s on %s at %s\n",
					apt.ID, apt.DoctorName, apt.AppointmentDate, apt.AppointmentTime)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.PatientName, "patient-name", "", "patient name (defaults to your account name)")
	f.IntVar(&req.Age, "age", 0, "patient age")
	f.StringVar(&req.Gender, "gender", "", "Male, Female or Other")
	f.StringVar(&req.ContactNumber, "contact", "", "10 digit contact number")
	f.StringVar(&req.Department, "department", "", "department")
	f.StringVar(&req.Doctor, "doctor", "", "doctor name")
	f.StringVar(&doctorID, "doctor-id", "", "doctor id, when the name is ambiguous")
	f.StringVar(&date, "date", "", "appointment date, YYYY-MM-DD")
	f.StringVar(&req.AppointmentTime, "time", "", "time of day, e.g. 10:00 AM")
	f.StringVar(&req.Reason, "reason", "", "reason for the visit")
	f.IntVar(&req.IssueDays, "issue-days", 1, "days the issue has lasted")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func cancelCmd(opts *options) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel APPOINTMENT_ID",
		Short: "Cancel one of your scheduled appointments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid appointment id: %w", err)
			}
			return withSession(cmd.Context(), opts, func(ctx context.Context, s *client.Session) error {
				apt, err := s.Cancel(ctx, id, reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Appointment %s is now %s\n", apt.ID, apt.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the appointment is cancelled")
	return cmd
}

func completeCmd(opts *options) *cobra.Command {
	var (
		req         model.CreatePrescriptionRequest
		medicines   []string
		followUp    string
		noPrescribe bool
	)

	cmd := &cobra.Command{
		Use:   "complete APPOINTMENT_ID",
		Short: "Complete an assigned appointment, with a prescription unless --no-prescription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid appointment id: %w", err)
			}

			if noPrescribe {
				return withSession(cmd.Context(), opts, func(ctx context.Context, s *client.Session) error {
					apt, err := s.CompleteWithoutPrescription(ctx, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Appointment %s is now %s\n", apt.ID, apt.Status)
					return nil
				})
			}

			req.AppointmentID = id
			for i, raw := range medicines {
				m, err := parseMedicine(raw)
				if err != nil {
					return fmt.Errorf("--medicine %d: %w", i+1, err)
				}
				req.Medicines = append(req.Medicines, m)
			}
			if followUp != "" {
				d, err := model.ParseDate(followUp)
				if err != nil {
					return fmt.Errorf("--follow-up: %w", err)
				}
				req.FollowUpDate = &d
			}

			return withSession(cmd.Context(), opts, func(ctx context.Context, s *client.Session) error {
				p, err := s.Complete(ctx, id, &req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Appointment completed, prescription %s is %s\n", p.ID, p.DispensedStatus)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Diagnosis, "diagnosis", "", "diagnosis")
	f.StringVar(&req.Symptoms, "symptoms", "", "symptoms")
	f.StringVar(&req.AdditionalNotes, "notes", "", "additional notes")
	f.StringArrayVar(&medicines, "medicine", nil, `"name;dosage;frequency;duration;quantity[;instruction]", repeatable`)
	f.StringVar(&followUp, "follow-up", "", "follow-up date, YYYY-MM-DD")
	f.BoolVar(&noPrescribe, "no-prescription", false, "complete without writing a prescription")
	return cmd
}

func dispenseCmd(opts *options) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "dispense PRESCRIPTION_ID",
		Short: "Dispense a pending prescription (pharmacists)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid prescription id: %w", err)
			}
			return withSession(cmd.Context(), opts, func(ctx context.Context, s *client.Session) error {
				p, err := s.Dispense(ctx, id, by)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Prescription %s dispensed by %s\n", p.ID, deref(p.DispensedBy))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "pharmacist name (defaults to your account name)")
	return cmd
}

func parseMedicine(raw string) (model.Medicine, error) {
	parts := strings.Split(raw, ";")
	if len(parts) < 5 || len(parts) > 6 {
		return model.Medicine{}, fmt.Errorf("want 5 or 6 ';'-separated fields, got %d", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	qty, err := strconv.Atoi(parts[4])
	if err != nil {
		return model.Medicine{}, fmt.Errorf("quantity %q is not a number", parts[4])
	}
	m := model.Medicine{
		Name:      parts[0],
		Dosage:    parts[1],
		Frequency: parts[2],
		Duration:  parts[3],
		Quantity:  qty,
	}
	if len(parts) == 6 {
		m.Instruction = parts[5]
	}
	return m, nil
}
