package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jwalitptl/hospital-api/internal/client"
	"github.com/jwalitptl/hospital-api/internal/model"
)

func printDashboard(out io.Writer, d *client.Dashboard) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "%s dashboard, %s\n", d.Role, d.FetchedAt.Format("2006-01-02 15:04:05"))

	if d.Role == model.RolePatient || d.Role == model.RoleDoctor || d.Role == model.RoleAdmin {
		printAppointments(w, "Upcoming appointments", d.Upcoming)
		printAppointments(w, "Past appointments", d.Past)
	}
	if d.Role != model.RoleAdmin {
		fmt.Fprintf(w, "\nPrescriptions (%d)\n", len(d.Prescriptions))
		if len(d.Prescriptions) > 0 {
			fmt.Fprintln(w, "ID\tPATIENT\tDOCTOR\tCREATED\tMEDICINES\tSTATUS")
		}
		for _, p := range d.Prescriptions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				p.ID, p.PatientName, p.DoctorName, p.CreatedDate, len(p.Medicines), p.DispensedStatus)
		}
	}
	if d.Role == model.RoleAdmin {
		printUsers(w, "Awaiting approval", d.PendingUsers)
		printUsers(w, "Users", d.Users)
	}
}

func printAppointments(w io.Writer, title string, list []*model.Appointment) {
	fmt.Fprintf(w, "\n%s (%d)\n", title, len(list))
	if len(list) == 0 {
		return
	}
	fmt.Fprintln(w, "ID\tDATE\tTIME\tPATIENT\tDOCTOR\tSTATUS")
	for _, a := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.AppointmentDate, a.AppointmentTime, a.PatientName, a.DoctorName, a.Status)
	}
}

func printUsers(w io.Writer, title string, list []*model.User) {
	fmt.Fprintf(w, "\n%s (%d)\n", title, len(list))
	if len(list) == 0 {
		return
	}
	fmt.Fprintln(w, "EMAIL\tNAME\tROLE\tVERIFIED")
	for _, u := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", u.Email, u.Name, u.Role, u.Verified)
	}
}

func printDepartments(out io.Writer, list []*model.Department) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "NAME\tHEAD\tDESCRIPTION")
	for _, d := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, deref(d.Head), deref(d.Description))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
