package appointment

import (
	"context"
	"log"
)

// Notifier dispatches client notifications on lifecycle events. Dispatch is
// fire-and-forget: implementations swallow their own failures and must never
// affect the scheduling transaction, which has already committed.
type Notifier interface {
	AppointmentScheduled(ctx context.Context, appt *Appointment)
	AppointmentConfirmed(ctx context.Context, appt *Appointment)
	AppointmentCancelled(ctx context.Context, appt *Appointment)
}

// LogNotifier is the default no-op dispatcher; real email/SMS delivery lives
// with an external collaborator.
type LogNotifier struct{}

func (LogNotifier) AppointmentScheduled(_ context.Context, appt *Appointment) {
	log.Printf("appointment %s scheduled for %s %s", appt.ID, appt.Date.Format("2006-01-02"), appt.Start)
}

func (LogNotifier) AppointmentConfirmed(_ context.Context, appt *Appointment) {
	log.Printf("appointment %s confirmed", appt.ID)
}

func (LogNotifier) AppointmentCancelled(_ context.Context, appt *Appointment) {
	log.Printf("appointment %s cancelled", appt.ID)
}
