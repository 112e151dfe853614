package service

import (
	"context"
	"time"

	"consultbooking/internal/fsm"
)

// Consumer-side views of the backend client, one per service, so tests can
// substitute fakes without standing up the real API.

type AvailabilityBackend interface {
	ListShifts(ctx context.Context, technicianID int64, from, to time.Time) ([]fsm.Shift, error)
	ListAppointments(ctx context.Context, technicianID int64, from, to time.Time) ([]fsm.Appointment, error)
}

type BookingBackend interface {
	GetCustomerByPhone(ctx context.Context, phone string) (*fsm.Customer, error)
	CreateCustomer(ctx context.Context, req fsm.CreateCustomerRequest) (*fsm.Customer, error)
	CreateLocation(ctx context.Context, req fsm.CreateLocationRequest) (*fsm.Location, error)
	QueryJobs(ctx context.Context, query fsm.JobQuery) ([]fsm.Job, error)
	CreateJob(ctx context.Context, req fsm.CreateJobRequest) (*fsm.Job, error)
	GetTechnician(ctx context.Context, id int64) (*fsm.Technician, error)
	AssignTechnician(ctx context.Context, appointmentID, technicianID int64) error
	GetInvoiceByJob(ctx context.Context, jobID int64) (*fsm.Invoice, error)
	UpdateInvoiceItems(ctx context.Context, invoiceID int64, items []fsm.InvoiceItem) error
	ListPayments(ctx context.Context, invoiceID int64) ([]fsm.Payment, error)
	CreatePayment(ctx context.Context, req fsm.CreatePaymentRequest) (*fsm.Payment, error)
}

type NotificationBackend interface {
	QueryJobs(ctx context.Context, query fsm.JobQuery) ([]fsm.Job, error)
	GetCustomer(ctx context.Context, id int64) (*fsm.Customer, error)
	GetTechnician(ctx context.Context, id int64) (*fsm.Technician, error)
	ListNotes(ctx context.Context, jobID int64) ([]fsm.Note, error)
	CreateNote(ctx context.Context, jobID int64, text string) error
}

// MessageSender is the messaging gateway boundary. It returns the delivery
// receipt id of the sent message.
type MessageSender interface {
	Send(phone, body, displayName string) (string, error)
}
