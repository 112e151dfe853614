package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"consultbooking/internal/entities"
	apperrors "consultbooking/internal/errors"
	"consultbooking/internal/fsm"
	"consultbooking/internal/registry"
	"consultbooking/internal/repository"
	"consultbooking/internal/tasks"
)

const (
	jobStatusScheduled = "Scheduled"
	paymentStatusPaid  = "Paid"

	// the duplicate guard scans one extra slot past the requested window so
	// a near-miss retry still lands on the existing job.
	duplicateGuardSlack = 30 * time.Minute
)

type BookingService struct {
	backend  BookingBackend
	registry *registry.Registry
	reports  *repository.ReportRepository
	sender   *SenderService
	queue    *tasks.Queue
	loc      *time.Location
}

func NewBookingService(backend BookingBackend, reg *registry.Registry, reports *repository.ReportRepository, sender *SenderService, queue *tasks.Queue, loc *time.Location) *BookingService {
	return &BookingService{
		backend:  backend,
		registry: reg,
		reports:  reports,
		sender:   sender,
		queue:    queue,
		loc:      loc,
	}
}

// BookAppointment commits a chosen slot into the backend. Steps 1-3
// (customer resolution, duplicate guard, job creation) are hard failures;
// the managed-worker fallback and the invoice/payment reconciliation are
// soft: logged, never surfaced, never changing the returned job.
func (s *BookingService) BookAppointment(ctx context.Context, req *entities.BookingRequest) (*fsm.Job, error) {
	if err := validateBookingRequest(req); err != nil {
		return nil, err
	}
	serviceType, err := s.registry.ServiceType(req.ServiceTypeID)
	if err != nil {
		return nil, err
	}
	if _, ok := s.registry.Worker(req.WorkerID); !ok {
		return nil, apperrors.NewNotFoundError("worker", "worker %d is not in the registry", req.WorkerID)
	}

	customer, err := s.resolveCustomer(ctx, req)
	if err != nil {
		return nil, err
	}

	existing, err := s.findScheduledJob(ctx, req.WorkerID, req.SlotStart, req.SlotEnd)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.CustomerID != customer.ID {
			return nil, apperrors.NewConflictError(existing.ID,
				"worker %d already has a job booked in this window for another customer", req.WorkerID)
		}
		log.Printf("booking: duplicate guard matched job %d for worker %d at %s, returning it",
			existing.ID, req.WorkerID, req.SlotStart.Format(time.RFC3339))
		return existing, nil
	}

	job, err := s.backend.CreateJob(ctx, fsm.CreateJobRequest{
		CustomerID:     customer.ID,
		LocationID:     customer.Locations[0].ID,
		JobTypeID:      serviceType.JobTypeID,
		BusinessUnitID: serviceType.BusinessUnitID,
		CampaignID:     serviceType.CampaignID,
		Summary:        serviceType.Name,
		Appointments: []fsm.NewAppointment{{
			Start:        req.SlotStart,
			End:          req.SlotEnd,
			TechnicianID: req.WorkerID,
		}},
	})
	if err != nil {
		return nil, err
	}
	log.Printf("booking: created job %d (customer=%d worker=%d start=%s)",
		job.ID, customer.ID, req.WorkerID, req.SlotStart.Format(time.RFC3339))

	// Soft steps. Failures here must never reach the caller.
	s.ensureManagedCoverage(ctx, job, req.WorkerID)
	s.reconcileInvoice(ctx, job, serviceType)

	s.enqueueFollowups(job, req, serviceType)

	return job, nil
}

func validateBookingRequest(req *entities.BookingRequest) error {
	if req == nil {
		return apperrors.NewValidationError("booking request is empty")
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return apperrors.NewValidationError("customer name is required")
	}
	if normalizePhone(req.CustomerPhone) == "" {
		return apperrors.NewValidationError("customer phone is required")
	}
	if req.SlotStart.IsZero() || req.SlotEnd.IsZero() || !req.SlotEnd.After(req.SlotStart) {
		return apperrors.NewValidationError("slot end must be after slot start")
	}
	if req.WorkerID == 0 {
		return apperrors.NewValidationError("worker id is required")
	}
	if req.ServiceTypeID == "" {
		return apperrors.NewValidationError("service type id is required")
	}
	if strings.TrimSpace(req.ServiceLocation.Street) == "" {
		return apperrors.NewValidationError("service location street is required")
	}
	return nil
}

// resolveCustomer finds the customer by exact phone match or creates one,
// and guarantees at least one usable service location either way.
func (s *BookingService) resolveCustomer(ctx context.Context, req *entities.BookingRequest) (*fsm.Customer, error) {
	phone := normalizePhone(req.CustomerPhone)

	customer, err := s.backend.GetCustomerByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if customer != nil {
		if len(customer.Locations) == 0 {
			location, err := s.backend.CreateLocation(ctx, fsm.CreateLocationRequest{
				CustomerID: customer.ID,
				Location:   newLocation(customer.Name, req.ServiceLocation),
			})
			if err != nil {
				return nil, err
			}
			customer.Locations = append(customer.Locations, *location)
		}
		return customer, nil
	}

	createReq := fsm.CreateCustomerRequest{
		Name:            req.CustomerName,
		Contacts:        []fsm.NewContact{{Type: "Phone", Value: phone}},
		ServiceLocation: newLocation(req.CustomerName, req.ServiceLocation),
	}
	if req.CustomerEmail != "" {
		createReq.Contacts = append(createReq.Contacts, fsm.NewContact{Type: "Email", Value: req.CustomerEmail})
	}
	if !req.BillingSameAsService && req.BillingLocation != nil {
		billing := newLocation(req.CustomerName, *req.BillingLocation)
		createReq.BillingLocation = &billing
	}

	customer, err = s.backend.CreateCustomer(ctx, createReq)
	if err != nil {
		return nil, err
	}
	if len(customer.Locations) == 0 {
		return nil, apperrors.NewExternalServiceError("create customer", 0,
			fmt.Errorf("customer %d has no usable service location after creation", customer.ID))
	}
	return customer, nil
}

// findScheduledJob is the duplicate-booking guard: a Scheduled job for the
// worker whose first appointment starts in [slotStart, slotEnd+30m] is the
// same booking and gets returned instead of creating a twin.
func (s *BookingService) findScheduledJob(ctx context.Context, workerID int64, slotStart, slotEnd time.Time) (*fsm.Job, error) {
	upper := slotEnd.Add(duplicateGuardSlack)
	jobs, err := s.backend.QueryJobs(ctx, fsm.JobQuery{
		TechnicianID:    workerID,
		Status:          jobStatusScheduled,
		StartsOnOrAfter: slotStart,
		StartsBefore:    upper.Add(time.Second),
	})
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		job := &jobs[i]
		if len(job.Appointments) == 0 {
			continue
		}
		start := job.Appointments[0].Start
		if !start.Before(slotStart) && !start.After(upper) {
			return job, nil
		}
	}
	return nil, nil
}

// ensureManagedCoverage attaches the configured fallback managed worker when
// the assigned worker may not run a consultation unsupervised. Soft step.
func (s *BookingService) ensureManagedCoverage(ctx context.Context, job *fsm.Job, workerID int64) {
	tech, err := s.backend.GetTechnician(ctx, workerID)
	if err != nil {
		log.Printf("booking: job %d: could not check managed flag for worker %d: %v", job.ID, workerID, err)
		return
	}
	if tech.Managed {
		return
	}
	fallbackID := s.registry.FallbackWorkerID()
	if fallbackID == 0 {
		log.Printf("booking: job %d: worker %d is unmanaged and no fallback worker is configured", job.ID, workerID)
		return
	}
	if len(job.Appointments) == 0 {
		log.Printf("booking: job %d has no appointment to attach fallback worker %d to", job.ID, fallbackID)
		return
	}
	if err := s.backend.AssignTechnician(ctx, job.Appointments[0].ID, fallbackID); err != nil {
		log.Printf("booking: job %d: failed to attach fallback worker %d for unmanaged worker %d: %v",
			job.ID, fallbackID, workerID, err)
		return
	}
	log.Printf("booking: job %d: attached fallback worker %d alongside unmanaged worker %d", job.ID, fallbackID, workerID)
}

// reconcileInvoice aligns the job's invoice with the consultation product
// and marks it paid when no payment exists yet. Every sub-step is wrapped
// independently; a later failure does not undo an earlier success.
func (s *BookingService) reconcileInvoice(ctx context.Context, job *fsm.Job, serviceType registry.ServiceType) {
	invoice, err := s.backend.GetInvoiceByJob(ctx, job.ID)
	if err != nil {
		log.Printf("booking: job %d: invoice lookup failed: %v", job.ID, err)
		return
	}
	if invoice == nil {
		log.Printf("booking: job %d: no invoice generated yet, skipping reconciliation", job.ID)
		return
	}

	items := []fsm.InvoiceItem{{
		SkuCode:        serviceType.ProductCode,
		Description:    serviceType.Name,
		UnitPriceCents: serviceType.ProductPriceCents,
		Quantity:       1,
	}}
	if err := s.backend.UpdateInvoiceItems(ctx, invoice.ID, items); err != nil {
		log.Printf("booking: job %d: invoice %d item update failed: %v", job.ID, invoice.ID, err)
	}

	payments, err := s.backend.ListPayments(ctx, invoice.ID)
	if err != nil {
		log.Printf("booking: job %d: payment lookup for invoice %d failed: %v", job.ID, invoice.ID, err)
		return
	}
	if len(payments) > 0 {
		return
	}
	_, err = s.backend.CreatePayment(ctx, fsm.CreatePaymentRequest{
		InvoiceID:   invoice.ID,
		AmountCents: serviceType.ProductPriceCents,
		Status:      paymentStatusPaid,
		Memo:        serviceType.Name,
	})
	if err != nil {
		log.Printf("booking: job %d: payment creation for invoice %d failed: %v", job.ID, invoice.ID, err)
	}
}

// enqueueFollowups hands the reporting mirror write and the confirmation
// email to the task queue so the caller's response is not held up.
func (s *BookingService) enqueueFollowups(job *fsm.Job, req *entities.BookingRequest, serviceType registry.ServiceType) {
	if s.queue == nil {
		return
	}
	if s.reports != nil {
		jobCopy := *job
		s.queue.Enqueue("job-mirror", func() error {
			return s.reports.SaveBookedJob(&jobCopy, serviceType.ID, req.WorkerID)
		})
	}
	if s.sender != nil && req.CustomerEmail != "" {
		email := req.CustomerEmail
		name := req.CustomerName
		jobID := job.ID
		start := req.SlotStart
		s.queue.Enqueue("confirmation-email", func() error {
			return s.sender.SendBookingConfirmation(email, name, jobID, serviceType.Name, start.In(s.loc))
		})
	}
}

// normalizePhone reduces a phone number to digits with an optional leading
// plus so lookups match the backend's exact-phone semantics.
func normalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func newLocation(name string, in entities.LocationInput) fsm.NewLocation {
	return fsm.NewLocation{
		Name:   name,
		Street: in.Street,
		Unit:   in.Unit,
		City:   in.City,
		State:  in.State,
		Zip:    in.Zip,
	}
}
