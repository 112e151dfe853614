package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"consultbooking/internal/entities"
	apperrors "consultbooking/internal/errors"
	"consultbooking/internal/fsm"
	"consultbooking/internal/registry"
	"consultbooking/internal/repository"
)

// notifyBatchSize bounds per-run concurrency; the messaging gateway rate
// limits aggressively, so candidates are processed ten at a time.
const notifyBatchSize = 10

const defaultSweepWindow = 5 * time.Minute

type NotificationConfig struct {
	// ServiceTypeID selects which jobs are reminder-eligible.
	ServiceTypeID string
	// Window is the half-width W of the [now-W, now+W] sweep window.
	Window time.Duration
	// MarkerText is the exact note text that flags "reminder already sent".
	MarkerText string
	// CustomerLinkField / WorkerLinkField name the job custom fields
	// holding the join links.
	CustomerLinkField string
	WorkerLinkField   string
	// DisplayName is the sender name shown on reminder messages.
	DisplayName string
}

func (c *NotificationConfig) validate() error {
	if c.ServiceTypeID == "" {
		return apperrors.NewValidationError("notification service type is not configured")
	}
	if c.MarkerText == "" {
		return apperrors.NewValidationError("notification marker text is not configured")
	}
	if c.DisplayName == "" {
		return apperrors.NewValidationError("notification display name is not configured")
	}
	if c.Window <= 0 {
		c.Window = defaultSweepWindow
	}
	return nil
}

type NotificationService struct {
	backend  NotificationBackend
	sms      MessageSender
	registry *registry.Registry
	reports  *repository.ReportRepository
	cfg      NotificationConfig
	loc      *time.Location
	now      func() time.Time
}

func NewNotificationService(backend NotificationBackend, sms MessageSender, reg *registry.Registry, reports *repository.ReportRepository, cfg NotificationConfig, loc *time.Location) *NotificationService {
	return &NotificationService{
		backend:  backend,
		sms:      sms,
		registry: reg,
		reports:  reports,
		cfg:      cfg,
		loc:      loc,
		now:      time.Now,
	}
}

// RunSweep scans for jobs starting inside the window and sends one reminder
// each to customer and worker. A run always completes and reports metrics;
// only a missing configuration value or a failed candidate query aborts it.
func (s *NotificationService) RunSweep(ctx context.Context) (*entities.SweepResult, error) {
	started := s.now()

	if err := s.cfg.validate(); err != nil {
		return nil, err
	}
	serviceType, err := s.registry.ServiceType(s.cfg.ServiceTypeID)
	if err != nil {
		return nil, err
	}

	jobs, err := s.backend.QueryJobs(ctx, fsm.JobQuery{
		JobTypeID:       serviceType.JobTypeID,
		Status:          jobStatusScheduled,
		StartsOnOrAfter: started.Add(-s.cfg.Window),
		StartsBefore:    started.Add(s.cfg.Window + time.Minute),
	})
	if err != nil {
		return nil, err
	}

	result := &entities.SweepResult{TotalJobs: len(jobs)}
	var mu sync.Mutex

	for offset := 0; offset < len(jobs); offset += notifyBatchSize {
		end := offset + notifyBatchSize
		if end > len(jobs) {
			end = len(jobs)
		}
		batch := jobs[offset:end]

		var wg sync.WaitGroup
		for i := range batch {
			job := batch[i]
			wg.Add(1)
			go func() {
				defer wg.Done()
				eligible, sent, errs := s.processJob(ctx, &job, started)
				mu.Lock()
				if eligible {
					result.EligibleJobs++
				}
				result.NotificationsSent += sent
				result.Errors += errs
				mu.Unlock()
			}()
		}
		wg.Wait()
	}

	result.DurationMs = time.Since(started).Milliseconds()
	log.Printf("notification sweep: scanned=%d eligible=%d sent=%d errors=%d duration=%dms",
		result.TotalJobs, result.EligibleJobs, result.NotificationsSent, result.Errors, result.DurationMs)

	if s.reports != nil {
		if err := s.reports.SaveSweepRun(result, started); err != nil {
			log.Printf("notification sweep: failed to persist run metrics: %v", err)
		}
	}
	return result, nil
}

// processJob evaluates one candidate and sends its reminders. The customer
// send gates the marker note; the worker send is independent. Returned
// counters: eligibility, messages sent, errors encountered.
func (s *NotificationService) processJob(ctx context.Context, job *fsm.Job, now time.Time) (eligible bool, sent int, errs int) {
	if len(job.Appointments) == 0 {
		return false, 0, 0
	}
	start := job.Appointments[0].Start
	if absDuration(now.Sub(start)) > s.cfg.Window {
		return false, 0, 0
	}

	customer, err := s.backend.GetCustomer(ctx, job.CustomerID)
	if err != nil {
		log.Printf("notification: job %d: customer %d lookup failed: %v", job.ID, job.CustomerID, err)
		return false, 0, 1
	}
	notes, err := s.backend.ListNotes(ctx, job.ID)
	if err != nil {
		log.Printf("notification: job %d: note lookup failed: %v", job.ID, err)
		return false, 0, 1
	}
	if hasMarkerNote(notes, s.cfg.MarkerText) {
		return false, 0, 0
	}
	if customer.Phone == "" {
		log.Printf("notification: job %d: customer %d has no phone, skipping", job.ID, customer.ID)
		return false, 0, 0
	}
	eligible = true

	customerLink := customFieldValue(job, s.cfg.CustomerLinkField)
	workerLink := customFieldValue(job, s.cfg.WorkerLinkField)

	body := customerReminderBody(customer.Name, start.In(s.loc), customerLink)
	if _, err := s.sms.Send(customer.Phone, body, s.cfg.DisplayName); err != nil {
		log.Printf("notification: job %d: customer reminder to %s failed: %v", job.ID, customer.Phone, err)
		errs++
	} else {
		sent++
		// the marker is the only thing preventing a re-send, so it is
		// written as soon as the customer message goes out.
		if err := s.backend.CreateNote(ctx, job.ID, s.cfg.MarkerText); err != nil {
			log.Printf("notification: job %d: marker note write failed, job stays eligible: %v", job.ID, err)
			errs++
		}
	}

	sentWorker, workerErrs := s.sendWorkerReminder(ctx, job, start, workerLink)
	return eligible, sent + sentWorker, errs + workerErrs
}

func (s *NotificationService) sendWorkerReminder(ctx context.Context, job *fsm.Job, start time.Time, link string) (sent, errs int) {
	techIDs := job.Appointments[0].TechnicianIDs
	if len(techIDs) == 0 {
		log.Printf("notification: job %d: no assigned worker, skipping worker reminder", job.ID)
		return 0, 0
	}
	tech, err := s.backend.GetTechnician(ctx, techIDs[0])
	if err != nil {
		log.Printf("notification: job %d: worker %d lookup failed: %v", job.ID, techIDs[0], err)
		return 0, 1
	}
	if tech.Phone == "" {
		log.Printf("notification: job %d: worker %d has no phone, skipping worker reminder", job.ID, tech.ID)
		return 0, 0
	}
	body := workerReminderBody(tech.Name, start.In(s.loc), link)
	if _, err := s.sms.Send(tech.Phone, body, s.cfg.DisplayName); err != nil {
		log.Printf("notification: job %d: worker reminder to %s failed: %v", job.ID, tech.Phone, err)
		return 0, 1
	}
	return 1, 0
}

func customerReminderBody(name string, start time.Time, link string) string {
	body := fmt.Sprintf("Hi %s, your virtual consultation starts at %s.", name, start.Format("15:04"))
	if link != "" {
		body += fmt.Sprintf("\nJoin here: %s", link)
	}
	return body
}

func workerReminderBody(name string, start time.Time, link string) string {
	body := fmt.Sprintf("Hi %s, your next virtual consultation starts at %s.", name, start.Format("15:04"))
	if link != "" {
		body += fmt.Sprintf("\nJoin here: %s", link)
	}
	return body
}

func hasMarkerNote(notes []fsm.Note, marker string) bool {
	for _, n := range notes {
		if n.Text == marker {
			return true
		}
	}
	return false
}

func customFieldValue(job *fsm.Job, name string) string {
	if name == "" {
		return ""
	}
	for _, f := range job.CustomFields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
