package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "consultbooking/internal/errors"
	"consultbooking/internal/fsm"
	"consultbooking/internal/registry"
)

type fakeNotificationBackend struct {
	mu          sync.Mutex
	jobs        []fsm.Job
	customers   map[int64]*fsm.Customer
	technicians map[int64]*fsm.Technician
	notes       map[int64][]fsm.Note

	customerErr map[int64]error
	noteErr     error
}

func newFakeNotificationBackend() *fakeNotificationBackend {
	return &fakeNotificationBackend{
		customers:   map[int64]*fsm.Customer{},
		technicians: map[int64]*fsm.Technician{},
		notes:       map[int64][]fsm.Note{},
		customerErr: map[int64]error{},
	}
}

func (f *fakeNotificationBackend) QueryJobs(ctx context.Context, query fsm.JobQuery) ([]fsm.Job, error) {
	return f.jobs, nil
}

func (f *fakeNotificationBackend) GetCustomer(ctx context.Context, id int64) (*fsm.Customer, error) {
	if err := f.customerErr[id]; err != nil {
		return nil, err
	}
	c, ok := f.customers[id]
	if !ok {
		return nil, errors.New("customer not found")
	}
	return c, nil
}

func (f *fakeNotificationBackend) GetTechnician(ctx context.Context, id int64) (*fsm.Technician, error) {
	tech, ok := f.technicians[id]
	if !ok {
		return nil, errors.New("technician not found")
	}
	return tech, nil
}

func (f *fakeNotificationBackend) ListNotes(ctx context.Context, jobID int64) ([]fsm.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notes[jobID], nil
}

func (f *fakeNotificationBackend) CreateNote(ctx context.Context, jobID int64, text string) error {
	if f.noteErr != nil {
		return f.noteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[jobID] = append(f.notes[jobID], fsm.Note{ID: int64(len(f.notes[jobID]) + 1), Text: text})
	return nil
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []string // phone numbers, in send order
	bodies   map[string]string
	failFor  map[string]bool
	sendErr  error
	receipts int
}

func newFakeSender() *fakeSender {
	return &fakeSender{bodies: map[string]string{}, failFor: map[string]bool{}}
}

func (f *fakeSender) Send(phone, body, displayName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil || f.failFor[phone] {
		if f.sendErr != nil {
			return "", f.sendErr
		}
		return "", errors.New("gateway rejected message")
	}
	f.sent = append(f.sent, phone)
	f.bodies[phone] = body
	f.receipts++
	return "SM123", nil
}

func (f *fakeSender) sentTo(phone string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.sent {
		if p == phone {
			return true
		}
	}
	return false
}

const markerText = "Consultation reminder sent"

func sweepConfig() NotificationConfig {
	return NotificationConfig{
		ServiceTypeID:     "virtual-consult",
		Window:            5 * time.Minute,
		MarkerText:        markerText,
		CustomerLinkField: "CustomerJoinLink",
		WorkerLinkField:   "TechJoinLink",
		DisplayName:       "Virtual Consultations",
	}
}

func reminderJob(id, customerID, techID int64, start time.Time) fsm.Job {
	return fsm.Job{
		ID:         id,
		CustomerID: customerID,
		JobTypeID:  77,
		Status:     "Scheduled",
		Appointments: []fsm.JobAppointment{{
			ID: id + 1000, Start: start, End: start.Add(30 * time.Minute), TechnicianIDs: []int64{techID},
		}},
		CustomFields: []fsm.CustomField{
			{Name: "CustomerJoinLink", Value: "https://meet.example/c/1"},
			{Name: "TechJoinLink", Value: "https://meet.example/t/1"},
		},
	}
}

func newNotificationService(t *testing.T, backend *fakeNotificationBackend, sender *fakeSender, now time.Time) *NotificationService {
	t.Helper()
	reg := testRegistry(t, registry.Worker{ID: 1, Name: "Ana", Skills: []registry.Skill{"video"}})
	svc := NewNotificationService(backend, sender, reg, nil, sweepConfig(), time.UTC)
	svc.now = func() time.Time { return now }
	return svc
}

func TestRunSweep_SendsBothRemindersAndWritesMarker(t *testing.T) {
	now := day(10, 0)
	backend := newFakeNotificationBackend()
	backend.jobs = []fsm.Job{reminderJob(1, 50, 7, now.Add(3*time.Minute))}
	backend.customers[50] = &fsm.Customer{ID: 50, Name: "Maria", Phone: "+15550001111"}
	backend.technicians[7] = &fsm.Technician{ID: 7, Name: "Ana", Phone: "+15550009999"}
	sender := newFakeSender()

	svc := newNotificationService(t, backend, sender, now)
	result, err := svc.RunSweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalJobs)
	assert.Equal(t, 1, result.EligibleJobs)
	assert.Equal(t, 2, result.NotificationsSent)
	assert.Equal(t, 0, result.Errors)

	assert.True(t, sender.sentTo("+15550001111"))
	assert.True(t, sender.sentTo("+15550009999"))
	assert.Contains(t, sender.bodies["+15550001111"], "https://meet.example/c/1")
	assert.Contains(t, sender.bodies["+15550009999"], "https://meet.example/t/1")

	require.Len(t, backend.notes[1], 1)
	assert.Equal(t, markerText, backend.notes[1][0].Text)
}

func TestRunSweep_MarkerNotePreventsResend(t *testing.T) {
	now := day(10, 0)
	backend := newFakeNotificationBackend()
	backend.jobs = []fsm.Job{reminderJob(1, 50, 7, now)}
	backend.customers[50] = &fsm.Customer{ID: 50, Name: "Maria", Phone: "+15550001111"}
	backend.technicians[7] = &fsm.Technician{ID: 7, Name: "Ana", Phone: "+15550009999"}
	sender := newFakeSender()
	svc := newNotificationService(t, backend, sender, now)

	_, err := svc.RunSweep(context.Background())
	require.NoError(t, err)

	second, err := svc.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.TotalJobs)
	assert.Equal(t, 0, second.EligibleJobs)
	assert.Equal(t, 0, second.NotificationsSent)
	assert.Equal(t, 2, sender.receipts, "no additional sends on the second sweep")
}

func TestRunSweep_CustomerSendFailureSkipsMarker(t *testing.T) {
	now := day(10, 0)
	backend := newFakeNotificationBackend()
	backend.jobs = []fsm.Job{reminderJob(1, 50, 7, now)}
	backend.customers[50] = &fsm.Customer{ID: 50, Name: "Maria", Phone: "+15550001111"}
	backend.technicians[7] = &fsm.Technician{ID: 7, Name: "Ana", Phone: "+15550009999"}
	sender := newFakeSender()
	sender.failFor["+15550001111"] = true

	svc := newNotificationService(t, backend, sender, now)
	result, err := svc.RunSweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.EligibleJobs)
	assert.Equal(t, 1, result.Errors)
	assert.Empty(t, backend.notes[1], "a failed customer send must leave the job eligible")
	assert.True(t, sender.sentTo("+15550009999"), "the worker reminder is independent")
}

func TestRunSweep_OutOfWindowAndMissingPhoneAreIneligible(t *testing.T) {
	now := day(10, 0)
	backend := newFakeNotificationBackend()
	backend.jobs = []fsm.Job{
		reminderJob(1, 50, 7, now.Add(20*time.Minute)), // too far out
		reminderJob(2, 51, 7, now),                     // no phone
	}
	backend.customers[50] = &fsm.Customer{ID: 50, Name: "Maria", Phone: "+15550001111"}
	backend.customers[51] = &fsm.Customer{ID: 51, Name: "Luis"}
	backend.technicians[7] = &fsm.Technician{ID: 7, Name: "Ana", Phone: "+15550009999"}
	sender := newFakeSender()

	svc := newNotificationService(t, backend, sender, now)
	result, err := svc.RunSweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalJobs)
	assert.Equal(t, 0, result.EligibleJobs)
	assert.Equal(t, 0, result.NotificationsSent)
	assert.Empty(t, sender.sent)
}

func TestRunSweep_OneJobFailureDoesNotStopSiblings(t *testing.T) {
	now := day(10, 0)
	backend := newFakeNotificationBackend()
	backend.jobs = []fsm.Job{
		reminderJob(1, 50, 7, now),
		reminderJob(2, 51, 7, now),
	}
	backend.customers[51] = &fsm.Customer{ID: 51, Name: "Luis", Phone: "+15550002222"}
	backend.technicians[7] = &fsm.Technician{ID: 7, Name: "Ana", Phone: "+15550009999"}
	backend.customerErr[50] = errors.New("customer service timeout")
	sender := newFakeSender()

	svc := newNotificationService(t, backend, sender, now)
	result, err := svc.RunSweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalJobs)
	assert.Equal(t, 1, result.EligibleJobs)
	assert.Equal(t, 1, result.Errors)
	assert.True(t, sender.sentTo("+15550002222"))
	require.Len(t, backend.notes[2], 1)
}

func TestRunSweep_MissingConfigIsFatal(t *testing.T) {
	backend := newFakeNotificationBackend()
	reg := testRegistry(t, registry.Worker{ID: 1, Name: "Ana", Skills: []registry.Skill{"video"}})
	cfg := sweepConfig()
	cfg.MarkerText = ""
	svc := NewNotificationService(backend, newFakeSender(), reg, nil, cfg, time.UTC)

	_, err := svc.RunSweep(context.Background())
	var validation *apperrors.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestRunSweep_MarkerWriteFailureCountsError(t *testing.T) {
	now := day(10, 0)
	backend := newFakeNotificationBackend()
	backend.jobs = []fsm.Job{reminderJob(1, 50, 7, now)}
	backend.customers[50] = &fsm.Customer{ID: 50, Name: "Maria", Phone: "+15550001111"}
	backend.technicians[7] = &fsm.Technician{ID: 7, Name: "Ana", Phone: "+15550009999"}
	backend.noteErr = errors.New("notes endpoint down")
	sender := newFakeSender()

	svc := newNotificationService(t, backend, sender, now)
	result, err := svc.RunSweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.NotificationsSent)
	assert.Equal(t, 1, result.Errors)
	assert.Empty(t, backend.notes[1])
}
