package repository

import (
	"database/sql"
	"time"

	"consultbooking/internal/entities"
	"consultbooking/internal/fsm"
)

// ReportRepository mirrors booked jobs and sweep-run metrics into the local
// database for reporting. The backend stays the system of record; rows here
// are never read back by the booking or notification paths.
type ReportRepository struct {
	DB *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{DB: db}
}

func (r *ReportRepository) SaveBookedJob(job *fsm.Job, serviceTypeID string, workerID int64) error {
	var start, end time.Time
	if len(job.Appointments) > 0 {
		start = job.Appointments[0].Start
		end = job.Appointments[0].End
	}
	query := `
		INSERT INTO booked_jobs
		(job_id, customer_id, worker_id, service_type_id, start_time, end_time, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id) DO NOTHING`
	_, err := r.DB.Exec(query,
		job.ID,
		job.CustomerID,
		workerID,
		serviceTypeID,
		start,
		end,
		job.Status,
		time.Now().UTC(),
	)
	return err
}

func (r *ReportRepository) SaveSweepRun(res *entities.SweepResult, ranAt time.Time) error {
	query := `
		INSERT INTO sweep_runs
		(ran_at, total_jobs, eligible_jobs, notifications_sent, errors, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.Exec(query,
		ranAt.UTC(),
		res.TotalJobs,
		res.EligibleJobs,
		res.NotificationsSent,
		res.Errors,
		res.DurationMs,
	)
	return err
}
