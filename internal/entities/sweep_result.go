package entities

// SweepResult summarizes one notification sweep run.
type SweepResult struct {
	TotalJobs         int   `json:"total_jobs"`
	EligibleJobs      int   `json:"eligible_jobs"`
	NotificationsSent int   `json:"notifications_sent"`
	Errors            int   `json:"errors"`
	DurationMs        int64 `json:"duration_ms"`
}
