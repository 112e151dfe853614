package fsm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "consultbooking/internal/errors"
)

// Client talks to the field-service backend. Every call is parameterized by
// the tenant id, carries a bearer token from the TokenProvider and makes a
// single attempt with the client timeout applied; retries are left to the
// caller's idempotency guards.
type Client struct {
	baseURL  string
	tenantID string
	hc       *http.Client
	tokens   *TokenProvider
}

func NewClient(baseURL, tenantID string, tokens *TokenProvider, timeout time.Duration) *Client {
	return &Client{
		baseURL:  baseURL,
		tenantID: tenantID,
		hc:       &http.Client{Timeout: timeout},
		tokens:   tokens,
	}
}

// List responses arrive in a paged envelope.
type listEnvelope struct {
	Data    json.RawMessage `json:"data"`
	HasMore bool            `json:"hasMore"`
}

func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return apperrors.NewExternalServiceError(operation, 0, fmt.Errorf("failed to obtain access token: %w", err))
	}

	u := fmt.Sprintf("%s/tenant/%s%s", c.baseURL, c.tenantID, path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewExternalServiceError(operation, 0, fmt.Errorf("failed to encode request body: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return apperrors.NewExternalServiceError(operation, 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return apperrors.NewExternalServiceError(operation, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return apperrors.NewExternalServiceError(operation, resp.StatusCode, fmt.Errorf("%s", string(raw)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewExternalServiceError(operation, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func (c *Client) list(ctx context.Context, operation, path string, query url.Values, out interface{}) error {
	var env listEnvelope
	if err := c.do(ctx, operation, http.MethodGet, path, query, nil, &env); err != nil {
		return err
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperrors.NewExternalServiceError(operation, 0, fmt.Errorf("failed to decode list data: %w", err))
	}
	return nil
}

func timeParam(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func (c *Client) ListShifts(ctx context.Context, technicianID int64, from, to time.Time) ([]Shift, error) {
	q := url.Values{}
	q.Set("technicianId", strconv.FormatInt(technicianID, 10))
	q.Set("startsOnOrAfter", timeParam(from))
	q.Set("endsOnOrBefore", timeParam(to))
	var shifts []Shift
	if err := c.list(ctx, "list shifts", "/shifts", q, &shifts); err != nil {
		return nil, err
	}
	return shifts, nil
}

func (c *Client) ListAppointments(ctx context.Context, technicianID int64, from, to time.Time) ([]Appointment, error) {
	q := url.Values{}
	q.Set("technicianId", strconv.FormatInt(technicianID, 10))
	q.Set("startsOnOrAfter", timeParam(from))
	q.Set("startsBefore", timeParam(to))
	var appts []Appointment
	if err := c.list(ctx, "list appointments", "/appointments", q, &appts); err != nil {
		return nil, err
	}
	return appts, nil
}

// GetCustomerByPhone resolves a customer by exact phone match. A nil
// customer with a nil error means no match exists.
func (c *Client) GetCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	q := url.Values{}
	q.Set("phone", phone)
	var customers []Customer
	if err := c.list(ctx, "query customer by phone", "/customers", q, &customers); err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, nil
	}
	return &customers[0], nil
}

func (c *Client) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	var customer Customer
	if err := c.do(ctx, "get customer", http.MethodGet, fmt.Sprintf("/customers/%d", id), nil, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (c *Client) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	var customer Customer
	if err := c.do(ctx, "create customer", http.MethodPost, "/customers", nil, req, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (c *Client) CreateLocation(ctx context.Context, req CreateLocationRequest) (*Location, error) {
	var location Location
	if err := c.do(ctx, "create location", http.MethodPost, "/locations", nil, req, &location); err != nil {
		return nil, err
	}
	return &location, nil
}

func (c *Client) QueryJobs(ctx context.Context, query JobQuery) ([]Job, error) {
	q := url.Values{}
	if query.TechnicianID != 0 {
		q.Set("technicianId", strconv.FormatInt(query.TechnicianID, 10))
	}
	if query.JobTypeID != 0 {
		q.Set("jobTypeId", strconv.FormatInt(query.JobTypeID, 10))
	}
	if query.Status != "" {
		q.Set("status", query.Status)
	}
	if !query.StartsOnOrAfter.IsZero() {
		q.Set("appointmentStartsOnOrAfter", timeParam(query.StartsOnOrAfter))
	}
	if !query.StartsBefore.IsZero() {
		q.Set("appointmentStartsBefore", timeParam(query.StartsBefore))
	}
	var jobs []Job
	if err := c.list(ctx, "query jobs", "/jobs", q, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *Client) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	var job Job
	if err := c.do(ctx, "create job", http.MethodPost, "/jobs", nil, req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) GetTechnician(ctx context.Context, id int64) (*Technician, error) {
	var tech Technician
	if err := c.do(ctx, "get technician", http.MethodGet, fmt.Sprintf("/technicians/%d", id), nil, nil, &tech); err != nil {
		return nil, err
	}
	return &tech, nil
}

// AssignTechnician adds a technician to an appointment. The assignment is
// additive, existing technicians stay on the appointment.
func (c *Client) AssignTechnician(ctx context.Context, appointmentID, technicianID int64) error {
	body := map[string]int64{"technicianId": technicianID}
	path := fmt.Sprintf("/appointments/%d/technicians", appointmentID)
	return c.do(ctx, "assign technician", http.MethodPost, path, nil, body, nil)
}

func (c *Client) GetInvoiceByJob(ctx context.Context, jobID int64) (*Invoice, error) {
	q := url.Values{}
	q.Set("jobId", strconv.FormatInt(jobID, 10))
	var invoices []Invoice
	if err := c.list(ctx, "query invoice by job", "/invoices", q, &invoices); err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}
	return &invoices[0], nil
}

func (c *Client) UpdateInvoiceItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error {
	body := map[string][]InvoiceItem{"items": items}
	path := fmt.Sprintf("/invoices/%d/items", invoiceID)
	return c.do(ctx, "update invoice items", http.MethodPut, path, nil, body, nil)
}

func (c *Client) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	q := url.Values{}
	q.Set("invoiceId", strconv.FormatInt(invoiceID, 10))
	var payments []Payment
	if err := c.list(ctx, "query payments", "/payments", q, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, "create payment", http.MethodPost, "/payments", nil, req, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) ListNotes(ctx context.Context, jobID int64) ([]Note, error) {
	var notes []Note
	path := fmt.Sprintf("/jobs/%d/notes", jobID)
	if err := c.list(ctx, "list job notes", path, nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (c *Client) CreateNote(ctx context.Context, jobID int64, text string) error {
	body := map[string]string{"text": text}
	path := fmt.Sprintf("/jobs/%d/notes", jobID)
	return c.do(ctx, "create job note", http.MethodPost, path, nil, body, nil)
}
