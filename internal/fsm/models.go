package fsm

import "time"

// Wire types for the field-service backend. Shifts, appointments, jobs,
// customers, invoices, payments and notes are all owned by the backend;
// this service only reads and mutates them through the API.

type Shift struct {
	ID           int64     `json:"id"`
	TechnicianID int64     `json:"technicianId"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

type Appointment struct {
	ID           int64     `json:"id"`
	JobID        int64     `json:"jobId"`
	TechnicianID int64     `json:"technicianId"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Status       string    `json:"status"`
}

type Location struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"customerId"`
	Name       string `json:"name"`
	Street     string `json:"street"`
	Unit       string `json:"unit,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	Zip        string `json:"zip"`
}

type Customer struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Email     string     `json:"email"`
	Locations []Location `json:"locations"`
}

type Technician struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Managed bool   `json:"managed"`
}

type CustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type JobAppointment struct {
	ID            int64     `json:"id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	TechnicianIDs []int64   `json:"technicianIds"`
}

type Job struct {
	ID             int64            `json:"id"`
	CustomerID     int64            `json:"customerId"`
	LocationID     int64            `json:"locationId"`
	JobTypeID      int64            `json:"jobTypeId"`
	BusinessUnitID int64            `json:"businessUnitId"`
	CampaignID     int64            `json:"campaignId"`
	Status         string           `json:"status"`
	Summary        string           `json:"summary,omitempty"`
	InvoiceID      int64            `json:"invoiceId,omitempty"`
	Appointments   []JobAppointment `json:"appointments"`
	CustomFields   []CustomField    `json:"customFields,omitempty"`
}

type Note struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	CreatedOn time.Time `json:"createdOn"`
}

type InvoiceItem struct {
	SkuCode        string `json:"skuCode"`
	Description    string `json:"description"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int64  `json:"quantity"`
}

type Invoice struct {
	ID         int64         `json:"id"`
	JobID      int64         `json:"jobId"`
	Items      []InvoiceItem `json:"items"`
	TotalCents int64         `json:"totalCents"`
}

type Payment struct {
	ID          int64  `json:"id"`
	InvoiceID   int64  `json:"invoiceId"`
	AmountCents int64  `json:"amountCents"`
	Status      string `json:"status"`
}

// Request payloads.

type NewContact struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type NewLocation struct {
	Name   string `json:"name"`
	Street string `json:"street"`
	Unit   string `json:"unit,omitempty"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

type CreateCustomerRequest struct {
	Name            string       `json:"name"`
	Contacts        []NewContact `json:"contacts"`
	ServiceLocation NewLocation  `json:"serviceLocation"`
	BillingLocation *NewLocation `json:"billingLocation,omitempty"`
}

type CreateLocationRequest struct {
	CustomerID int64       `json:"customerId"`
	Location   NewLocation `json:"location"`
}

type NewAppointment struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	TechnicianID int64     `json:"technicianId"`
}

type CreateJobRequest struct {
	CustomerID     int64            `json:"customerId"`
	LocationID     int64            `json:"locationId"`
	JobTypeID      int64            `json:"jobTypeId"`
	BusinessUnitID int64            `json:"businessUnitId"`
	CampaignID     int64            `json:"campaignId"`
	Summary        string           `json:"summary,omitempty"`
	Appointments   []NewAppointment `json:"appointments"`
}

type CreatePaymentRequest struct {
	InvoiceID   int64  `json:"invoiceId"`
	AmountCents int64  `json:"amountCents"`
	Status      string `json:"status"`
	Memo        string `json:"memo,omitempty"`
}

// JobQuery narrows job lookups. Zero values are omitted from the request.
type JobQuery struct {
	TechnicianID    int64
	JobTypeID       int64
	Status          string
	StartsOnOrAfter time.Time
	StartsBefore    time.Time
}
