package entities

import "time"

type LocationInput struct {
	Street string `json:"street"`
	Unit   string `json:"unit,omitempty"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

type BookingRequest struct {
	CustomerName         string         `json:"customer_name"`
	CustomerPhone        string         `json:"customer_phone"`
	CustomerEmail        string         `json:"customer_email"`
	ServiceLocation      LocationInput  `json:"service_location"`
	BillingSameAsService bool           `json:"billing_same_as_service"`
	BillingLocation      *LocationInput `json:"billing_location,omitempty"`
	SlotStart            time.Time      `json:"slot_start"`
	SlotEnd              time.Time      `json:"slot_end"`
	WorkerID             int64          `json:"worker_id"`
	ServiceTypeID        string         `json:"service_type_id"`
}
