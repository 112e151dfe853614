package entities

import "time"

type SlotWorker struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Slot is a single 30-minute bookable instant with the workers free at it.
// Slots are computed per request and never persisted.
type Slot struct {
	Time    time.Time    `json:"time"`
	Workers []SlotWorker `json:"workers"`
}

// DateEntry groups a day's slots for presentation. The date string is
// rendered in the business timezone, slots are ordered ascending by time.
type DateEntry struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}
