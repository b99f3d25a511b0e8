// Package model defines the CRM record types exchanged with the list API.
package model

import "time"

// Report is a service report as listed by the reports view.
type Report struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Address        string    `json:"address"`
	Classification string    `json:"classification"`
	Date           string    `json:"date"`
	Filename       string    `json:"filename,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RecordID identifies the report for deduplication.
func (r Report) RecordID() string { return r.ID }

// Ticket is a client ticket as listed by the tickets view.
type Ticket struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Address     string    `json:"address"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordID identifies the ticket for deduplication.
func (t Ticket) RecordID() int64 { return t.ID }

// Stats holds server-computed counts for a descriptor.
type Stats struct {
	Total       int            `json:"total"`
	PerCategory map[string]int `json:"perCategoryCounts"`
}

// Report classifications.
const (
	ClassMaintenance   = "ТО"
	ClassKitchen       = "ТО Китчен"
	ClassBakery        = "ТО Пекарня"
	ClassKitchenBakery = "ТО Китчен/Пекарня"
	ClassEmergency     = "АВ"
	ClassCommissioning = "ПНР"
)

// ValidClassifications are the allowed report classifications.
var ValidClassifications = map[string]bool{
	ClassMaintenance:   true,
	ClassKitchen:       true,
	ClassBakery:        true,
	ClassKitchenBakery: true,
	ClassEmergency:     true,
	ClassCommissioning: true,
}
