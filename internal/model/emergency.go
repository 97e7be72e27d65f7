package model

import (
    "strings"
    "time"
)

type EmergencyStatus string

const (
    EmergencyOpen       EmergencyStatus = "open"
    EmergencyInProgress EmergencyStatus = "in_progress"
    EmergencyCompleted  EmergencyStatus = "completed"
    EmergencyClosed     EmergencyStatus = "closed"
)

// Urgency grades how quickly an emergency must be handled.
type Urgency string

const (
    UrgencyLow      Urgency = "low"
    UrgencyMedium   Urgency = "medium"
    UrgencyHigh     Urgency = "high"
    UrgencyCritical Urgency = "critical"
)

// UrgencyLevels lists the accepted urgency values, lowest first.
var UrgencyLevels = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical}

func (u Urgency) Valid() bool {
    for _, v := range UrgencyLevels {
        if u == v {
            return true
        }
    }
    return false
}

// Emergency is a maintenance request posted by a gestionnaire.
type Emergency struct {
    ID                 string          `db:"id" json:"id"`
    Title              string          `db:"title" json:"title"`
    Description        string          `db:"description" json:"description"`
    Address            string          `db:"address" json:"address"`
    Arrondissement     int             `db:"arrondissement" json:"arrondissement"`
    Trade              string          `db:"trade" json:"trade"`
    MaxBudget          int64           `db:"max_budget" json:"maxBudget"`
    Status             EmergencyStatus `db:"status" json:"status"`
    CreatedBy          string          `db:"created_by" json:"createdBy"`
    CreatedAt          time.Time       `db:"created_at" json:"createdAt"`
    Photos             StringList      `db:"photos" json:"photos"`
    UrgencyLevel       Urgency         `db:"urgency_level" json:"urgencyLevel"`
    AcceptedProposalID *string         `db:"accepted_proposal_id" json:"acceptedProposalId,omitempty"`
}

// EmergencyFilter narrows the open-emergency listing artisans browse.
// Empty fields do not filter.
type EmergencyFilter struct {
    Trades          []string
    Arrondissements []int
    Urgency         Urgency
    Search          string
}

// Matches applies the filter to a single emergency, including the open
// status requirement.
func (f EmergencyFilter) Matches(e Emergency) bool {
    if e.Status != EmergencyOpen {
        return false
    }
    if len(f.Trades) > 0 && !StringList(f.Trades).Contains(e.Trade) {
        return false
    }
    if len(f.Arrondissements) > 0 && !IntList(f.Arrondissements).Contains(e.Arrondissement) {
        return false
    }
    if f.Urgency != "" && e.UrgencyLevel != f.Urgency {
        return false
    }
    if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
        if !strings.Contains(strings.ToLower(e.Title), q) && !strings.Contains(strings.ToLower(e.Description), q) {
            return false
        }
    }
    return true
}
