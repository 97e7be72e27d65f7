package model

import "time"

type ProposalStatus string

const (
    ProposalPending  ProposalStatus = "pending"
    ProposalAccepted ProposalStatus = "accepted"
    ProposalRejected ProposalStatus = "rejected"
)

// Proposal is an artisan's bid on an emergency. Name, company and rating are
// copied from the artisan profile when the bid is submitted.
type Proposal struct {
    ID                string         `db:"id" json:"id"`
    EmergencyID       string         `db:"emergency_id" json:"emergencyId"`
    ArtisanID         string         `db:"artisan_id" json:"artisanId"`
    ArtisanName       string         `db:"artisan_name" json:"artisanName"`
    ArtisanCompany    string         `db:"artisan_company" json:"artisanCompany"`
    ArtisanRating     float64        `db:"artisan_rating" json:"artisanRating"`
    Price             int64          `db:"price" json:"price"`
    Description       string         `db:"description" json:"description"`
    EstimatedDuration string         `db:"estimated_duration" json:"estimatedDuration"`
    Status            ProposalStatus `db:"status" json:"status"`
    CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
}
