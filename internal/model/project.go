package model

import "time"

type ProjectStatus string

const (
    ProjectAccepted   ProjectStatus = "accepted"
    ProjectInProgress ProjectStatus = "in_progress"
    ProjectCompleted  ProjectStatus = "completed"
    ProjectPaid       ProjectStatus = "paid"
)

// PhotoPhase selects which photo list of a project an upload lands in.
type PhotoPhase string

const (
    PhaseBefore PhotoPhase = "before"
    PhaseDuring PhotoPhase = "during"
    PhaseAfter  PhotoPhase = "after"
)

func (p PhotoPhase) Valid() bool {
    return p == PhaseBefore || p == PhaseDuring || p == PhaseAfter
}

// Project is the unit of work created when a proposal is accepted.
// Gestionnaire, Artisan and Timeline are filled by joins, not columns.
type Project struct {
    ID             string        `db:"id" json:"id"`
    EmergencyID    string        `db:"emergency_id" json:"emergencyId"`
    ProposalID     string        `db:"proposal_id" json:"proposalId"`
    GestionnaireID string        `db:"gestionnaire_id" json:"gestionnaireId"`
    ArtisanID      string        `db:"artisan_id" json:"artisanId"`
    Title          string        `db:"title" json:"title"`
    Description    string        `db:"description" json:"description"`
    Address        string        `db:"address" json:"address"`
    Price          int64         `db:"price" json:"price"`
    Status         ProjectStatus `db:"status" json:"status"`
    StartDate      *time.Time    `db:"start_date" json:"startDate,omitempty"`
    CompletedDate  *time.Time    `db:"completed_date" json:"completedDate,omitempty"`
    PhotosBefore   StringList    `db:"photos_before" json:"photosBefore"`
    PhotosDuring   StringList    `db:"photos_during" json:"photosDuring"`
    PhotosAfter    StringList    `db:"photos_after" json:"photosAfter"`
    Rating         *int          `db:"rating" json:"rating,omitempty"`
    Review         *string       `db:"review" json:"review,omitempty"`
    CreatedAt      time.Time     `db:"created_at" json:"createdAt"`

    Gestionnaire *User          `db:"-" json:"gestionnaire,omitempty"`
    Artisan      *User          `db:"-" json:"artisan,omitempty"`
    Timeline     []TimelineEntry `db:"-" json:"timeline,omitempty"`
}

// IsParticipant reports whether userID is one of the two parties.
func (p Project) IsParticipant(userID string) bool {
    return userID != "" && (p.GestionnaireID == userID || p.ArtisanID == userID)
}

// Counterpart returns the other party of the project.
func (p Project) Counterpart(userID string) string {
    if p.GestionnaireID == userID {
        return p.ArtisanID
    }
    return p.GestionnaireID
}

// AddPhotos appends urls to the list for phase.
func (p *Project) AddPhotos(phase PhotoPhase, urls []string) {
    switch phase {
    case PhaseBefore:
        p.PhotosBefore = append(p.PhotosBefore, urls...)
    case PhaseDuring:
        p.PhotosDuring = append(p.PhotosDuring, urls...)
    case PhaseAfter:
        p.PhotosAfter = append(p.PhotosAfter, urls...)
    }
}

type TimelineType string

const (
    TimelineStatusChange TimelineType = "status_change"
    TimelineMessage      TimelineType = "message"
    TimelinePhotoUpload  TimelineType = "photo_upload"
    TimelinePayment      TimelineType = "payment"
)

// TimelineEntry is an append-only event in a project's history.
type TimelineEntry struct {
    ID        string       `db:"id" json:"id"`
    ProjectID string       `db:"project_id" json:"projectId"`
    Type      TimelineType `db:"type" json:"type"`
    Message   string       `db:"message" json:"message"`
    Author    string       `db:"author" json:"author"`
    Timestamp time.Time    `db:"timestamp" json:"timestamp"`
    Photos    StringList   `db:"photos" json:"photos"`
}

// ChatMessage is an append-only message between the two project parties.
type ChatMessage struct {
    ID         string     `db:"id" json:"id"`
    ProjectID  string     `db:"project_id" json:"projectId"`
    SenderID   string     `db:"sender_id" json:"senderId"`
    SenderName string     `db:"sender_name" json:"senderName"`
    Message    string     `db:"message" json:"message"`
    Timestamp  time.Time  `db:"timestamp" json:"timestamp"`
    Photos     StringList `db:"photos" json:"photos"`
    IsRead     bool       `db:"is_read" json:"isRead"`
}
