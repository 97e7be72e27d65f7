package model

import "time"

type PaymentStatus string

const (
    PaymentPending    PaymentStatus = "pending"
    PaymentProcessing PaymentStatus = "processing"
    PaymentCompleted  PaymentStatus = "completed"
    PaymentFailed     PaymentStatus = "failed"
)

// Payment is a transfer from the gestionnaire to the artisan for a project.
// Amounts are in cents.
type Payment struct {
    ID             string        `db:"id" json:"id"`
    ProjectID      string        `db:"project_id" json:"projectId"`
    ArtisanID      string        `db:"artisan_id" json:"artisanId"`
    GestionnaireID string        `db:"gestionnaire_id" json:"gestionnaireId"`
    Amount         int64         `db:"amount" json:"amount"`
    Status         PaymentStatus `db:"status" json:"status"`
    InvoiceURL     *string       `db:"invoice_url" json:"invoiceUrl,omitempty"`
    CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
    ProcessedAt    *time.Time    `db:"processed_at" json:"processedAt,omitempty"`
    Description    string        `db:"description" json:"description"`
}

// IsParticipant reports whether userID is the payer or the payee.
func (p Payment) IsParticipant(userID string) bool {
    return userID != "" && (p.ArtisanID == userID || p.GestionnaireID == userID)
}

// PaymentSummary aggregates a user's payments for the dashboard.
type PaymentSummary struct {
    PendingCount   int   `json:"pendingCount"`
    PendingAmount  int64 `json:"pendingAmount"`
    CompletedCount int   `json:"completedCount"`
    TotalEarned    int64 `json:"totalEarned"`
    FailedCount    int   `json:"failedCount"`
}

type InvoiceStatus string

const (
    InvoiceDraft   InvoiceStatus = "draft"
    InvoiceSent    InvoiceStatus = "sent"
    InvoicePaid    InvoiceStatus = "paid"
    InvoiceOverdue InvoiceStatus = "overdue"
)

// Invoice is issued once per completed payment.
type Invoice struct {
    ID            string        `db:"id" json:"id"`
    ProjectID     string        `db:"project_id" json:"projectId"`
    PaymentID     string        `db:"payment_id" json:"paymentId"`
    InvoiceNumber string        `db:"invoice_number" json:"invoiceNumber"`
    Amount        int64         `db:"amount" json:"amount"`
    TaxAmount     int64         `db:"tax_amount" json:"taxAmount"`
    TotalAmount   int64         `db:"total_amount" json:"totalAmount"`
    IssueDate     time.Time     `db:"issue_date" json:"issueDate"`
    DueDate       time.Time     `db:"due_date" json:"dueDate"`
    Status        InvoiceStatus `db:"status" json:"status"`
    PDFURL        *string       `db:"pdf_url" json:"pdfUrl,omitempty"`
}
