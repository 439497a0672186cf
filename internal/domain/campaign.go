package domain

import "time"

// Campaign is a targeted, rate-capped outbound email definition.
type Campaign struct {
	ID              int64
	Name            string
	SubjectTemplate string
	BodyTemplate    string
	TargetService   string
	TargetCountries []string
	MinRelevance    int
	Active          bool
	DailyLimit      int
	SentCount       int
	OpenedCount     int
	RepliedCount    int
}

type EmailStatus string

const (
	EmailSending   EmailStatus = "sending"
	EmailSent      EmailStatus = "sent"
	EmailFailed    EmailStatus = "failed"
	EmailDelivered EmailStatus = "delivered"
	EmailOpened    EmailStatus = "opened"
	EmailClicked   EmailStatus = "clicked"
	EmailReplied   EmailStatus = "replied"
)

// SentStatuses are the log states that count as a completed send.
var SentStatuses = []EmailStatus{EmailSent, EmailDelivered, EmailOpened, EmailClicked, EmailReplied}

type EmailLog struct {
	ID           int64
	LeadID       int64
	CampaignID   int64
	Recipient    string
	Subject      string
	Status       EmailStatus
	MessageID    string
	ErrorMessage string
	SentAt       *time.Time
	CreatedAt    time.Time
}
