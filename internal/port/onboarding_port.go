package port

import (
	"context"

	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"
)

// CustomerStore persists StoredCustomer checkpoints keyed by lower-cased
// email. Lookups return (nil, nil) on a miss.
type CustomerStore interface {
	// Upsert inserts or overwrites the record for c.Email and stamps LastVisit.
	// ConversationHistory on c is ignored; history only grows via AppendHistory.
	Upsert(ctx context.Context, c *odomain.StoredCustomer) error
	FindByEmail(ctx context.Context, email string) (*odomain.StoredCustomer, error)
	FindByMobile(ctx context.Context, mobile string) (*odomain.StoredCustomer, error)
	AppendHistory(ctx context.Context, email string, entry odomain.HistoryEntry) error
	NewID() string
	Ping(ctx context.Context) error
	Close() error
}

// DocumentExtractor reads compliance details out of an uploaded document.
// A nil record with a nil error means nothing could be extracted.
type DocumentExtractor interface {
	Extract(ctx context.Context, upload odomain.Upload) (*odomain.KYCRecord, error)
}

// PDFExporter renders the application document and returns where it was written.
type PDFExporter interface {
	Export(ctx context.Context, s odomain.Session) (string, error)
}

// OTPChannels are the destinations of the two one-time codes.
type OTPChannels struct {
	Mobile string
	Email  string
}

// OTPChallenge issues and checks the pair of one-time codes for a session.
type OTPChallenge interface {
	Open(ctx context.Context, sessionID string, to OTPChannels) error
	Resend(ctx context.Context, sessionID string) error
	// Verify reports whether both codes match an open, unexpired challenge.
	Verify(ctx context.Context, sessionID string, codes odomain.OTPCodes) (bool, error)
}

// KYCDirectory resolves existing-customer KYC records. A miss is (nil, nil).
type KYCDirectory interface {
	LookupByMobile(ctx context.Context, mobile string) (*odomain.KYCRecord, error)
}

// EventPublisher announces completed onboardings to downstream systems.
type EventPublisher interface {
	PublishCompletion(ctx context.Context, ev odomain.CompletionEvent) error
	Ping(ctx context.Context) error
}

// HelpAgent is the remote assistant behind the help panel.
type HelpAgent interface {
	SendChat(ctx context.Context, req *odomain.AgentRequest) (*odomain.AgentResponse, error)
}

// WelcomeMailer sends the post-onboarding welcome e-mail.
type WelcomeMailer interface {
	SendWelcome(ctx context.Context, ev odomain.CompletionEvent) error
}
