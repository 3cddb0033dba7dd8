package domain

import "time"

// EventKind distinguishes the ways a user can move the conversation.
type EventKind string

const (
	EventText   EventKind = "text"
	EventOption EventKind = "option"
	EventUpload EventKind = "upload"
	EventOTP    EventKind = "otp"
)

// Upload describes a completed file upload. The bytes never reach the
// dialogue; only the slot and the file name do.
type Upload struct {
	Slot     UploadSlot `json:"slot"`
	FileName string     `json:"file_name"`
}

// OTPCodes are the two one-time codes the merchant types in.
type OTPCodes struct {
	Mobile string `json:"mobile_code"`
	Email  string `json:"email_code"`
}

// Event is one user input. Speech input arrives as a plain text event.
type Event struct {
	Kind   EventKind `json:"kind"`
	Value  string    `json:"value,omitempty"`
	Upload *Upload   `json:"upload,omitempty"`
	Codes  *OTPCodes `json:"codes,omitempty"`
}

// TextEvent builds a free-text submission.
func TextEvent(value string) Event { return Event{Kind: EventText, Value: value} }

// OptionEvent builds an option click carrying the option label.
func OptionEvent(label string) Event { return Event{Kind: EventOption, Value: label} }

// UploadEvent builds an upload-complete event.
func UploadEvent(slot UploadSlot, fileName string) Event {
	return Event{Kind: EventUpload, Upload: &Upload{Slot: slot, FileName: fileName}}
}

// OTPEvent builds an OTP submission.
func OTPEvent(mobileCode, emailCode string) Event {
	return Event{Kind: EventOTP, Codes: &OTPCodes{Mobile: mobileCode, Email: emailCode}}
}

// Turn is one line of a conversation transcript.
type Turn struct {
	Bot       bool      `json:"bot"`
	Text      string    `json:"text"`
	Options   []string  `json:"options,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CompletionEvent is published once a merchant finishes onboarding.
type CompletionEvent struct {
	CustomerID          string      `json:"customer_id"`
	CaseNumber          string      `json:"case_number"`
	Name                string      `json:"name"`
	BusinessName        string      `json:"business_name"`
	Email               string      `json:"email"`
	MobileNumber        string      `json:"mobile_number,omitempty"`
	ServiceType         ServiceType `json:"service_type,omitempty"`
	LinkedAccount       bool        `json:"linked_account"`
	RepresentativeName  string      `json:"representative_name,omitempty"`
	RepresentativePhone string      `json:"representative_phone,omitempty"`
	CompletedAt         time.Time   `json:"completed_at"`
}
