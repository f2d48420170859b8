package alerts

import "time"

// Task type constants
const (
	TaskWelcomeEmail  = "email:welcome"
	TaskPasswordReset = "email:password_reset"
	TaskOrderEvent    = "email:order_event"
)

const (
	queueEmails = "emails"
	queueOrders = "orders"
)

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Welcome email payload
type WelcomeEmailPayload struct {
	UserID   string        `json:"user_id"`
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}

// Password reset payload
type PasswordResetPayload struct {
	UserID    string        `json:"user_id"`
	Email     string        `json:"email"`
	ResetURL  string        `json:"reset_url"`
	Envelope  EmailEnvelope `json:"envelope"`
	Requested time.Time     `json:"requested"`
}

// Order event payload, one per recipient
type OrderEventPayload struct {
	Kind        string        `json:"kind"`
	OrderID     string        `json:"order_id"`
	RecipientID string        `json:"recipient_id"`
	Email       string        `json:"email"`
	Envelope    EmailEnvelope `json:"envelope"`
	SentAt      time.Time     `json:"sent_at"`
}
