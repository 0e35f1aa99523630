package mail

import "time"

// Account is a connected Microsoft mailbox. Token material never leaves the
// repository unencrypted except inside the service.
type Account struct {
	ID          int64     `json:"id"`
	Mailbox     string    `json:"mailbox"`
	DisplayName string    `json:"display_name"`
	ConnectedBy int64     `json:"connected_by"`
	TokenExpiry time.Time `json:"token_expiry"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Message is an outbound email handed to the Graph sendMail endpoint.
type Message struct {
	To      []string
	Cc      []string
	Subject string
	// Body is HTML.
	Body string
}
