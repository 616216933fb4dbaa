package interfaces

import (
	"context"

	"github.com/dataask/dataask/core/domain"
)

// Decrypter turns a stored connection ciphertext into credentials.
type Decrypter interface {
	Decrypt(ciphertext string) (domain.Credentials, error)
}

// Attachment is a file attached to an outbound email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is an outbound HTML email.
type Message struct {
	To          []string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// DeliveryService sends email.
type DeliveryService interface {
	Send(ctx context.Context, msg Message) error
}

// RunGuard serialises scheduled runs per id. TryAcquire returns false
// without blocking when the id is already held.
type RunGuard interface {
	TryAcquire(ctx context.Context, id string) (release func(), ok bool, err error)
}
