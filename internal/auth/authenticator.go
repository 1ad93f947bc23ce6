package auth

import (
	"context"

	"github.com/mmynk/splittat/internal/models"
)

// Authenticator registers and verifies accounts. PasswordAuthenticator is
// the only implementation; AuthService depends on this interface alone.
type Authenticator interface {
	// Register creates a new user account.
	// Validation errors are returned as *ValidationError with a user-facing message.
	Register(ctx context.Context, email, credential, firstName, lastName string) (*models.User, error)

	// Authenticate returns the user whose credential matches. Unknown email
	// and wrong credential both yield ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential rejects credentials that may not be registered.
	ValidateCredential(credential string) error
}
