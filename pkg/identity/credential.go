package identity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration is matched by every credential resolution failure.
var ErrConfiguration = errors.New("credential not configured")

var (
	// ErrTokenMissing is returned when no auth token is configured.
	ErrTokenMissing = fmt.Errorf("%w: auth token is empty", ErrConfiguration)
	// ErrTokenMalformed is returned when the auth token does not split into id and secret.
	ErrTokenMalformed = fmt.Errorf("%w: malformed auth token", ErrConfiguration)
)

// Credential identifies the printer against the remote service.
type Credential struct {
	ID     string
	Secret string
}

// ResolveCredential splits a configured "<id><delimiter><secret>" token on the first delimiter.
// The secret may itself contain the delimiter. Both parts must be non-empty.
func ResolveCredential(token, delimiter string) (Credential, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Credential{}, ErrTokenMissing
	}
	if delimiter == "" {
		return Credential{}, ErrTokenMalformed
	}

	id, secret, found := strings.Cut(token, delimiter)
	if !found || id == "" || secret == "" {
		return Credential{}, ErrTokenMalformed
	}
	return Credential{ID: id, Secret: secret}, nil
}
