package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

// GoogleIdentity is the profile extracted from a verified Google ID token.
type GoogleIdentity struct {
	GoogleID string
	Email    string
	Name     string
	Avatar   string
}

// GoogleVerifier verifies a Google ID token and returns the identity it
// asserts. Implemented by the real idtoken validator and by test fakes.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (*GoogleIdentity, error)
}

var ErrGoogleToken = errors.New("google token verification failed")

// IDTokenVerifier validates Google ID tokens against our OAuth client id.
type IDTokenVerifier struct {
	clientID string
}

func NewIDTokenVerifier(clientID string) *IDTokenVerifier {
	return &IDTokenVerifier{clientID: clientID}
}

func (v *IDTokenVerifier) Verify(ctx context.Context, token string) (*GoogleIdentity, error) {
	payload, err := idtoken.Validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGoogleToken, err)
	}

	sub, _ := payload.Claims["sub"].(string)
	email, _ := payload.Claims["email"].(string)
	if sub == "" || email == "" {
		return nil, fmt.Errorf("%w: token missing subject or email", ErrGoogleToken)
	}

	name, _ := payload.Claims["name"].(string)
	if name == "" {
		// Fall back to the mailbox name, as the original sign-up flow does.
		name = strings.SplitN(email, "@", 2)[0]
	}
	avatar, _ := payload.Claims["picture"].(string)

	return &GoogleIdentity{
		GoogleID: sub,
		Email:    email,
		Name:     name,
		Avatar:   avatar,
	}, nil
}
