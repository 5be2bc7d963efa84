// Package services orchestrates the domain operations behind the HTTP
// handlers: membership rules, summary caching, event publication.
package services

import (
	"context"
	"errors"
)

// Service-level sentinels mapped to HTTP status codes by the handlers.
var (
	ErrForbidden     = errors.New("forbidden")
	ErrNotCreator    = errors.New("only the room creator may do this")
	ErrNotUploader   = errors.New("only the uploader may do this")
	ErrNoReceiptText = errors.New("could not extract text from image")
)

// Publisher sends an event to the message broker. A nil Publisher
// disables the pipeline; writes still succeed locally.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}
