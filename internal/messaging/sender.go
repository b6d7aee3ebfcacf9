// Package messaging holds the outbound message senders the automation
// actions dispatch through.
package messaging

import (
	"context"
	"log"
)

// LogSender is the fallback when no transport is configured: it logs the
// message and reports success, so local development never needs live
// credentials.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, destination, text string) (string, error) {
	log.Printf("[Messaging] Would send to %s: %s", destination, text)
	return "log-" + destination, nil
}

func (LogSender) SendEmail(ctx context.Context, to, subject, htmlBody string) (string, error) {
	log.Printf("[Messaging] Would email %s: subject=%s", to, subject)
	return "log-" + to, nil
}
