// Package email delivers operator notifications.
package email

import "context"

// Sender delivers operator notifications.
type Sender interface {
	SendAlertEmail(ctx context.Context, toEmail string, alert AlertMessage) error
}

// AlertMessage is the content of one alert notification.
type AlertMessage struct {
	Kind     string
	Subject  string
	Message  string
	Observed float64
	Limit    float64
}

type NoopSender struct{}

func (NoopSender) SendAlertEmail(ctx context.Context, toEmail string, alert AlertMessage) error {
	return nil
}
