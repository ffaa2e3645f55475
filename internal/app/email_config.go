package app

import (
	"time"

	"github.com/charlesng35/notely/pkg/mail"
)

const defaultDeliveryTimeout = 5 * time.Second

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// OTPDeliveryTimeout bounds a single OTP email delivery.
func (c EmailConfig) OTPDeliveryTimeout() time.Duration {
	if c.DeliveryTimeout <= 0 {
		return defaultDeliveryTimeout
	}
	return c.DeliveryTimeout
}
