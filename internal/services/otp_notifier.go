package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/charlesng35/notely/pkg/errors"
	"github.com/charlesng35/notely/pkg/mail"
	"github.com/charlesng35/notely/pkg/metrics"
)

const (
	defaultDeliveryTimeout = 5 * time.Second
	otpEmailSubject        = "Your OTP for Note App"
)

// NotifierOption customises the OTPNotifier.
type NotifierOption func(*OTPNotifier)

// WithDeliveryTimeout bounds a single delivery attempt.
func WithDeliveryTimeout(d time.Duration) NotifierOption {
	return func(n *OTPNotifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithCodeValidity sets the lifetime quoted in the email body.
func WithCodeValidity(d time.Duration) NotifierOption {
	return func(n *OTPNotifier) {
		if d > 0 {
			n.validity = d
		}
	}
}

// WithNotifierLogger overrides the logger.
func WithNotifierLogger(log *zap.Logger) NotifierOption {
	return func(n *OTPNotifier) {
		if log != nil {
			n.log = log
		}
	}
}

// OTPNotifier delivers one-time codes by email.
type OTPNotifier struct {
	mailer   mail.Mailer
	timeout  time.Duration
	validity time.Duration
	log      *zap.Logger
}

// NewOTPNotifier constructs a notifier sending through the supplied mailer.
func NewOTPNotifier(mailer mail.Mailer, opts ...NotifierOption) (*OTPNotifier, error) {
	if mailer == nil {
		return nil, errors.New("otp notifier: mailer is required")
	}

	n := &OTPNotifier{
		mailer:   mailer,
		timeout:  defaultDeliveryTimeout,
		validity: defaultOTPTTL,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// SendOTP delivers the code to email and waits for the outcome. Any failure, including
// the delivery timeout elapsing, is reported as ErrDelivery.
func (n *OTPNotifier) SendOTP(ctx context.Context, email, code string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	msg := mail.Message{
		To:       []string{email},
		Subject:  otpEmailSubject,
		Body:     n.textBody(code),
		HTMLBody: n.htmlBody(code),
	}

	// Buffered so a mailer that ignores ctx cannot leak the goroutine.
	done := make(chan error, 1)
	go func() {
		done <- n.mailer.Send(ctx, msg)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		metrics.OTPDeliveries.WithLabelValues("failure").Inc()
		n.log.Warn("otp delivery failed", zap.String("recipient", maskEmail(email)), zap.Error(err))
		return appErrors.ErrDelivery.WithInternal(err)
	}

	metrics.OTPDeliveries.WithLabelValues("success").Inc()
	return nil
}

func (n *OTPNotifier) validityText() string {
	minutes := int(math.Ceil(n.validity.Minutes()))
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

func (n *OTPNotifier) textBody(code string) string {
	return fmt.Sprintf("Your OTP is %s. It will expire in %s.", code, n.validityText())
}

func (n *OTPNotifier) htmlBody(code string) string {
	return fmt.Sprintf("Your OTP is <strong>%s</strong>. It will expire in %s.", strings.TrimSpace(code), n.validityText())
}

// maskEmail keeps the first character of the local part and the domain.
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	return string([]rune(local)[:1]) + "***@" + domain
}
