// Package notify delivers one-time codes and verification links to users.
//
// The auth core only needs "send this code or link to this address"; the
// implementations here cover SMTP delivery (gomail), structured logging for
// development, and fan-out to several notifiers.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/Agossa1/marketauth/credential"
)

// Channel is the transport a message is addressed to.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ErrUnsupportedChannel is returned by notifiers that cannot reach a channel.
var ErrUnsupportedChannel = errors.New("notify: unsupported channel")

// Message is a code (and optionally a link) for one recipient.
type Message struct {
	Channel   Channel
	To        string
	UserID    string
	Purpose   credential.Purpose
	Code      string
	Link      string
	ExpiresAt time.Time
}

// Notifier sends a message. A returned error means the send was not
// accepted; delivery after acceptance is not tracked.
type Notifier interface {
	SendCode(ctx context.Context, msg Message) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, msg Message) error

func (f Func) SendCode(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Multi routes every message to all notifiers that accept its channel and
// joins their errors. A notifier returning ErrUnsupportedChannel is skipped;
// the message fails only when no notifier accepted it or one failed.
type Multi []Notifier

func (m Multi) SendCode(ctx context.Context, msg Message) error {
	var (
		errs     []error
		accepted bool
	)
	for _, n := range m {
		if n == nil {
			continue
		}
		err := n.SendCode(ctx, msg)
		switch {
		case err == nil:
			accepted = true
		case errors.Is(err, ErrUnsupportedChannel):
		default:
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if !accepted {
		return ErrUnsupportedChannel
	}
	return nil
}

func subjectFor(purpose credential.Purpose) string {
	switch purpose {
	case credential.PurposePasswordReset:
		return "Your password reset code"
	case credential.PurposeEmailVerification:
		return "Verify your email address"
	case credential.PurposePhoneVerification:
		return "Your phone verification code"
	default:
		return "Your verification code"
	}
}
