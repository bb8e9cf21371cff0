package marketauth

import (
	"context"
	"errors"
	"testing"

	"github.com/Agossa1/marketauth/credential"
)

func TestRegisterSendsVerificationCode(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	user, err := h.engine.Register(ctx, RegisterRequest{Email: "  Kofi@Shop.Example ", Password: "long enough pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" || user.Email != "kofi@shop.example" || user.Role != DefaultRole {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordHash != "" || user.EmailVerified {
		t.Fatalf("register leaked hash or pre-verified the account: %+v", user)
	}

	msg := h.inbox.last(t)
	if msg.Purpose != credential.PurposeEmailVerification || msg.To != "kofi@shop.example" {
		t.Fatalf("unexpected verification message: %+v", msg)
	}
	verified, err := h.engine.VerifyEmail(ctx, "kofi@shop.example", msg.Code)
	if err != nil || !verified.EmailVerified {
		t.Fatalf("verify email: %+v %v", verified, err)
	}

	res := h.login(t, "kofi@shop.example", "long enough pw")
	if !res.Succeeded() || res.Role != DefaultRole {
		t.Fatalf("login after register: %+v", res)
	}
}

func TestRegisterRejects(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.engine.Register(ctx, RegisterRequest{Email: "not-an-email", Password: "long enough pw"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := h.engine.Register(ctx, RegisterRequest{Email: "Ada <ada@shop.example>", Password: "long enough pw"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail for display-name form, got %v", err)
	}
	if _, err := h.engine.Register(ctx, RegisterRequest{Email: "ada@shop.example", Password: "short"}); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}

	if _, err := h.engine.Register(ctx, RegisterRequest{Email: "ada@shop.example", Password: "long enough pw", Role: "seller"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	sent := h.inbox.count()
	if _, err := h.engine.Register(ctx, RegisterRequest{Email: "ADA@shop.example", Password: "another long pw"}); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if h.inbox.count() != sent {
		t.Fatal("duplicate registration must not send a code")
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricAccountCreated] != 1 || snap.Counters[MetricAccountDuplicate] != 1 {
		t.Fatalf("unexpected account counters: created=%d duplicate=%d",
			snap.Counters[MetricAccountCreated], snap.Counters[MetricAccountDuplicate])
	}
}

func TestRegisterSurvivesDeliveryFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.inbox.fail = errors.New("smtp down")

	user, err := h.engine.Register(context.Background(), RegisterRequest{Email: "yao@shop.example", Password: "long enough pw"})
	if err != nil {
		t.Fatalf("register should not fail on delivery: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("expected a created user, got %+v", user)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricNotificationFailed]; got != 1 {
		t.Fatalf("expected one failed notification, got %d", got)
	}
}
