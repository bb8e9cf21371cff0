package flows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Agossa1/marketauth/credential"
	"github.com/Agossa1/marketauth/token"
)

func login(t *testing.T, env *testEnv, email, pass string) LoginOutput {
	t.Helper()
	out, err := RunLogin(context.Background(), env.deps, LoginInput{Email: email, Password: pass})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return out
}

func TestLoginUnknownEmailLooksLikeWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "seller@example.com", "correct-horse", true)

	unknown := login(t, env, "nobody@example.com", "whatever-pass")
	if unknown.Outcome != LoginInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", unknown.Outcome)
	}
	if unknown.RemainingAttempts != -1 {
		t.Fatalf("unknown accounts must not report remaining attempts, got %d", unknown.RemainingAttempts)
	}

	wrong := login(t, env, "seller@example.com", "wrong-password")
	if wrong.Outcome != LoginInvalidCredentials || wrong.RemainingAttempts != 4 {
		t.Fatalf("unexpected wrong-password result %+v", wrong)
	}
}

func TestLoginLocksAfterMaxFailures(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "buyer@example.com", "correct-horse", true)

	for i := 1; i <= 4; i++ {
		out := login(t, env, "buyer@example.com", "wrong-password")
		if out.RemainingAttempts != 5-i {
			t.Fatalf("attempt %d: expected %d remaining, got %d", i, 5-i, out.RemainingAttempts)
		}
		if out.LockedUntil != nil {
			t.Fatalf("attempt %d must not lock", i)
		}
	}

	fifth := login(t, env, "buyer@example.com", "wrong-password")
	if fifth.Outcome != LoginInvalidCredentials || fifth.RemainingAttempts != 0 {
		t.Fatalf("fifth failure: unexpected result %+v", fifth)
	}
	if fifth.LockedUntil == nil || !fifth.LockedUntil.Equal(env.clock.Now().Add(15*time.Minute)) {
		t.Fatalf("fifth failure should lock for 15 minutes, got %v", fifth.LockedUntil)
	}

	sixth := login(t, env, "buyer@example.com", "correct-horse")
	if sixth.Outcome != LoginAccountLocked {
		t.Fatalf("correct password inside the window must read as locked, got %v", sixth.Outcome)
	}
	if sixth.Session.AccessToken != "" {
		t.Fatal("locked login must not issue tokens")
	}

	env.clock.Advance(15*time.Minute + time.Second)
	after := login(t, env, "buyer@example.com", "correct-horse")
	if after.Outcome != LoginSucceeded {
		t.Fatalf("expected success after the window, got %v", after.Outcome)
	}
	stored := env.reload(t, user.ID)
	if stored.LoginAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("success must reset attempts and lock, got %d %v", stored.LoginAttempts, stored.LockedUntil)
	}
	if stored.LastLogin == nil || !stored.LastLogin.Equal(env.clock.Now()) {
		t.Fatalf("last login not stamped: %v", stored.LastLogin)
	}
}

func TestLoginCounterContinuesAfterLockExpiry(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "buyer@example.com", "correct-horse", true)

	for i := 0; i < 5; i++ {
		login(t, env, "buyer@example.com", "wrong-password")
	}
	env.clock.Advance(16 * time.Minute)

	out := login(t, env, "buyer@example.com", "wrong-password")
	if out.RemainingAttempts != 0 || out.LockedUntil == nil {
		t.Fatalf("a failure after expiry should relock immediately, got %+v", out)
	}
	if got := env.reload(t, user.ID).LoginAttempts; got != 6 {
		t.Fatalf("expected attempts to continue at 6, got %d", got)
	}
}

func TestLoginIssuesSessionPair(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "buyer@example.com", "correct-horse", true)

	out, err := RunLogin(context.Background(), env.deps, LoginInput{Email: "  Buyer@Example.com ", Password: "correct-horse", RememberMe: true})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if out.Outcome != LoginSucceeded {
		t.Fatalf("expected success, got %v", out.Outcome)
	}
	if out.User.PasswordHash != "" {
		t.Fatal("password hash must not leave the flow")
	}

	claims, err := env.deps.Tokens.Verify(out.Session.AccessToken, token.ExpectPurpose(token.PurposeAccess))
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.Subject != user.ID || claims.Role != "buyer" || claims.SessionID != out.Session.SessionID {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if want := env.clock.Now().Add(token.DefaultRememberMeAccessTTL); !out.Session.AccessExpiresAt.Equal(want) {
		t.Fatalf("remember-me access expiry %v, want %v", out.Session.AccessExpiresAt, want)
	}
}

func TestLoginRequiresVerifiedEmail(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Login.RequireVerifiedEmail = true
	env.seedUser(t, "new@example.com", "correct-horse", false)

	out := login(t, env, "new@example.com", "correct-horse")
	if out.Outcome != LoginVerificationRequired {
		t.Fatalf("expected verification required, got %v", out.Outcome)
	}
	if out.Session.AccessToken != "" {
		t.Fatal("unverified login must not issue tokens")
	}
}

func TestLoginUpgradesLegacyBcryptHash(t *testing.T) {
	env := newTestEnv(t)
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	user, err := env.store.CreateUser(context.Background(), credential.User{
		Email:         "old@example.com",
		PasswordHash:  string(legacy),
		EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if out := login(t, env, "old@example.com", "legacy-secret"); out.Outcome != LoginSucceeded {
		t.Fatalf("expected success, got %v", out.Outcome)
	}
	if hash := env.reload(t, user.ID).PasswordHash; !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("legacy hash not upgraded: %q", hash)
	}
	if out := login(t, env, "old@example.com", "legacy-secret"); out.Outcome != LoginSucceeded {
		t.Fatalf("upgraded hash must still verify, got %v", out.Outcome)
	}
}

func TestLoginConcurrentFailuresNeverUndercount(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "target@example.com", "correct-horse", true)

	const workers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		counted   int
		remaining = map[int]int{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := RunLogin(context.Background(), env.deps, LoginInput{Email: "target@example.com", Password: "wrong-password"})
			if err != nil {
				t.Errorf("login: %v", err)
				return
			}
			if out.Outcome != LoginInvalidCredentials {
				return
			}
			mu.Lock()
			counted++
			remaining[out.RemainingAttempts]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	for left := 1; left <= 4; left++ {
		if remaining[left] != 1 {
			t.Fatalf("%d remaining attempts observed %d times, want exactly once", left, remaining[left])
		}
	}

	stored := env.reload(t, user.ID)
	if stored.LoginAttempts != counted {
		t.Fatalf("stored attempts %d, counted failures %d", stored.LoginAttempts, counted)
	}
	if !stored.IsLocked(env.clock.Now()) {
		t.Fatal("account must be locked after concurrent failures")
	}
}

func TestLoginStoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "buyer@example.com", "correct-horse", true)
	env.mr.Close()

	_, err := RunLogin(context.Background(), env.deps, LoginInput{Email: "buyer@example.com", Password: "correct-horse"})
	if !errors.Is(err, testErrors.Unavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
