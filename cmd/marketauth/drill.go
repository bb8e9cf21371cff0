package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Agossa1/marketauth"
	"github.com/Agossa1/marketauth/store/redisstore"
	"github.com/Agossa1/marketauth/token"
)

const (
	drillEmail         = "lockout-drill@marketauth.local"
	drillPassword      = "drill-correct-password"
	drillWrongPassword = "drill-wrong-password"
)

type drillOptions struct {
	attempts    int
	concurrency int
}

type drillReport struct {
	maxAttempts   int
	invalid       int
	locked        int
	remaining     map[int]int
	lockTriggered uint64
	finalOutcome  marketauth.LoginOutcome
	stats         phaseStats
}

func newLockoutDrillCmd(a *app) *cobra.Command {
	var (
		opts      drillOptions
		redisAddr string
		prefix    string
		fastHash  bool
	)

	cmd := &cobra.Command{
		Use:   "lockout-drill",
		Short: "Hammer one account with concurrent wrong passwords and check the lockout",
		Long: `Register a throwaway account, fire --attempts concurrent logins with a wrong
password and check that the failure counter moved atomically: every
remaining-attempts figure from MAX-1 down to 1 is reported exactly once, the
lock triggers, and the correct password is then refused.

Without --redis-addr an in-process miniredis is used. Against a shared Redis
pick a fresh --prefix for every run, since a locked account from an earlier
run fails the drill.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.attempts <= 0 || opts.concurrency <= 0 {
				return errors.New("attempts and concurrency must be > 0")
			}

			client, cleanup, err := drillRedis(redisAddr, a.stdout)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := a.settings.Auth
			cfg.PasswordReset.Enabled = false
			cfg.EmailVerification.Enabled = false
			cfg.PhoneVerification.Enabled = false
			cfg.Lockout.RequireVerifiedEmail = false
			cfg.Metrics.Enabled = true
			if fastHash {
				cfg.Password.Memory = 8 * 1024
				cfg.Password.Time = 1
				cfg.Password.Parallelism = 1
			}

			engine, err := newDrillEngine(cfg, client, prefix, a.logger)
			if err != nil {
				return err
			}
			defer engine.Close()

			report, err := runLockoutDrill(cmd.Context(), engine, opts)
			if err != nil {
				return err
			}
			printDrillReport(a.stdout, report)
			return report.check()
		},
	}
	cmd.Flags().IntVar(&opts.attempts, "attempts", 40, "wrong-password logins to fire")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 16, "concurrent workers")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "redis address; empty starts miniredis")
	cmd.Flags().StringVar(&prefix, "prefix", "mka-drill", "key prefix for the drill account")
	cmd.Flags().BoolVar(&fastHash, "fast-hash", true, "use cheap Argon2id parameters for the drill")
	return cmd
}

func drillRedis(addr string, out io.Writer) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Fprintf(out, "using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func newDrillEngine(cfg marketauth.Config, client redis.UniversalClient, prefix string, logger *zap.Logger) (*marketauth.Engine, error) {
	key, err := token.GenerateKey()
	if err != nil {
		return nil, err
	}
	return marketauth.New().
		WithConfig(cfg).
		WithCredentialStore(redisstore.New(client, prefix)).
		WithRedis(client).
		WithKeyProvider(token.StaticKey(key)).
		WithLogger(logger).
		Build()
}

func runLockoutDrill(ctx context.Context, engine *marketauth.Engine, opts drillOptions) (drillReport, error) {
	if _, err := engine.Register(ctx, marketauth.RegisterRequest{Email: drillEmail, Password: drillPassword}); err != nil && !errors.Is(err, marketauth.ErrAccountExists) {
		return drillReport{}, fmt.Errorf("register drill account: %w", err)
	}

	var (
		group     errgroup.Group
		mu        sync.Mutex
		failures  int64
		latencies = make([]time.Duration, 0, opts.attempts)
	)
	report := drillReport{
		maxAttempts: engine.Config().Lockout.MaxAttempts,
		remaining:   map[int]int{},
	}

	group.SetLimit(opts.concurrency)
	start := time.Now()
	for i := 0; i < opts.attempts; i++ {
		group.Go(func() error {
			t0 := time.Now()
			res, err := engine.Login(ctx, marketauth.LoginRequest{Email: drillEmail, Password: drillWrongPassword})
			d := time.Since(t0)

			mu.Lock()
			defer mu.Unlock()
			latencies = append(latencies, d)
			switch {
			case err != nil:
				failures++
				return err
			case res.Outcome == marketauth.LoginAccountLocked:
				report.locked++
			case res.Outcome == marketauth.LoginInvalidCredentials:
				report.invalid++
				report.remaining[res.RemainingAttempts]++
			}
			return nil
		})
	}
	firstErr := group.Wait()
	report.stats = computeStats(time.Since(start), latencies, failures)
	if firstErr != nil {
		return report, fmt.Errorf("drill login failed: %w", firstErr)
	}

	final, err := engine.Login(ctx, marketauth.LoginRequest{Email: drillEmail, Password: drillPassword})
	if err != nil {
		return report, fmt.Errorf("final login failed: %w", err)
	}
	report.finalOutcome = final.Outcome
	report.lockTriggered = engine.MetricsSnapshot().Counters[marketauth.MetricAccountLockTriggered]
	return report, nil
}

// check verifies the drill against the lockout rules. Each value from
// max-1 down to the lowest reachable one must appear exactly once.
func (r drillReport) check() error {
	failures := r.invalid
	lowest := max(1, r.maxAttempts-failures)
	for k := r.maxAttempts - 1; k >= lowest; k-- {
		if n := r.remaining[k]; n != 1 {
			return fmt.Errorf("lockout drill failed: %d attempts reported %d remaining, want exactly 1", n, k)
		}
	}
	if failures < r.maxAttempts {
		if r.finalOutcome != marketauth.LoginSucceeded {
			return fmt.Errorf("lockout drill failed: correct password refused before the threshold (%s)", r.finalOutcome)
		}
		return nil
	}
	if r.lockTriggered == 0 {
		return errors.New("lockout drill failed: the lock never triggered")
	}
	if r.finalOutcome != marketauth.LoginAccountLocked {
		return fmt.Errorf("lockout drill failed: correct password after lock returned %s", r.finalOutcome)
	}
	return nil
}

func printDrillReport(out io.Writer, r drillReport) {
	fmt.Fprintln(out, "---- lockout drill ----")
	fmt.Fprintf(out, "max attempts: %d\n", r.maxAttempts)
	fmt.Fprintf(out, "invalid credentials: %d  account locked: %d  lock triggered: %d\n", r.invalid, r.locked, r.lockTriggered)
	fmt.Fprintf(out, "correct password afterwards: %s\n", r.finalOutcome)
	printStats(out, "login", r.stats)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
