// Command authflow-loadtest drives complete login workflows through parallel
// controllers and reports throughput and latency percentiles. With no redis
// address it runs against miniredis, so it needs no external infrastructure.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	authflow "github.com/MrEthical07/authflow"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		workflows   = flag.Int("workflows", 10000, "number of login workflows to complete")
		concurrency = flag.Int("concurrency", 64, "number of concurrent controllers")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "awf", "history key prefix")
		withHistory = flag.Bool("with-history", true, "persist finished workflows to redis")
	)
	flag.Parse()

	if *workflows <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "workflows and concurrency must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	stats, counters := runLoginPhase(*workflows, *concurrency, client, *prefix, *withHistory)

	fmt.Println("---- results ----")
	printStats("login workflow", stats)
	fmt.Printf("counters: started=%d completed=%d transitions=%d executions=%d\n",
		counters[authflow.MetricWorkflowStarted],
		counters[authflow.MetricWorkflowCompleted],
		counters[authflow.MetricTransitionApplied],
		counters[authflow.MetricStepSucceeded],
	)
}

func runLoginPhase(workflows, concurrency int, client redis.UniversalClient, prefix string, withHistory bool) (phaseStats, map[authflow.MetricID]uint64) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, workflows)
		mu        sync.Mutex
	)
	counters := make(map[authflow.MetricID]uint64)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			controller, err := newController(client, prefix, withHistory)
			if err != nil {
				fmt.Fprintf(os.Stderr, "build controller: %v\n", err)
				atomic.AddInt64(&failures, 1)
				return
			}
			defer controller.Close()

			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= workflows {
					break
				}

				t0 := time.Now()
				err := completeLogin(controller, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}

			snap := controller.MetricsSnapshot()
			mu.Lock()
			for id, v := range snap.Counters {
				counters[id] += v
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures), counters
}

func newController(client redis.UniversalClient, prefix string, withHistory bool) (*authflow.Controller, error) {
	cfg := authflow.Config{
		Workflow: authflow.WorkflowConfig{AllowSkip: true, MaxRetries: 3},
		Analytics: authflow.AnalyticsConfig{
			Enabled:       true,
			BufferSize:    256,
			DropIfFull:    true,
			MaxLogEntries: 64,
		},
		Metrics: authflow.MetricsConfig{Enabled: true, EnableLatencyHistograms: true},
		History: authflow.HistoryConfig{
			Enabled:     withHistory,
			RedisPrefix: prefix,
			Retention:   1000,
		},
	}

	b := authflow.New().WithConfig(cfg).WithAuthOperations(instantBackend{})
	if withHistory {
		b = b.WithRedis(client)
	}
	return b.Build()
}

// completeLogin runs one credential + skip + skip + finish sequence and waits
// for the asynchronous credential execution to resolve.
func completeLogin(controller *authflow.Controller, seq int) error {
	ctx := context.Background()

	if _, err := controller.StartWorkflow(ctx, authflow.WorkflowLogin, authflow.WorkflowConfig{}); err != nil {
		return err
	}
	if _, err := controller.Dispatch(ctx, authflow.EventSubmitData, authflow.Payload{
		"email":    fmt.Sprintf("user-%d@example.com", seq),
		"password": "pw",
	}); err != nil {
		return err
	}

	deadline := time.Now().Add(5 * time.Second)
	for controller.Snapshot().CurrentStep == "credentials" {
		if time.Now().After(deadline) {
			return errors.New("credential step did not resolve")
		}
		time.Sleep(100 * time.Microsecond)
	}

	if _, err := controller.SkipStep(ctx); err != nil {
		return err
	}
	if _, err := controller.SkipStep(ctx); err != nil {
		return err
	}
	snap, err := controller.NextStep(ctx)
	if err != nil {
		return err
	}
	if snap.CurrentStep != authflow.StepCompleted {
		return fmt.Errorf("workflow ended on %s", snap.CurrentStep)
	}

	_, err = controller.Reset(ctx)
	return err
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

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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

// instantBackend resolves every operation immediately.
type instantBackend struct{}

func (instantBackend) SubmitCredentials(_ context.Context, email, _ string) (*authflow.UserResult, error) {
	return &authflow.UserResult{UserID: "u-load", Email: email, AccessToken: "token"}, nil
}

func (instantBackend) VerifyMFA(context.Context, string) (bool, error) { return true, nil }

func (instantBackend) AuthenticateBiometric(context.Context) (bool, error) { return true, nil }

func (instantBackend) SubmitSecurityConfig(context.Context, map[string]any) (bool, error) {
	return true, nil
}

func (instantBackend) SocialLogin(_ context.Context, provider string) (*authflow.UserResult, error) {
	return &authflow.UserResult{UserID: "u-load", Email: provider + "@example.com"}, nil
}

func (instantBackend) SubmitRegistration(context.Context, map[string]any) (*authflow.UserResult, error) {
	return &authflow.UserResult{UserID: "u-load", Email: "new@example.com"}, nil
}

func (instantBackend) RequestAccountRecovery(context.Context, string) (bool, error) {
	return true, nil
}

func (instantBackend) VerifyEmail(context.Context, string) (bool, error) { return true, nil }

func (instantBackend) ChangePassword(context.Context, string, string) (bool, error) {
	return true, nil
}
