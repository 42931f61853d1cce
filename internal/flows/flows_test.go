package flows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard/internal/rate"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/lockout"
	"github.com/MrEthical07/sessionguard/session"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// plainVerifier stores hashes as "h:" + secret.
type plainVerifier struct {
	calls atomic.Int32
}

func (v *plainVerifier) Verify(secret, hashed string) bool {
	v.calls.Add(1)
	return hashed == "h:"+secret
}

func (v *plainVerifier) NeedsRehash(hashed string) bool {
	return strings.HasPrefix(hashed, "h:old:")
}

type harness struct {
	clock    *clock
	store    *session.MemoryStore
	tokens   *jwt.Manager
	verifier *plainVerifier
	users    map[string]string
	deps     Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c := &clock{now: time.Now().Truncate(time.Second)}
	tokens, err := jwt.NewManager(jwt.Config{
		AccessSecret:  []byte("access-secret-0123456789abcdef"),
		RefreshSecret: []byte("refresh-secret-0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	h := &harness{
		clock:    c,
		store:    session.NewMemoryStore(session.MemoryOptions{Now: c.Now}),
		tokens:   tokens,
		verifier: &plainVerifier{},
		users:    map[string]string{"alice": "h:Passw0rd!"},
	}
	h.deps = Deps{
		Login: LoginDeps{
			Now:      c.Now,
			Rate:     rate.NewMemory(rate.DefaultConfig()),
			Store:    h.store,
			Lockout:  lockout.MustPolicy(lockout.DefaultTiers()),
			Tokens:   tokens,
			Verifier: h.verifier,
			LookupSecretHash: func(_ context.Context, identity string) (string, bool, error) {
				hash, ok := h.users[identity]
				return hash, ok, nil
			},
			DummyHash: "h:dummy-never-matches-\x00",
		},
		Refresh: RefreshDeps{Now: c.Now, Tokens: tokens, Store: h.store},
		Verify:  VerifyDeps{Now: c.Now, Tokens: tokens},
		Revoke:  RevokeDeps{Store: h.store},
	}
	return h
}

func (h *harness) login(identity, secret string) LoginResult {
	return RunLogin(context.Background(), identity, secret, "client-"+identity, h.deps.Login)
}

func TestLoginSuccessIssuesLivePair(t *testing.T) {
	h := newHarness(t)

	res := h.login("alice", "Passw0rd!")
	if res.Failure != LoginFailureNone {
		t.Fatalf("failure = %v err = %v", res.Failure, res.Err)
	}
	if res.Pair.AccessToken == "" || res.Pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if !res.Pair.AccessExpiresAt.Equal(h.clock.Now().Add(jwt.DefaultAccessTTL)) {
		t.Fatalf("access expiry = %v", res.Pair.AccessExpiresAt)
	}

	live, err := h.store.IsRefreshLive(context.Background(), res.Pair.RefreshToken, "alice")
	if err != nil || !live {
		t.Fatalf("refresh token not live: %v %v", live, err)
	}

	v := RunVerifyAccess(res.Pair.AccessToken, h.deps.Verify)
	if v.Failure != VerifyFailureNone || v.Identity != "alice" {
		t.Fatalf("verify = %+v", v)
	}
}

func TestLoginInvalidInputTouchesNothing(t *testing.T) {
	h := newHarness(t)
	for _, tc := range []struct{ identity, secret string }{{"", "x"}, {"alice", ""}} {
		res := h.login(tc.identity, tc.secret)
		if res.Failure != LoginFailureInvalidInput {
			t.Fatalf("failure = %v", res.Failure)
		}
	}
	if h.verifier.calls.Load() != 0 {
		t.Fatal("verifier must not run for invalid input")
	}
}

func TestLoginLocksAtFifthFailure(t *testing.T) {
	h := newHarness(t)
	h.deps.Login.Rate = nil

	var res LoginResult
	for i := 1; i <= 5; i++ {
		res = h.login("alice", "wrong")
		if res.Failure != LoginFailureInvalidCredentials {
			t.Fatalf("attempt %d: failure = %v", i, res.Failure)
		}
		if res.Attempts != i {
			t.Fatalf("attempt %d: counter = %d", i, res.Attempts)
		}
	}
	if want := h.clock.Now().Add(5 * time.Minute); !res.LockedUntil.Equal(want) {
		t.Fatalf("locked until %v, want %v", res.LockedUntil, want)
	}

	res = h.login("alice", "Passw0rd!")
	if res.Failure != LoginFailureLocked {
		t.Fatalf("correct secret while locked: failure = %v", res.Failure)
	}

	h.clock.Advance(5*time.Minute + time.Second)
	res = h.login("alice", "Passw0rd!")
	if res.Failure != LoginFailureNone {
		t.Fatalf("after lock expiry: failure = %v", res.Failure)
	}
	n, _ := h.store.GetFailedAttempts(context.Background(), "alice")
	if n != 0 {
		t.Fatalf("counter after success = %d", n)
	}
}

func TestLoginUnknownIdentityCountsAndVerifiesDummy(t *testing.T) {
	h := newHarness(t)

	res := h.login("mallory", "whatever")
	if res.Failure != LoginFailureInvalidCredentials || res.Attempts != 1 {
		t.Fatalf("unexpected %+v", res)
	}
	if h.verifier.calls.Load() != 1 {
		t.Fatal("dummy hash must be verified for unknown identities")
	}
}

func TestLoginRateLimitedAfterFiveFailures(t *testing.T) {
	h := newHarness(t)
	h.deps.Login.Lockout = nil

	for i := 0; i < 5; i++ {
		if res := h.login("alice", "wrong"); res.Failure != LoginFailureInvalidCredentials {
			t.Fatalf("attempt %d: failure = %v", i+1, res.Failure)
		}
	}
	res := h.login("alice", "Passw0rd!")
	if res.Failure != LoginFailureRateLimited {
		t.Fatalf("sixth attempt failure = %v", res.Failure)
	}
	if !errors.Is(res.Err, rate.ErrRateLimited) || res.RateResetAt.IsZero() {
		t.Fatalf("rate error = %v reset = %v", res.Err, res.RateResetAt)
	}
	n, _ := h.store.GetFailedAttempts(context.Background(), "alice")
	if n != 5 {
		t.Fatalf("rate limited attempt changed the counter to %d", n)
	}
}

func TestLoginSuccessDoesNotConsumeRateBudget(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 10; i++ {
		if res := h.login("alice", "Passw0rd!"); res.Failure != LoginFailureNone {
			t.Fatalf("login %d: failure = %v", i+1, res.Failure)
		}
	}
}

func TestLoginSuccessRefundsRateUnit(t *testing.T) {
	h := newHarness(t)
	h.deps.Login.Lockout = nil

	for i := 0; i < 4; i++ {
		if res := h.login("alice", "wrong"); res.Failure != LoginFailureInvalidCredentials {
			t.Fatalf("attempt %d: failure = %v", i+1, res.Failure)
		}
	}
	if res := h.login("alice", "Passw0rd!"); res.Failure != LoginFailureNone {
		t.Fatalf("success after four failures: %v", res.Failure)
	}
	if res := h.login("alice", "wrong"); res.Failure != LoginFailureInvalidCredentials {
		t.Fatalf("fifth failure: %v", res.Failure)
	}
	if res := h.login("alice", "wrong"); res.Failure != LoginFailureRateLimited {
		t.Fatalf("sixth failure = %v, want rate limited", res.Failure)
	}
}

// slowVerifier holds every verify until release is closed, so all attempts
// are in flight before any of them resolves.
type slowVerifier struct {
	plainVerifier
	release chan struct{}
}

func (v *slowVerifier) Verify(secret, hashed string) bool {
	<-v.release
	return v.plainVerifier.Verify(secret, hashed)
}

func TestConcurrentWrongLoginsRespectRateWindow(t *testing.T) {
	h := newHarness(t)
	h.deps.Login.Lockout = nil
	v := &slowVerifier{release: make(chan struct{})}
	h.deps.Login.Verifier = v

	const attempts = 20
	results := make(chan LoginFailureKind, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- h.login("alice", "wrong").Failure
		}()
	}

	// Rate-limited attempts return without verifying.
	deadline := time.After(5 * time.Second)
	for limited := 0; limited < attempts-5; {
		select {
		case kind := <-results:
			if kind != LoginFailureRateLimited {
				t.Fatalf("attempt resolved before verify with %v", kind)
			}
			limited++
		case <-deadline:
			t.Fatalf("only %d attempts rate limited while five verifies were pending", limited)
		}
	}
	close(v.release)
	wg.Wait()
	close(results)

	invalid := 0
	for kind := range results {
		if kind != LoginFailureInvalidCredentials {
			t.Fatalf("unexpected %v", kind)
		}
		invalid++
	}
	if invalid != 5 {
		t.Fatalf("invalid credentials = %d, want 5", invalid)
	}
}

func TestLoginLookupErrorPropagates(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("directory down")
	h.deps.Login.LookupSecretHash = func(context.Context, string) (string, bool, error) {
		return "", false, boom
	}
	res := h.login("alice", "Passw0rd!")
	if res.Failure != LoginFailureLookup || !errors.Is(res.Err, boom) {
		t.Fatalf("unexpected %+v", res)
	}
}

func TestLoginReportsRehash(t *testing.T) {
	h := newHarness(t)
	h.users["bob"] = "h:old:x"
	h.deps.Login.Verifier = rehashVerifier{}
	res := h.login("bob", "anything")
	if res.Failure != LoginFailureNone || !res.NeedsRehash {
		t.Fatalf("unexpected %+v", res)
	}
}

type rehashVerifier struct{}

func (rehashVerifier) Verify(string, string) bool { return true }
func (rehashVerifier) NeedsRehash(hashed string) bool { return strings.HasPrefix(hashed, "h:old:") }

func TestRefreshRotates(t *testing.T) {
	h := newHarness(t)
	first := h.login("alice", "Passw0rd!")

	res := RunRefresh(context.Background(), first.Pair.RefreshToken, h.deps.Refresh)
	if res.Failure != RefreshFailureNone || res.Identity != "alice" {
		t.Fatalf("refresh: %+v", res)
	}
	if res.Pair.RefreshToken == first.Pair.RefreshToken {
		t.Fatal("rotation must produce a new refresh token")
	}

	replay := RunRefresh(context.Background(), first.Pair.RefreshToken, h.deps.Refresh)
	if replay.Failure != RefreshFailureRevoked {
		t.Fatalf("replay failure = %v", replay.Failure)
	}

	if again := RunRefresh(context.Background(), res.Pair.RefreshToken, h.deps.Refresh); again.Failure != RefreshFailureNone {
		t.Fatalf("new token refresh failure = %v", again.Failure)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	h := newHarness(t)
	first := h.login("alice", "Passw0rd!")

	res := RunRefresh(context.Background(), first.Pair.AccessToken, h.deps.Refresh)
	if res.Failure != RefreshFailureToken || !errors.Is(res.Err, jwt.ErrSignatureInvalid) {
		t.Fatalf("unexpected %+v", res)
	}
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	h := newHarness(t)
	first := h.login("alice", "Passw0rd!")

	const n = 16
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if RunRefresh(context.Background(), first.Pair.RefreshToken, h.deps.Refresh).Failure == RefreshFailureNone {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("winners = %d, want 1", wins.Load())
	}
}

// checkThenDelete hides ConsumeRefresh to exercise the fallback path.
type checkThenDelete struct {
	RefreshStore
}

func TestRefreshFallbackWithoutConsumer(t *testing.T) {
	h := newHarness(t)
	first := h.login("alice", "Passw0rd!")
	h.deps.Refresh.Store = checkThenDelete{h.store}

	if res := RunRefresh(context.Background(), first.Pair.RefreshToken, h.deps.Refresh); res.Failure != RefreshFailureNone {
		t.Fatalf("refresh: %+v", res)
	}
	if res := RunRefresh(context.Background(), first.Pair.RefreshToken, h.deps.Refresh); res.Failure != RefreshFailureRevoked {
		t.Fatalf("replay: %+v", res)
	}
}

func TestVerifyAccessFailureKinds(t *testing.T) {
	h := newHarness(t)
	pair := h.login("alice", "Passw0rd!").Pair

	cases := []struct {
		name  string
		token string
		want  VerifyFailureKind
	}{
		{"empty", "", VerifyFailureEmpty},
		{"refresh", pair.RefreshToken, VerifyFailureSignature},
		{"garbage", "not.a.token", VerifyFailureSignature},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RunVerifyAccess(tc.token, h.deps.Verify).Failure; got != tc.want {
				t.Fatalf("failure = %v, want %v", got, tc.want)
			}
		})
	}

	h.clock.Advance(jwt.DefaultAccessTTL)
	if got := RunVerifyAccess(pair.AccessToken, h.deps.Verify).Failure; got != VerifyFailureExpired {
		t.Fatalf("at expiry failure = %v", got)
	}
}

func TestRevokeAll(t *testing.T) {
	h := newHarness(t)
	a := h.login("alice", "Passw0rd!").Pair
	b := h.login("alice", "Passw0rd!").Pair

	if err := RunRevokeAll(context.Background(), "alice", h.deps.Revoke); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	for _, tok := range []string{a.RefreshToken, b.RefreshToken} {
		if res := RunRefresh(context.Background(), tok, h.deps.Refresh); res.Failure != RefreshFailureRevoked {
			t.Fatalf("refresh after revoke-all: %v", res.Failure)
		}
	}
	if err := RunRevoke(context.Background(), a.RefreshToken, h.deps.Revoke); err != nil {
		t.Fatalf("revoke of unknown token must be nil, got %v", err)
	}
}
