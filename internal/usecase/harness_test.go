package usecase

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	red "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/core/port"
	"github.com/arklim/petclub-iam/internal/infra/security"
	"github.com/arklim/petclub-iam/internal/repository/memory"
	redisrepo "github.com/arklim/petclub-iam/internal/repository/redis"
	"github.com/arklim/petclub-iam/internal/repository/session"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return testKey
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []port.MailMessage
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg port.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []port.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]port.MailMessage(nil), m.sent...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (p *recordingPublisher) PublishAuthEvent(_ context.Context, event domain.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []domain.AuthEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.AuthEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type countingMetrics struct {
	mu          sync.Mutex
	signIns     map[string]int
	refreshes   map[string]int
	revocations map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{signIns: map[string]int{}, refreshes: map[string]int{}, revocations: map[string]int{}}
}

func (m *countingMetrics) ObserveSignIn(outcome string) {
	m.mu.Lock()
	m.signIns[outcome]++
	m.mu.Unlock()
}

func (m *countingMetrics) ObserveRefresh(outcome string) {
	m.mu.Lock()
	m.refreshes[outcome]++
	m.mu.Unlock()
}

func (m *countingMetrics) ObserveRevocation(reason string) {
	m.mu.Lock()
	m.revocations[reason]++
	m.mu.Unlock()
}

// failingKV fails every call, standing in for an unreachable Redis.
type failingKV struct{}

var errStoreDown = errors.New("store unavailable")

func (failingKV) Get(context.Context, string) (string, bool, error) { return "", false, errStoreDown }
func (failingKV) Set(context.Context, string, string, time.Duration) error {
	return errStoreDown
}
func (failingKV) Delete(context.Context, string) error         { return errStoreDown }
func (failingKV) Exists(context.Context, string) (bool, error) { return false, errStoreDown }

type harness struct {
	users    *memory.UserRepository
	sessions *session.Store
	issuer   *security.TokenIssuer
	hasher   *security.PasswordHasher
	mailer   *recordingMailer
	events   *recordingPublisher
	metrics  *countingMetrics
	auth     *AuthService
	reset    *PasswordResetService
	gate     *AuthorizationGate
	mini     *miniredis.Miniredis
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	kv     port.KeyValueStore
	policy domain.SignUpPolicy
}

func withKV(kv port.KeyValueStore) harnessOption {
	return func(c *harnessConfig) { c.kv = kv }
}

func withSignUpPolicy(p domain.SignUpPolicy) harnessOption {
	return func(c *harnessConfig) { c.policy = p }
}

// newHarness wires the services over in-memory users and a miniredis-backed session store.
func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		users:   memory.NewUserRepository(),
		mailer:  &recordingMailer{},
		events:  &recordingPublisher{},
		metrics: newCountingMetrics(),
	}

	cfg := harnessConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.kv == nil {
		h.mini = miniredis.RunT(t)
		client := red.NewClient(&red.Options{Addr: h.mini.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		cfg.kv = redisrepo.NewKeyValueStore(client)
	}

	h.issuer = security.NewTokenIssuer(
		security.NewJWTManager(security.NewStaticKeyProvider("test", signingKey(t))),
		security.TokenIssuerConfig{
			Issuer:     "petclub-iam",
			Audience:   "petclub-api",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 24 * time.Hour,
		},
	)
	h.sessions = session.NewStore(cfg.kv, session.Config{SessionTTL: 24 * time.Hour})

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)
	h.hasher = hasher

	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{MinLength: 8, MaxLength: 128})

	h.auth = NewAuthService(AuthDeps{
		Users:    h.users,
		Sessions: h.sessions,
		Tokens:   h.issuer,
		Hasher:   hasher,
		Policy:   policy,
		Mailer:   h.mailer,
		Events:   h.events,
		Metrics:  h.metrics,
		Logger:   zaptest.NewLogger(t),
	}, cfg.policy)
	h.reset = NewPasswordResetService(h.users, hasher, policy, h.mailer, h.events, PasswordResetConfig{
		TTL:         5 * time.Minute,
		LinkBaseURL: "https://petclub.test/recovery",
	})
	h.gate = NewAuthorizationGate(h.issuer, h.sessions)
	return h
}

// seedUser stores a user with the given role and password directly in the repository.
func (h *harness) seedUser(t *testing.T, email, password string, role domain.Role) domain.User {
	t.Helper()
	hash, err := h.hasher.Hash(password)
	require.NoError(t, err)
	user, err := domain.NewUser(uuid.NewString(), "Seeded", email, hash, role)
	require.NoError(t, err)
	require.NoError(t, h.users.Create(context.Background(), user))
	return user
}

func (h *harness) actor(t *testing.T, user domain.User) *domain.ActiveUser {
	t.Helper()
	return &domain.ActiveUser{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}
}
