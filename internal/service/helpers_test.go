package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"describly/internal/entity"
	"describly/internal/repository"
	"describly/internal/testutil"
	"describly/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const strongPassword = "Str0ng!Pass"

var testArgon2Params = utils.Argon2Params{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentEmail struct {
	recipient   string
	templateKey string
	data        map[string]any
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (r *recordingSender) SendTemplatedEmail(_ context.Context, recipient string, templateKey string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentEmail{recipient: recipient, templateKey: templateKey, data: data})
	return r.err
}

func (r *recordingSender) all() []sentEmail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentEmail(nil), r.sent...)
}

func (r *recordingSender) last(t *testing.T) sentEmail {
	t.Helper()
	sent := r.all()
	if len(sent) == 0 {
		t.Fatal("expected an email to be sent")
	}
	return sent[len(sent)-1]
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordSecurityEvent(action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[action]++
}

func (r *countingRecorder) count(action string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[action]
}

type harness struct {
	svc     *AuthService
	db      *gorm.DB
	clock   *fakeClock
	emails  *recordingSender
	jwt     *utils.JWTManager
	events  *countingRecorder
	users   repository.UserRepository
	codeSeq []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	clock := newFakeClock()
	emails := &recordingSender{}
	events := &countingRecorder{}
	manager := &utils.JWTManager{
		AccessSecret:    []byte("test-jwt-secret-0123456789abcdef"),
		RefreshSecret:   []byte("test-secret-key-0123456789abcdef"),
		Algorithm:       "HS256",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Now:             clock.Now,
	}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	users := repository.NewUserRepository(db)
	svc := NewAuthService(AuthDependencies{
		Users:        users,
		Tokens:       repository.NewUserTokenRepository(db),
		Codes:        repository.NewVerificationCodeRepository(db),
		MFASecrets:   repository.NewMFASecretRepository(db),
		SecurityLogs: repository.NewSecurityLogRepository(db),
		Transactor:   repository.NewTransactor(db),
		EmailSender:  emails,
		PasswordHash: Argon2PasswordHasher{Params: testArgon2Params},
		TokenIssuer:  JWTTokenIssuer{Manager: manager},
		MFATokens:    MFATokenIssuerJWT{Secret: []byte("test-mfa-secret"), Now: clock.Now},
		MFAProvider:  NewTOTPProvider("Describly"),
		Metrics:      events,
		Logger:       logger,
		Clock:        clock,
		CodePepper:   "test-pepper",
		Config: AuthConfig{
			AppName:      "Describly",
			FrontendHost: "https://app.describly.test",
		},
	})
	h := &harness{svc: svc, db: db, clock: clock, emails: emails, jwt: manager, events: events, users: users}
	return h
}

// fixCodes makes the ledger hand out the given codes in order, then "12345".
func (h *harness) fixCodes(codes ...string) {
	h.codeSeq = codes
	h.svc.ledger.generate = func(int) (string, error) {
		if len(h.codeSeq) == 0 {
			return "12345", nil
		}
		next := h.codeSeq[0]
		h.codeSeq = h.codeSeq[1:]
		return next, nil
	}
}

func (h *harness) register(t *testing.T, email string) *entity.User {
	t.Helper()
	user, err := h.svc.Register(context.Background(), RegisterInput{
		FullName:        "Alice Example",
		Email:           email,
		Password:        strongPassword,
		ConfirmPassword: strongPassword,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return user
}

func (h *harness) registerActive(t *testing.T, email string) *entity.User {
	t.Helper()
	h.register(t, email)
	code := h.emails.last(t).data["verification_code"].(string)
	user, err := h.svc.Activate(context.Background(), ActivateInput{Email: email, Code: code})
	if err != nil {
		t.Fatalf("activate %s: %v", email, err)
	}
	return user
}

func (h *harness) login(t *testing.T, identifier string, password string) *TokenPair {
	t.Helper()
	result, err := h.svc.Login(context.Background(), LoginInput{Identifier: identifier, Password: password})
	if err != nil {
		t.Fatalf("login %s: %v", identifier, err)
	}
	if result.Tokens == nil {
		t.Fatalf("expected tokens for %s, got challenge", identifier)
	}
	return result.Tokens
}

func (h *harness) countUsers(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := h.db.Model(&entity.User{}).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}
