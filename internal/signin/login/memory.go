package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/xlzd/gotp"
	"golang.org/x/crypto/bcrypt"
)

const (
	// ProviderPassword marks accounts created with an email and password.
	ProviderPassword = "credentials"

	totpPeriod        = 30
	totpDigits        = 6
	challengeLifetime = 5 * time.Minute
)

// Messages reported by MemoryService. They mirror what the authentication API returns.
const (
	MessageInvalidCredentials = "Invalid credentials!"
	MessageInvalidCode        = "Invalid code!"
	MessageCodeExpired        = "Code expired!"
	MessageSignedIn           = "Signed in!"
)

// MemoryService is an in-process authentication backend for local development.
// Passwords are bcrypt hashed, optional TOTP secrets are checked with gotp and
// successful sign-ins receive an HS256 token from TokenService.
//
// Federated sign-in treats the authorization code as the verified email of the
// provider account, since no provider is contacted.
type MemoryService struct {
	tokens *TokenService
	now    func() time.Time

	mu         sync.Mutex
	users      map[string]*memoryUser
	challenges map[string]time.Time
}

type memoryUser struct {
	User
	passwordHash []byte
	totpSecret   string
}

// MemoryOption customises MemoryService.
type MemoryOption func(*MemoryService)

// WithClock overrides the time source used for TOTP and challenge expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryService constructs an empty MemoryService issuing tokens with tokens.
func NewMemoryService(tokens *TokenService, opts ...MemoryOption) (*MemoryService, error) {
	if tokens == nil {
		return nil, fmt.Errorf("%w: token service is required", ErrNotConfigured)
	}
	s := &MemoryService{
		tokens:     tokens,
		now:        time.Now,
		users:      make(map[string]*memoryUser),
		challenges: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AddUser registers a password account. A non-empty totpSecret (base32) turns on two-factor.
func (s *MemoryService) AddUser(email, password, totpSecret string) (User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return User{}, errors.New("login: email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("login: hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return User{}, fmt.Errorf("login: user %s already exists", email)
	}
	u := &memoryUser{
		User:         User{ID: ulid.Make().String(), Email: email, Provider: ProviderPassword},
		passwordHash: hash,
		totpSecret:   strings.TrimSpace(totpSecret),
	}
	s.users[email] = u
	return u.User, nil
}

// Login checks the password, then the TOTP code when the account has one.
// A code-only submission is accepted while a recent password check for the same
// email is waiting for its second factor.
func (s *MemoryService) Login(ctx context.Context, creds Credentials, callbackURL string) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email := normalizeEmail(creds.Email)
	code := strings.TrimSpace(creds.Code)

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[email]
	if !ok || user.Provider != ProviderPassword {
		return &Outcome{Error: MessageInvalidCredentials}, nil
	}

	if creds.Password == "" {
		issued, pending := s.challenges[email]
		if !pending || code == "" {
			return &Outcome{Error: MessageInvalidCredentials}, nil
		}
		if s.now().Sub(issued) > challengeLifetime {
			delete(s.challenges, email)
			return &Outcome{Error: MessageCodeExpired}, nil
		}
	} else if bcrypt.CompareHashAndPassword(user.passwordHash, []byte(creds.Password)) != nil {
		return &Outcome{Error: MessageInvalidCredentials}, nil
	}

	if user.totpSecret != "" {
		if code == "" {
			s.challenges[email] = s.now()
			return &Outcome{TwoFactor: true}, nil
		}
		if !s.verifyTOTP(user.totpSecret, code) {
			return &Outcome{Error: MessageInvalidCode}, nil
		}
		delete(s.challenges, email)
	}

	return s.signIn(user.User, callbackURL)
}

// LoginFederated signs in or creates the account for the provider identity in req.Code.
// An email already registered with another provider is reported as CodeAccountNotLinked.
func (s *MemoryService) LoginFederated(ctx context.Context, req FederatedRequest) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	email := normalizeEmail(req.Code)
	if provider == "" || email == "" {
		return &Outcome{Error: MessageInvalidCredentials}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[email]
	if ok && user.Provider != provider {
		return &Outcome{
			Error:     "Email already in use with different provider!",
			ErrorCode: CodeAccountNotLinked,
		}, nil
	}
	if !ok {
		user = &memoryUser{User: User{ID: ulid.Make().String(), Email: email, Provider: provider}}
		s.users[email] = user
	}
	return s.signIn(user.User, req.CallbackURL)
}

func (s *MemoryService) signIn(user User, callbackURL string) (*Outcome, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	redirect := callbackURL
	if redirect == "" {
		redirect = "/"
	}
	copied := user
	return &Outcome{
		Success:    MessageSignedIn,
		Token:      token,
		RedirectTo: redirect,
		User:       &copied,
	}, nil
}

// verifyTOTP accepts the current step and one step either side.
func (s *MemoryService) verifyTOTP(secret, code string) bool {
	totp := gotp.NewTOTP(secret, totpDigits, totpPeriod, nil)
	t := s.now()
	for _, skew := range []time.Duration{0, -totpPeriod * time.Second, totpPeriod * time.Second} {
		if totp.Verify(code, t.Add(skew).Unix()) {
			return true
		}
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
