// Package login holds the credential shape accepted by the sign-in form and the
// external login operation it delegates to.
package login

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// CodeAccountNotLinked is the error code reported when the email behind a
// federated identity already belongs to an account using another provider.
const CodeAccountNotLinked = "OAuthAccountNotLinked"

// ErrNotConfigured is returned by services that have no backend to talk to.
var ErrNotConfigured = errors.New("login: service not configured")

// Credentials is the submitted sign-in form. It lives for one request only.
type Credentials struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password,omitempty" form:"password" validate:"required_without=Code"`
	Code     string `json:"code,omitempty" form:"code" validate:"omitempty,numeric,min=6,max=8"`
}

// Normalize trims surrounding whitespace from the email and code. The password is left untouched.
// Browsers already strip it from type=email inputs, so a form post carries the same email either way.
func (c Credentials) Normalize() Credentials {
	c.Email = strings.TrimSpace(c.Email)
	c.Code = strings.TrimSpace(c.Code)
	return c
}

// Validate checks the primary shape: a well-formed email and a non-empty password.
func (c Credentials) Validate() error {
	return validateStruct(c)
}

// ValidateSecondFactor checks the two-factor continuation shape, where the
// password is replaced by a numeric code.
func (c Credentials) ValidateSecondFactor() error {
	if strings.TrimSpace(c.Code) == "" {
		return &ValidationError{Fields: []string{"code"}}
	}
	return validateStruct(c)
}

// Outcome is what the external login operation reports back. The fields are
// independent; callers apply Error, then Success, then TwoFactor.
type Outcome struct {
	Error      string `json:"error,omitempty"`
	ErrorCode  string `json:"code,omitempty"`
	Success    string `json:"success,omitempty"`
	TwoFactor  bool   `json:"twoFactor,omitempty"`
	RedirectTo string `json:"redirectTo,omitempty"`
	Token      string `json:"token,omitempty"`
	User       *User  `json:"user,omitempty"`
}

// SignedIn reports whether the outcome carries enough to start a session.
func (o *Outcome) SignedIn() bool {
	return o != nil && o.Error == "" && !o.TwoFactor && strings.TrimSpace(o.Token) != ""
}

// User identifies the account an outcome signed in.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Provider string `json:"provider,omitempty"`
}

// FederatedRequest hands a provider authorization code to the external service.
type FederatedRequest struct {
	Provider    string `json:"provider"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// Service is the external login operation.
type Service interface {
	Login(ctx context.Context, creds Credentials, callbackURL string) (*Outcome, error)
	LoginFederated(ctx context.Context, req FederatedRequest) (*Outcome, error)
}

// ValidationError lists the credential fields that failed the shape check.
type ValidationError struct {
	Fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("login: invalid fields [%s]", strings.Join(e.Fields, ", "))
}

// Has reports whether the named field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// UpstreamError describes a rejection by the authentication service.
type UpstreamError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("login: upstream error %d (%s): %s", e.Status, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("login: upstream error %d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("login: upstream error %d", e.Status)
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

func validateStruct(c Credentials) error {
	err := validatorInstance().Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("login: validate credentials: %w", err)
	}
	out := &ValidationError{}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, fe.Field())
	}
	return out
}
