package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/aptledger/internal/logger"
	"github.com/jmylchreest/aptledger/pkg/fetcher"
	"github.com/jmylchreest/aptledger/pkg/normalize"
)

// ErrLoginFailed is returned when credential submission completes but no
// session cookie appears.
var ErrLoginFailed = errors.New("login failed")

// DefaultSessionCookies names the cookies whose presence marks a logged-in
// session.
var DefaultSessionCookies = []string{"se_token"}

const (
	phoneIDSelector  = "input[name='hp_id']"
	phonePwdSelector = "input[name='hp_pwd']"
	loginIDSelector  = "input[name='login_id']"
	loginPwdSelector = "input[name='login_pwd']"

	// The login page submits through its own loginHtml(kind) handler.
	submitPhoneScript = "loginHtml('H')"
	submitIDScript    = "loginHtml('I')"
)

// Credentials identify the portal account. ID is either a member id or a
// mobile number.
type Credentials struct {
	ID       string
	Password string
}

// LoginOptions tunes the login sequence. Zero values take the defaults.
type LoginOptions struct {
	BaseURL        string
	SessionCookies []string

	PageSettle   time.Duration // after the login page loads
	ToggleSettle time.Duration // after switching the phone login form in
	SubmitSettle time.Duration // after submitting, before waiting for idle
}

// DefaultLoginOptions returns the timings the portal needs.
func DefaultLoginOptions() LoginOptions {
	return LoginOptions{
		BaseURL:        BaseURL,
		SessionCookies: DefaultSessionCookies,
		PageSettle:     2 * time.Second,
		ToggleSettle:   500 * time.Millisecond,
		SubmitSettle:   3 * time.Second,
	}
}

func (o LoginOptions) withDefaults() LoginOptions {
	d := DefaultLoginOptions()
	if o.BaseURL == "" {
		o.BaseURL = d.BaseURL
	}
	if len(o.SessionCookies) == 0 {
		o.SessionCookies = d.SessionCookies
	}
	if o.PageSettle == 0 {
		o.PageSettle = d.PageSettle
	}
	if o.ToggleSettle == 0 {
		o.ToggleSettle = d.ToggleSettle
	}
	if o.SubmitSettle == 0 {
		o.SubmitSettle = d.SubmitSettle
	}
	return o
}

// Login opens the login page in s and submits cred. Mobile-number accounts
// use the phone form, which is hidden by default and must be switched in
// first. Login succeeds only if a cookie named in opts.SessionCookies is
// set afterwards; otherwise it returns ErrLoginFailed.
func Login(ctx context.Context, s fetcher.Session, cred Credentials, opts LoginOptions) error {
	opts = opts.withDefaults()
	phone := normalize.IsPhoneNumber(cred.ID)
	log := logger.With("component", "login")

	log.Info("logging in", "account_type", accountType(phone))
	if err := s.Navigate(ctx, PageLogin.URL(opts.BaseURL)); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := fetcher.Sleep(ctx, opts.PageSettle); err != nil {
		return err
	}

	if phone {
		if err := submitPhone(ctx, s, cred, opts); err != nil {
			return err
		}
	} else {
		if err := submitID(ctx, s, cred); err != nil {
			return err
		}
	}

	if err := fetcher.Sleep(ctx, opts.SubmitSettle); err != nil {
		return err
	}
	if err := s.WaitForNetworkIdle(ctx); err != nil {
		return fmt.Errorf("wait after submit: %w", err)
	}

	cookies, err := s.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("read cookies: %w", err)
	}
	if !HasSessionCookie(cookies, opts.SessionCookies) {
		log.Error("no session cookie after submit", "cookies", len(cookies))
		return ErrLoginFailed
	}

	log.Info("login succeeded")
	return nil
}

func submitPhone(ctx context.Context, s fetcher.Session, cred Credentials, opts LoginOptions) error {
	if err := s.SetVisible(ctx, ".hideHP", true); err != nil {
		return fmt.Errorf("show phone form: %w", err)
	}
	if err := s.SetVisible(ctx, ".hideID", false); err != nil {
		return fmt.Errorf("hide id form: %w", err)
	}
	if err := fetcher.Sleep(ctx, opts.ToggleSettle); err != nil {
		return err
	}
	if err := s.SetFieldValue(ctx, phoneIDSelector, cred.ID); err != nil {
		return fmt.Errorf("set phone id: %w", err)
	}
	if err := s.SetFieldValue(ctx, phonePwdSelector, cred.Password); err != nil {
		return fmt.Errorf("set phone password: %w", err)
	}
	if err := s.Evaluate(ctx, submitPhoneScript, nil); err != nil {
		return fmt.Errorf("submit phone login: %w", err)
	}
	return nil
}

func submitID(ctx context.Context, s fetcher.Session, cred Credentials) error {
	if err := s.FillField(ctx, loginIDSelector, cred.ID); err != nil {
		return fmt.Errorf("fill id: %w", err)
	}
	if err := s.FillField(ctx, loginPwdSelector, cred.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	if err := s.Evaluate(ctx, submitIDScript, nil); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	return nil
}

// HasSessionCookie reports whether cookies holds a non-empty cookie whose
// name exactly matches one of names.
func HasSessionCookie(cookies []fetcher.Cookie, names []string) bool {
	for _, c := range cookies {
		if c.Value == "" {
			continue
		}
		for _, n := range names {
			if c.Name == n {
				return true
			}
		}
	}
	return false
}

func accountType(phone bool) string {
	if phone {
		return "phone"
	}
	return "id"
}
