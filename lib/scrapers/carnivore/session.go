package carnivore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrLoginFieldNotFound = fmt.Errorf("could not locate an identity input on the login page")
	ErrLoginTimeout       = fmt.Errorf("no authentication signal before the login window closed")
)

// Credential is opaque to the scraper beyond being submitted to form
// fields. It is never logged in full.
type Credential struct {
	Identity string
	Secret   string
}

// Redacted echoes just enough of the identity for an operator to tell
// accounts apart: the first few characters plus the domain suffix.
func (c Credential) Redacted() string {
	local := c.Identity
	domain := ""
	if at := strings.LastIndex(c.Identity, "@"); at >= 0 {
		local = c.Identity[:at]
		domain = c.Identity[at+1:]
	}
	if len(local) > 4 {
		local = local[:4]
	}
	if domain != "" {
		return fmt.Sprintf("%s***%s", local, domain)
	}
	return local + "***"
}

type SessionState int

const (
	SessionUnauthenticated SessionState = iota
	SessionAuthenticating
	SessionAuthenticated
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionUnauthenticated:
		return "unauthenticated"
	case SessionAuthenticating:
		return "authenticating"
	case SessionAuthenticated:
		return "authenticated"
	case SessionFailed:
		return "failed"
	}
	return "unknown"
}

// AuthSignal names which of the confirmation signals ended the login
// poll. The target is a single page application, so a navigation event
// after submit is not guaranteed and any one signal is enough.
type AuthSignal string

const (
	SignalNone        AuthSignal = ""
	SignalAlreadyIn   AuthSignal = "already-authenticated"
	SignalLocation    AuthSignal = "location"
	SignalAuthCookie  AuthSignal = "cookie"
	SignalPageContent AuthSignal = "content"
)

// Session is created once per run and owned by Login; callers only read
// it. Transitions are one-directional: it ends Authenticated or Failed.
type Session struct {
	State   SessionState
	Signal  AuthSignal
	Elapsed time.Duration
}

// OnLoginSurface reports whether the location still matches the login
// surface. The marker is the login url's path so that SPA rewrites of
// query or fragment do not count as leaving it.
func OnLoginSurface(current *url.URL, login *url.URL) bool {
	if current == nil {
		return false
	}
	marker := strings.ToLower(strings.Trim(login.Path, "/"))
	if marker == "" {
		marker = "login"
	}
	return strings.Contains(strings.ToLower(current.String()), marker)
}

var authCookieKeywords = []string{"token", "auth", "session", "jwt", "access"}

// AuthCookieName returns the first stored cookie whose name matches the
// session keyword set, if any.
func AuthCookieName(cookies []*http.Cookie) (string, bool) {
	for _, cookie := range cookies {
		name := strings.ToLower(cookie.Name)
		for _, keyword := range authCookieKeywords {
			if strings.Contains(name, keyword) {
				return cookie.Name, true
			}
		}
	}
	return "", false
}

var authContentKeywords = []string{"dashboard", "portfolio", "sector", "logout", "sign out"}

// HasAuthenticatedContent is the last-resort signal: rendered body text
// that only an authenticated page would carry.
func HasAuthenticatedContent(body string) bool {
	body = strings.ToLower(body)
	for _, keyword := range authContentKeywords {
		if strings.Contains(body, keyword) {
			return true
		}
	}
	return false
}

var nonIdentityInputTypes = map[string]bool{
	"password": true,
	"submit":   true,
	"button":   true,
	"checkbox": true,
	"hidden":   true,
	"radio":    true,
	"file":     true,
	"image":    true,
}

func inputType(sel *goquery.Selection) string {
	return strings.ToLower(strings.TrimSpace(sel.AttrOr("type", "text")))
}

// findIdentityInput picks the first non-sensitive, non-disabled text
// input in document order. Selection is structural rather than
// name-based because label text on the target site is unreliable.
func findIdentityInput(doc *goquery.Document) *goquery.Selection {
	var identity *goquery.Selection
	doc.Find("input").EachWithBreak(func(_ int, input *goquery.Selection) bool {
		if nonIdentityInputTypes[inputType(input)] {
			return true
		}
		if _, disabled := input.Attr("disabled"); disabled {
			return true
		}
		identity = input
		return false
	})
	return identity
}

// findSecretInput prefers a password-typed input anywhere on the page.
// When the SPA renders the secret field without the password type, it
// falls back to tab order: the input immediately following the identity
// field in document order.
func findSecretInput(doc *goquery.Document, identity *goquery.Selection) *goquery.Selection {
	var secret *goquery.Selection
	doc.Find("input").EachWithBreak(func(_ int, input *goquery.Selection) bool {
		if inputType(input) == "password" {
			secret = input
			return false
		}
		return true
	})
	if secret != nil {
		return secret
	}

	identityNode := identity.Nodes[0]
	takeNext := false
	doc.Find("input").EachWithBreak(func(_ int, input *goquery.Selection) bool {
		if takeNext {
			secret = input
			return false
		}
		if input.Nodes[0] == identityNode {
			takeNext = true
		}
		return true
	})
	return secret
}

var submitButtonLabels = []string{"login", "log in", "sign in"}

// findSubmitControl applies the submit cascade: a submit-typed control
// first, then any button whose visible text matches the login label
// set. A nil result means plain form submission (the http equivalent of
// pressing the activate key in the focused field).
func findSubmitControl(scope *goquery.Selection) *goquery.Selection {
	submit := scope.Find("button[type=submit], input[type=submit]").First()
	if len(submit.Nodes) > 0 {
		return submit
	}

	var labeled *goquery.Selection
	scope.Find("button").EachWithBreak(func(_ int, button *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(button.Text()))
		for _, label := range submitButtonLabels {
			if text == label {
				labeled = button
				return false
			}
		}
		return true
	})
	return labeled
}

// buildLoginForm assembles the credential submission from the form
// enclosing the identity field, preserving hidden inputs (CSRF tokens
// and the like) untouched.
func buildLoginForm(page Page, identity, secret *goquery.Selection) (action string, fields map[string]string) {
	fields = map[string]string{}

	form := identity.Closest("form")
	scope := form
	if len(form.Nodes) == 0 {
		scope = page.Doc.Selection
	}

	scope.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		fields[name] = input.AttrOr("value", "")
	})

	identityName := identity.AttrOr("name", "username")
	fields[identityName] = ""
	secretName := "password"
	if secret != nil {
		secretName = secret.AttrOr("name", "password")
	}
	fields[secretName] = ""

	action = page.URL.String()
	if len(form.Nodes) > 0 {
		if raw, ok := form.Attr("action"); ok && raw != "" {
			if resolved, err := page.URL.Parse(raw); err == nil {
				action = resolved.String()
			}
		}
	}
	return action, fields
}

// Login establishes the authenticated session. It is fatal to the run
// when it fails; there is no retry at this layer.
func (c *Client) Login(ctx context.Context, loginUrl string, cred Credential) (Session, error) {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	login, err := url.Parse(loginUrl)
	if err != nil {
		return Session{State: SessionFailed}, err
	}

	start := time.Now()
	slog.InfoContext(ctx, "logging in", "account", cred.Redacted())

	page, err := c.LoadPage(ctx, loginUrl)
	if err != nil {
		span.SetStatus(codes.Error, "failed to load login page")
		return Session{State: SessionFailed, Elapsed: time.Since(start)}, err
	}

	if !OnLoginSurface(page.URL, login) {
		slog.InfoContext(ctx, "already logged in", "location", page.URL)
		return Session{
			State:   SessionAuthenticated,
			Signal:  SignalAlreadyIn,
			Elapsed: time.Since(start),
		}, nil
	}

	identity := findIdentityInput(page.Doc)
	if identity == nil {
		span.SetStatus(codes.Error, ErrLoginFieldNotFound.Error())
		c.DumpPage("no_email_field", page)
		return Session{State: SessionFailed, Elapsed: time.Since(start)}, ErrLoginFieldNotFound
	}
	secret := findSecretInput(page.Doc, identity)
	if secret == nil {
		slog.WarnContext(ctx, "no password-typed input, relying on tab order fallback")
	}

	action, fields := buildLoginForm(page, identity, secret)
	identityName := identity.AttrOr("name", "username")
	secretName := "password"
	if secret != nil {
		secretName = secret.AttrOr("name", "password")
	}
	fields[identityName] = cred.Identity
	fields[secretName] = cred.Secret

	if control := findSubmitControl(page.Doc.Selection); control != nil {
		if name, ok := control.Attr("name"); ok && name != "" {
			fields[name] = control.AttrOr("value", "")
		}
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(action)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit credentials")
		return Session{State: SessionFailed, Elapsed: time.Since(start)}, err
	}
	location := res.RawResponse.Request.URL

	session := Session{State: SessionAuthenticating}
	deadline := start.Add(c.loginWindow)

	lastPage := Page{URL: location}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.String())); err == nil {
		lastPage.Doc = doc
	}

	for {
		if !OnLoginSurface(location, login) {
			session.Signal = SignalLocation
			break
		}
		if name, ok := AuthCookieName(c.Http.GetClient().Jar.Cookies(c.BaseUrl)); ok {
			slog.DebugContext(ctx, "session cookie present", "cookie", name)
			session.Signal = SignalAuthCookie
			break
		}

		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return Session{State: SessionFailed, Elapsed: time.Since(start)}, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		lastPage, err = c.LoadPage(ctx, loginUrl)
		if err != nil {
			slog.WarnContext(ctx, "login poll reload failed", "err", err)
			continue
		}
		location = lastPage.URL
	}

	// last resort once polling is exhausted: an authenticated page may
	// never leave the login url nor surface a recognizable cookie
	if session.Signal == SignalNone && HasAuthenticatedContent(lastPage.VisibleText()) {
		session.Signal = SignalPageContent
	}

	session.Elapsed = time.Since(start)
	if session.Signal == SignalNone {
		span.SetStatus(codes.Error, ErrLoginTimeout.Error())
		c.DumpPage("login_failed", lastPage)
		return Session{State: SessionFailed, Elapsed: session.Elapsed}, ErrLoginTimeout
	}

	session.State = SessionAuthenticated
	span.SetAttributes(attribute.String("signal", string(session.Signal)))
	slog.InfoContext(
		ctx, "login successful",
		"signal", session.Signal,
		"elapsed", session.Elapsed.Round(100*time.Millisecond),
	)
	return session, nil
}
