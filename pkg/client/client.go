package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/tendant/simple-auth/pkg/authapi"
	"github.com/tendant/simple-auth/pkg/authinfo"
	"github.com/tendant/simple-auth/pkg/login"
)

// DefaultMaxTimerDelay clamps a single expiration timer; longer waits
// re-arm recursively.
const DefaultMaxTimerDelay = 24 * time.Hour

// Error kinds.
const (
	KindLoginFailure = "loginFailure"
	KindProtocol     = "protocol"
	KindNetwork      = "network"
)

// Error is the normalized error value: login failures, protocol errors and
// network faults all collapse into this one discriminated shape.
type Error struct {
	Kind          string
	ErrorID       string
	ErrorText     string
	FailureCode   int
	FailureReason string
}

func (e *Error) Error() string {
	if e.ErrorText != "" {
		return e.ErrorText
	}
	if e.FailureReason != "" {
		return e.FailureReason
	}
	return e.Kind
}

// State is the mirrored authentication state.
type State struct {
	Info        authinfo.AuthenticationInfo
	Token       string
	RememberMe  bool
	Refreshable bool
	Schemes     []login.SchemeInfo
	LastError   *Error
}

// Subscriber observes state transitions.
type Subscriber func(State)

// Client mirrors the server-side credential state machine. All transitions
// happen on operation completion or timer firing; pending timers are
// cancelled before any protocol call, and a stale operation can never
// overwrite the result of a later one.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	storage       Storage
	maxTimerDelay time.Duration
	now           func() time.Time

	mu          sync.Mutex
	state       State
	subscribers map[int]Subscriber
	nextSub     int
	generation  uint64
	timers      []*time.Timer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for protocol calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithStorage enables snapshot persistence and network-failure fallback.
func WithStorage(storage Storage) Option {
	return func(c *Client) {
		c.storage = storage
	}
}

// WithMaxTimerDelay overrides the single-timer clamp.
func WithMaxTimerDelay(d time.Duration) Option {
	return func(c *Client) {
		c.maxTimerDelay = d
	}
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a client for the protocol served at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       baseURL,
		httpClient:    http.DefaultClient,
		maxTimerDelay: DefaultMaxTimerDelay,
		now:           func() time.Time { return time.Now().UTC() },
		subscribers:   make(map[int]Subscriber),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.storage != nil {
		if snapshot, ok, err := c.storage.Load(); err != nil {
			slog.Warn("Failed to load persisted auth snapshot", "err", err)
		} else if ok {
			c.state = State{
				Info:       snapshot.Front.Info,
				Token:      snapshot.Token,
				RememberMe: snapshot.Front.RememberMe,
			}
		}
	}
	return c
}

// State returns the current mirrored state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a state observer and returns its cancel function.
func (c *Client) Subscribe(fn Subscriber) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// Close cancels pending timers and invalidates in-flight operations.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.stopTimersLocked()
}

// Refresh re-resolves the credential, applying the server's sliding
// expiration. full also re-validates the identity against the backend. On
// network failure it falls back to the persisted snapshot when storage is
// enabled.
func (c *Client) Refresh(ctx context.Context, full bool) (State, error) {
	path := "/c/refresh?schemes"
	if full {
		path += "&full"
	}
	return c.roundTrip(ctx, http.MethodGet, path, nil, true)
}

// BasicLogin performs a username/password login.
func (c *Client) BasicLogin(ctx context.Context, username, password string, rememberMe bool) (State, error) {
	body := map[string]any{
		"username":   username,
		"password":   password,
		"rememberMe": rememberMe,
	}
	return c.roundTrip(ctx, http.MethodPost, "/c/basicLogin", body, false)
}

// UnsafeDirectLogin performs a gated direct login for an arbitrary scheme.
func (c *Client) UnsafeDirectLogin(ctx context.Context, scheme string, payload map[string]any, rememberMe bool) (State, error) {
	body := map[string]any{
		"scheme":     scheme,
		"payload":    payload,
		"rememberMe": rememberMe,
	}
	return c.roundTrip(ctx, http.MethodPost, "/c/unsafeDirectLogin", body, false)
}

// Impersonate switches the acting user by name or id.
func (c *Client) Impersonate(ctx context.Context, userName string, userID int64) (State, error) {
	body := map[string]any{}
	if userName != "" {
		body["userName"] = userName
	}
	if userID != 0 {
		body["userId"] = userID
	}
	return c.roundTrip(ctx, http.MethodPost, "/c/impersonate", body, false)
}

// Logout clears the credential. full also drops the long-term hint and the
// persisted snapshot; a partial logout keeps the Unsafe identity for a
// smoother re-login. The device id survives either way.
func (c *Client) Logout(ctx context.Context, full bool) (State, error) {
	gen, prior := c.begin()

	path := "/c/logout"
	if full {
		path += "?full"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return c.State(), fmt.Errorf("failed to build logout request: %w", err)
	}
	if prior.Token != "" {
		req.Header.Set("Authorization", "Bearer "+prior.Token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.apply(gen, c.disconnected(prior, &Error{Kind: KindNetwork, ErrorText: err.Error()})), err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	now := c.now()
	next := State{RememberMe: prior.RememberMe && !full}
	if full {
		next.Info = authinfo.NewAnonymous(prior.Info.DeviceID())
		next.RememberMe = false
	} else {
		next.Info = prior.Info.Downgraded(now)
	}
	if c.storage != nil && full {
		if err := c.storage.Clear(); err != nil {
			slog.Warn("Failed to clear persisted auth snapshot", "err", err)
		}
	}
	return c.apply(gen, next), nil
}

// StartInlineLoginURL builds the startLogin URL for an inline redirect
// through a remote provider. The return URL must be on the server's
// allow-list.
func (c *Client) StartInlineLoginURL(scheme, returnURL string, rememberMe bool) string {
	q := url.Values{}
	q.Set("scheme", scheme)
	if returnURL != "" {
		q.Set("returnUrl", returnURL)
	}
	q.Set("rememberMe", strconv.FormatBool(rememberMe))
	return c.baseURL + "/c/startLogin?" + q.Encode()
}

// begin opens an operation: pending timers are cancelled and a new
// generation issued, so any older in-flight result is discarded on arrival.
func (c *Client) begin() (uint64, State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.stopTimersLocked()
	return c.generation, c.state
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, allowSnapshot bool) (State, error) {
	gen, prior := c.begin()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return prior, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return prior, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prior.Token != "" {
		req.Header.Set("Authorization", "Bearer "+prior.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.networkFailure(gen, prior, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.networkFailure(gen, prior, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		protocolErr := &Error{Kind: KindProtocol, ErrorID: "http_" + strconv.Itoa(resp.StatusCode)}
		var body authapi.ErrorResponse
		if json.Unmarshal(data, &body) == nil && body.ErrorID != "" {
			protocolErr.ErrorID = body.ErrorID
			protocolErr.ErrorText = body.ErrorText
		}
		return c.apply(gen, c.disconnected(prior, protocolErr)), protocolErr
	}

	var envelope authapi.AuthResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		protocolErr := &Error{Kind: KindProtocol, ErrorID: "bad_response", ErrorText: err.Error()}
		return c.apply(gen, c.disconnected(prior, protocolErr)), protocolErr
	}

	next := c.stateFromEnvelope(envelope)
	applied := c.apply(gen, next)
	if next.LastError != nil {
		return applied, next.LastError
	}
	return applied, nil
}

// networkFailure falls back to the persisted snapshot when the operation
// allows it, so transient connectivity loss does not log the caller out.
func (c *Client) networkFailure(gen uint64, prior State, cause error) (State, error) {
	netErr := &Error{Kind: KindNetwork, ErrorText: cause.Error()}
	if c.storage != nil {
		if snapshot, ok, err := c.storage.Load(); err == nil && ok {
			restored := State{
				Info:       snapshot.Front.Info,
				Token:      snapshot.Token,
				RememberMe: snapshot.Front.RememberMe,
				LastError:  netErr,
			}
			return c.apply(gen, restored), netErr
		}
	}
	return c.apply(gen, c.disconnected(prior, netErr)), netErr
}

// disconnected is the fallback state: identity degraded to Unsafe at most,
// device id preserved, token dropped.
func (c *Client) disconnected(prior State, lastErr *Error) State {
	return State{
		Info:       prior.Info.Downgraded(c.now()),
		RememberMe: prior.RememberMe,
		LastError:  lastErr,
	}
}

func (c *Client) stateFromEnvelope(envelope authapi.AuthResponse) State {
	now := c.now()
	state := State{
		Info:        infoFromView(envelope.Info, now),
		Token:       envelope.Token,
		RememberMe:  envelope.RememberMe,
		Refreshable: envelope.Refreshable,
		Schemes:     envelope.Schemes,
	}
	if envelope.LoginFailureCode > 0 {
		state.LastError = &Error{
			Kind:          KindLoginFailure,
			ErrorID:       envelope.ErrorID,
			ErrorText:     envelope.ErrorText,
			FailureCode:   envelope.LoginFailureCode,
			FailureReason: envelope.LoginFailureReason,
		}
	} else if envelope.ErrorID != "" {
		state.LastError = &Error{
			Kind:      KindProtocol,
			ErrorID:   envelope.ErrorID,
			ErrorText: envelope.ErrorText,
		}
	}
	return state
}

// apply installs the state for the given generation. A stale generation is
// discarded: the last completed operation wins.
func (c *Client) apply(gen uint64, next State) State {
	c.mu.Lock()
	if gen != c.generation {
		current := c.state
		c.mu.Unlock()
		return current
	}
	c.state = next
	c.persistLocked(next)
	c.armTimersLocked(gen)
	subscribers := make([]Subscriber, 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subscribers = append(subscribers, fn)
	}
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(next)
	}
	return next
}

func (c *Client) persistLocked(state State) {
	if c.storage == nil || state.LastError != nil {
		return
	}
	snapshot := Snapshot{
		Front: authinfo.FrontAuthenticationInfo{Info: state.Info, RememberMe: state.RememberMe},
		Token: state.Token,
	}
	if err := c.storage.Save(snapshot); err != nil {
		slog.Warn("Failed to persist auth snapshot", "err", err)
	}
}

func (c *Client) stopTimersLocked() {
	for _, timer := range c.timers {
		timer.Stop()
	}
	c.timers = nil
}

// armTimersLocked schedules the expiration timer, and a nested critical
// timer when a critical expiration is present. Delays beyond the clamp
// re-arm recursively instead of overflowing a single timer.
func (c *Client) armTimersLocked(gen uint64) {
	now := c.now()

	if exp := c.state.Info.Expires(); !exp.IsZero() {
		c.scheduleLocked(gen, exp.Sub(now), c.onExpiry)
	}
	if cexp := c.state.Info.CriticalExpires(); !cexp.IsZero() {
		c.scheduleLocked(gen, cexp.Sub(now), c.onCriticalExpiry)
	}
}

func (c *Client) scheduleLocked(gen uint64, delay time.Duration, fire func(uint64)) {
	if delay <= 0 {
		delay = time.Millisecond
	}
	var timer *time.Timer
	if delay > c.maxTimerDelay {
		wait := c.maxTimerDelay
		remaining := delay - wait
		timer = time.AfterFunc(wait, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if gen != c.generation {
				return
			}
			c.scheduleLocked(gen, remaining, fire)
		})
	} else {
		timer = time.AfterFunc(delay, func() {
			fire(gen)
		})
	}
	c.timers = append(c.timers, timer)
}

// onExpiry fires when the credential's expiration passes. A refreshable
// credential triggers an automatic refresh; otherwise subscribers are
// notified of the lapsed state.
func (c *Client) onExpiry(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	refreshable := c.state.Refreshable
	state := c.state
	subscribers := make([]Subscriber, 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subscribers = append(subscribers, fn)
	}
	c.mu.Unlock()

	if refreshable {
		if _, err := c.Refresh(context.Background(), false); err != nil {
			slog.Warn("Automatic refresh failed", "err", err)
		}
		return
	}
	for _, fn := range subscribers {
		fn(state)
	}
}

// onCriticalExpiry notifies subscribers that the Critical tier lapsed; the
// credential itself stays Normal.
func (c *Client) onCriticalExpiry(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	state := c.state
	subscribers := make([]Subscriber, 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subscribers = append(subscribers, fn)
	}
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(state)
	}
}

func userFromView(view authapi.UserView) authinfo.UserInfo {
	user := authinfo.UserInfo{ID: view.ID, Name: view.Name}
	for _, scheme := range view.Schemes {
		user = user.WithScheme(scheme.Name, scheme.LastUsed)
	}
	return user
}

// infoFromView rebuilds the credential value from its wire projection,
// renormalizing against the local clock.
func infoFromView(view authapi.InfoView, now time.Time) authinfo.AuthenticationInfo {
	var exp, cexp time.Time
	if view.Exp != nil {
		exp = *view.Exp
	}
	if view.Cexp != nil {
		cexp = *view.Cexp
	}
	return authinfo.New(userFromView(view.ActualUser), userFromView(view.User), exp, cexp, view.DeviceID, now)
}
