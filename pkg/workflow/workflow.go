// Package workflow sequences a key verification and its follow-up token probe.
//
// A Workflow starts in Idle and, when started, looks up the caller, asks the
// resolver for a placeholder of the profile's secret, and submits both to the
// data server:
//
//	Idle -> Checking -> Verified(token) | Unverified
//
// A verified run stores the returned token in the session holder; every
// other outcome clears it. Once the first run settles, the workflow is
// complete and the secret may be updated. While a token is held it may be
// probed, which moves the secondary machine
//
//	TokenUnchecked -> TokenValid | TokenInvalid
//
// without touching the main state. Every path ends in exactly one message on
// the sink; errors are never returned for outcomes the user is told about.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"git.sr.ht/~jakintosh/keycheck/pkg/client"
	"git.sr.ht/~jakintosh/keycheck/pkg/identity"
	"git.sr.ht/~jakintosh/keycheck/pkg/message"
	"git.sr.ht/~jakintosh/keycheck/pkg/profile"
	"git.sr.ht/~jakintosh/keycheck/pkg/secretref"
	"git.sr.ht/~jakintosh/keycheck/pkg/session"
)

var (
	ErrNoToken          = errors.New("no session token held")
	ErrCheckIncomplete  = errors.New("verification has not completed")
	ErrNoSecretWriter   = errors.New("no secret writer configured")
	ErrMissingComponent = errors.New("missing workflow component")
)

const (
	TokenValidText      = "JWT Token is valid"
	TokenInvalidText    = "JWT Token is NOT valid"
	UnexpectedErrorText = "Unexpected error occurred"
)

type Config struct {
	Profile  profile.Profile
	Identity identity.Lookup
	Resolver secretref.Resolver
	Verifier client.Verifier
	Prober   client.Prober
	Sink     message.Sink
	Holder   *session.Holder

	// Writer is optional; without it UpdateSecret fails.
	Writer secretref.Writer

	// Log is the diagnostics channel. Defaults to a discarding logger.
	Log logrus.FieldLogger
}

type Workflow struct {
	cfg Config
	log logrus.FieldLogger

	flight singleflight.Group

	mu          sync.Mutex
	state       State
	tokenState  TokenState
	complete    bool
	lastFailure *Failure

	// run counts secret updates. Each one starts a fresh verification that
	// supersedes any run still in flight.
	run uint64
}

func New(cfg Config) (*Workflow, error) {
	if err := cfg.Profile.Validate(); err != nil {
		return nil, err
	}
	for name, missing := range map[string]bool{
		"identity": cfg.Identity == nil,
		"resolver": cfg.Resolver == nil,
		"verifier": cfg.Verifier == nil,
		"prober":   cfg.Prober == nil,
		"sink":     cfg.Sink == nil,
		"holder":   cfg.Holder == nil,
	} {
		if missing {
			return nil, fmt.Errorf("%w: %s", ErrMissingComponent, name)
		}
	}

	log := cfg.Log
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	return &Workflow{
		cfg: cfg,
		log: log.WithField("profile", cfg.Profile.Name),
	}, nil
}

// View returns a snapshot of the workflow state.
func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

func (w *Workflow) viewLocked() View {
	_, hasToken := w.cfg.Holder.Get()
	return View{
		State:           w.state,
		TokenState:      w.tokenState,
		Complete:        w.complete,
		HasToken:        hasToken,
		CanUpdateSecret: w.complete,
		CanVerifyToken:  hasToken,
	}
}

// LastFailure returns the most recent unexpected error, or nil.
func (w *Workflow) LastFailure() *Failure {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastFailure
}

// Start runs the verification if the workflow is Idle. Concurrent calls
// share one run. Calling Start on a settled workflow returns its view
// without re-running.
func (w *Workflow) Start(ctx context.Context) View {
	w.mu.Lock()
	run := w.run
	w.mu.Unlock()

	v, _, _ := w.flight.Do("verify-"+strconv.FormatUint(run, 10), func() (any, error) {
		w.mu.Lock()
		if w.state != Idle || w.run != run {
			v := w.viewLocked()
			w.mu.Unlock()
			return v, nil
		}
		w.state = Checking
		w.lastFailure = nil
		w.mu.Unlock()

		w.check(ctx, run)
		return w.View(), nil
	})
	return v.(View)
}

func (w *Workflow) check(ctx context.Context, run uint64) {
	p := w.cfg.Profile
	token, err := w.fetchToken(ctx)

	w.mu.Lock()
	if w.run != run {
		w.mu.Unlock()
		w.log.Debug("discarding superseded verification")
		return
	}
	var failure *Failure
	if errors.As(err, &failure) {
		w.lastFailure = failure
		token = ""
	}
	w.settleLocked(token)
	w.mu.Unlock()

	switch {
	case failure != nil:
		w.log.WithField("stage", failure.Stage).WithError(failure.Err).Error("verification failed unexpectedly")
		w.cfg.Sink.Show(message.Critical, UnexpectedErrorText)
	case token != "":
		w.log.Info("key verified")
		w.cfg.Sink.Show(message.Positive, p.ValidText())
	default:
		w.log.Info("key not verified")
		w.cfg.Sink.Show(message.Critical, p.InvalidText())
	}
}

func (w *Workflow) fetchToken(ctx context.Context) (string, error) {
	caller, err := w.cfg.Identity.CurrentUser(ctx)
	if err != nil {
		return "", &Failure{Stage: StageIdentity, Err: err}
	}

	placeholder := w.cfg.Resolver.Reference(w.cfg.Profile.SecretName)
	res, err := w.cfg.Verifier.Verify(ctx, w.cfg.Profile, client.VerificationRequest{
		Placeholder: placeholder,
		DisplayName: caller.DisplayName,
		Email:       caller.Email,
	})
	if err != nil {
		return "", &Failure{Stage: StageVerify, Err: err}
	}

	token, _ := res.Token()
	return token, nil
}

// settleLocked stores the run's token (or clears it) and marks the workflow
// complete. Completion never resets.
func (w *Workflow) settleLocked(token string) {
	if token != "" {
		w.state = Verified
	} else {
		w.state = Unverified
	}
	w.cfg.Holder.Set(token)
	w.tokenState = TokenUnchecked
	w.complete = true
}

// VerifyToken probes the held token. Without a token it returns ErrNoToken
// and makes no call.
func (w *Workflow) VerifyToken(ctx context.Context) (View, error) {
	w.cfg.Sink.Clear()

	token, ok := w.cfg.Holder.Get()
	if !ok {
		return w.View(), ErrNoToken
	}

	res, err := w.cfg.Prober.Probe(ctx, token)

	w.mu.Lock()
	switch {
	case err != nil:
		w.lastFailure = &Failure{Stage: StageProbe, Err: err}
		w.tokenState = TokenInvalid
	case res.OK:
		w.tokenState = TokenValid
	default:
		w.tokenState = TokenInvalid
	}
	view := w.viewLocked()
	w.mu.Unlock()

	switch {
	case err != nil:
		w.log.WithField("stage", StageProbe).WithError(err).Error("token probe failed unexpectedly")
		w.cfg.Sink.Show(message.Critical, UnexpectedErrorText)
	case res.OK:
		w.cfg.Sink.Show(message.Positive, TokenValidText)
	default:
		w.log.WithField("status", res.Status).Info("token rejected")
		w.cfg.Sink.Show(message.Critical, TokenInvalidText)
	}
	return view, nil
}

// BeginSecretUpdate prepares for navigating to the secret editor. The
// navigation context, and with it the token, is kept.
func (w *Workflow) BeginSecretUpdate() error {
	w.mu.Lock()
	complete := w.complete
	w.mu.Unlock()

	if !complete {
		return ErrCheckIncomplete
	}
	w.cfg.Sink.Clear()
	return nil
}

// UpdateSecret stores a new secret value through the boundary and runs the
// verification again. The held token follows the new outcome.
func (w *Workflow) UpdateSecret(ctx context.Context, value string) (View, error) {
	if err := w.BeginSecretUpdate(); err != nil {
		return w.View(), err
	}
	if w.cfg.Writer == nil {
		return w.View(), ErrNoSecretWriter
	}

	if err := w.cfg.Writer.WriteSecret(ctx, w.cfg.Profile.SecretName, value); err != nil {
		w.log.WithError(err).Error("secret update failed")
		w.cfg.Sink.Show(message.Critical, UnexpectedErrorText)
		return w.View(), fmt.Errorf("failed to update secret: %w", err)
	}

	w.mu.Lock()
	w.run++
	w.state = Idle
	w.mu.Unlock()

	return w.Start(ctx), nil
}

// DismissMessage clears the active message.
func (w *Workflow) DismissMessage() {
	w.cfg.Sink.Clear()
}
