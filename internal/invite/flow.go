package invite

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dimitrije/teamjoin/internal/models"
)

type State string

const (
	StateIdle              State = "idle"
	StateValidating        State = "validating"
	StateResolvingIdentity State = "resolving_identity"
	StateRedeeming         State = "redeeming"
	StateReconciling       State = "reconciling"
	StateTerminal          State = "terminal"
)

type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeSuccessWithWarning Outcome = "success_with_warning"
	OutcomeAlreadyClaimed     Outcome = "already_claimed"
	OutcomeError              Outcome = "error"
)

// MaxIdentityFailures is the number of consecutive failed identity
// submissions after which a flow gives up.
const MaxIdentityFailures = 5

// Transition is emitted to observers on every state change, and on identity
// events that keep the flow in StateResolvingIdentity.
type Transition struct {
	From    State
	To      State
	Outcome Outcome
	Detail  string
	At      time.Time
}

// Snapshot is a copy of the flow's state safe to hand to callers.
type Snapshot struct {
	State    State
	Outcome  Outcome
	Mode     Mode
	Invite   *models.InviteRecord
	Session  *models.Session
	Identity *models.Identity
	TeamID   string
	Role     string
	Err      error
	Attempt  RedemptionAttempt
	History  []State
}

func (s Snapshot) Terminal() bool {
	return s.State == StateTerminal
}

// Resolved reports whether a confirmed credential is attached.
func (s Snapshot) Resolved() bool {
	return s.Session != nil && s.Session.UID != ""
}

// Deps are the collaborators shared by all flows.
type Deps struct {
	Validator  *Validator
	Resolver   *Resolver
	Reconciler *Reconciler
	Redeemer   RedeemAPI
	Refresher  SessionRefresher
	Locker     Locker
}

// Flow is the invite-redemption state machine for one join attempt:
//
//	Idle -> Validating -> ResolvingIdentity -> Redeeming -> Reconciling -> Terminal
//
// Each step is only accepted in the state that precedes it, which keeps the
// ordering of validation, redemption and reconciliation structural. Terminal
// is final.
type Flow struct {
	deps        Deps
	coordinator *Coordinator
	now         func() time.Time

	mu         sync.Mutex
	state      State
	outcome    Outcome
	mode       Mode
	invite     *models.InviteRecord
	session    *models.Session
	identity   *models.Identity
	teamID     string
	role       string
	phone      string
	err        error
	history    []State
	busy       bool
	failures   int
	pending    []Transition
	observers  []func(Transition)
	onComplete []func(Snapshot)
}

func NewFlow(deps Deps) *Flow {
	return &Flow{
		deps:        deps,
		coordinator: NewCoordinator(deps.Redeemer, deps.Refresher, deps.Locker),
		now:         time.Now,
		state:       StateIdle,
		history:     []State{StateIdle},
	}
}

// Observe registers fn to receive every transition. fn is called without
// the flow lock held.
func (f *Flow) Observe(fn func(Transition)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, fn)
}

// OnComplete registers fn to be called once the flow reaches a successful
// terminal state.
func (f *Flow) OnComplete(fn func(Snapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onComplete = append(f.onComplete, fn)
}

func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Flow) snapshotLocked() Snapshot {
	history := make([]State, len(f.history))
	copy(history, f.history)
	return Snapshot{
		State:    f.state,
		Outcome:  f.outcome,
		Mode:     f.mode,
		Invite:   f.invite,
		Session:  f.session,
		Identity: f.identity,
		TeamID:   f.teamID,
		Role:     f.role,
		Err:      f.err,
		Attempt:  f.coordinator.Attempt(),
		History:  history,
	}
}

// Start validates token and, when valid, moves to identity resolution with
// the mode chosen from session (nil when nobody is signed in).
func (f *Flow) Start(ctx context.Context, token string, session *models.Session) (Snapshot, error) {
	f.mu.Lock()
	if err := f.expectLocked(StateIdle); err != nil {
		f.mu.Unlock()
		return f.Snapshot(), err
	}
	f.transitionLocked(StateValidating, "", "")
	f.unlockAndNotify()

	result := f.deps.Validator.Validate(ctx, token)

	f.mu.Lock()
	if ctx.Err() != nil {
		f.rollbackLocked(StateIdle)
		f.unlockAndNotify()
		return f.Snapshot(), ctx.Err()
	}
	if !result.Valid() {
		f.err = result.Err()
		f.transitionLocked(StateTerminal, OutcomeError, result.Reason)
		snap := f.snapshotLocked()
		f.unlockAndNotify()
		return snap, f.err
	}

	f.invite = result.Invite
	f.transitionLocked(StateResolvingIdentity, "", "")

	res, err := f.deps.Resolver.Resolve(session, f.invite)
	f.mode = res.Mode
	if err != nil {
		f.err = err
		f.emitLocked("identity_rejected")
	} else if res.Resolved() {
		f.session = res.Session
		f.emitLocked("identity_resolved")
	}
	snap := f.snapshotLocked()
	f.unlockAndNotify()
	return snap, err
}

// Authenticate attaches an existing signed-in session.
func (f *Flow) Authenticate(ctx context.Context, session *models.Session) (Snapshot, error) {
	return f.resolve(ctx, func(ctx context.Context, inv *models.InviteRecord) (Resolution, error) {
		if session == nil || session.UID == "" {
			return Resolution{Mode: ModeAlreadyAuthenticated}, ErrIdentityUnresolved
		}
		// Verify the proof before trusting the session.
		fresh, err := f.deps.Refresher.RefreshSession(ctx, session)
		if err != nil {
			return Resolution{Mode: ModeAlreadyAuthenticated}, classifyProviderError(err)
		}
		return f.deps.Resolver.Resolve(fresh, inv)
	})
}

// SubmitCredentials runs the password based mode. A credential conflict
// switches the mode and is returned as an error; it never retries.
func (f *Flow) SubmitCredentials(ctx context.Context, mode Mode, creds Credentials) (Snapshot, error) {
	return f.resolve(ctx, func(ctx context.Context, inv *models.InviteRecord) (Resolution, error) {
		return f.deps.Resolver.Submit(ctx, inv, mode, creds)
	})
}

func (f *Flow) SubmitFederated(ctx context.Context, cred FederatedCredential) (Snapshot, error) {
	return f.resolve(ctx, func(ctx context.Context, inv *models.InviteRecord) (Resolution, error) {
		return f.deps.Resolver.SubmitFederated(ctx, inv, cred)
	})
}

func (f *Flow) resolve(ctx context.Context, step func(context.Context, *models.InviteRecord) (Resolution, error)) (Snapshot, error) {
	f.mu.Lock()
	if err := f.expectLocked(StateResolvingIdentity); err != nil {
		f.mu.Unlock()
		return f.Snapshot(), err
	}
	if f.busy {
		f.mu.Unlock()
		return f.Snapshot(), ErrStepInFlight
	}
	f.busy = true
	inv := f.invite
	f.mu.Unlock()

	res, err := step(ctx, inv)

	f.mu.Lock()
	f.busy = false
	if ctx.Err() != nil {
		snap := f.snapshotLocked()
		f.mu.Unlock()
		return snap, ctx.Err()
	}
	if res.Mode != "" {
		f.mode = res.Mode
	}
	if err != nil {
		f.err = err
		f.failures++
		if f.failures >= MaxIdentityFailures {
			f.transitionLocked(StateTerminal, OutcomeError, "identity_failed")
		} else if res.Switched {
			f.emitLocked("mode_switched")
		} else {
			f.emitLocked("identity_rejected")
		}
		snap := f.snapshotLocked()
		f.unlockAndNotify()
		return snap, err
	}

	f.failures = 0
	f.err = nil
	f.session = res.Session
	if res.Phone != "" {
		f.phone = res.Phone
	}
	f.emitLocked("identity_resolved")
	snap := f.snapshotLocked()
	f.unlockAndNotify()
	return snap, nil
}

// Redeem redeems the invite for the resolved identity and then reconciles
// the identity's team affiliation. A duplicate call while a redemption is in
// flight fails with ErrRedemptionInFlight and leaves the state untouched.
// Only the caller that moved the flow into Redeeming drives it further.
func (f *Flow) Redeem(ctx context.Context, profile models.ProfileFields) (Snapshot, error) {
	f.mu.Lock()
	switch f.state {
	case StateTerminal:
		f.mu.Unlock()
		return f.Snapshot(), ErrFlowTerminal
	case StateRedeeming, StateReconciling:
		f.mu.Unlock()
		return f.Snapshot(), ErrRedemptionInFlight
	case StateResolvingIdentity:
	default:
		f.mu.Unlock()
		return f.Snapshot(), ErrInvalidTransition
	}
	if f.busy {
		f.mu.Unlock()
		return f.Snapshot(), ErrStepInFlight
	}
	if f.session == nil {
		f.mu.Unlock()
		return f.Snapshot(), ErrIdentityUnresolved
	}
	if profile.Phone == "" {
		profile.Phone = f.phone
	}
	f.transitionLocked(StateRedeeming, "", "")
	inv, session := f.invite, f.session
	f.unlockAndNotify()

	out, err := f.coordinator.Redeem(ctx, inv, session, profile)

	f.mu.Lock()
	if f.state != StateRedeeming {
		snap := f.snapshotLocked()
		f.mu.Unlock()
		return snap, ErrRedemptionInFlight
	}
	if err != nil {
		f.err = err
		switch {
		case ctx.Err() != nil:
			f.rollbackLocked(StateResolvingIdentity)
			err = ctx.Err()
		case errors.Is(err, ErrRedemptionLocked):
			f.transitionLocked(StateResolvingIdentity, "", "locked")
		case KindOf(err) == KindTokenAlreadyClaimed:
			f.transitionLocked(StateTerminal, OutcomeAlreadyClaimed, ReasonAlreadyClaimed)
		case Retryable(err):
			f.transitionLocked(StateResolvingIdentity, "", "retry")
		default:
			f.transitionLocked(StateTerminal, OutcomeError, string(KindOf(err)))
		}
		snap := f.snapshotLocked()
		f.unlockAndNotify()
		return snap, err
	}

	f.err = nil
	f.session = out.Session
	f.teamID = out.TeamID
	f.role = out.Role
	f.transitionLocked(StateReconciling, "", "")
	f.unlockAndNotify()

	rec, rerr := f.deps.Reconciler.Reconcile(ctx, out.Session)

	f.mu.Lock()
	if rec.Session != nil {
		f.session = rec.Session
	}
	if rec.Identity != nil {
		f.identity = rec.Identity
		if rec.Identity.TeamID != "" {
			f.teamID = rec.Identity.TeamID
		}
		if rec.Identity.Role != "" {
			f.role = rec.Identity.Role
		}
	}
	if rerr == nil && rec.Confirmed() {
		f.transitionLocked(StateTerminal, OutcomeSuccess, "")
	} else {
		// The redeem call succeeded, which is authoritative.
		f.err = newError(KindReconciliationTimeout, "", rerr)
		f.transitionLocked(StateTerminal, OutcomeSuccessWithWarning, string(ReconcileTimedOut))
	}
	snap := f.snapshotLocked()
	callbacks := append([]func(Snapshot){}, f.onComplete...)
	f.unlockAndNotify()

	for _, fn := range callbacks {
		fn(snap)
	}
	return snap, nil
}

func (f *Flow) expectLocked(want State) error {
	if f.state == StateTerminal {
		return ErrFlowTerminal
	}
	if f.state != want {
		return ErrInvalidTransition
	}
	return nil
}

func (f *Flow) transitionLocked(to State, outcome Outcome, detail string) {
	from := f.state
	f.state = to
	if outcome != "" {
		f.outcome = outcome
	}
	f.history = append(f.history, to)
	f.pending = append(f.pending, Transition{From: from, To: to, Outcome: outcome, Detail: detail, At: f.now()})
}

// rollbackLocked discards the step in progress after its caller went away.
func (f *Flow) rollbackLocked(to State) {
	from := f.state
	f.state = to
	f.history = append(f.history, to)
	f.pending = append(f.pending, Transition{From: from, To: to, Detail: "abandoned", At: f.now()})
}

func (f *Flow) emitLocked(detail string) {
	f.pending = append(f.pending, Transition{From: f.state, To: f.state, Detail: detail, At: f.now()})
}

func (f *Flow) unlockAndNotify() {
	pending := f.pending
	f.pending = nil
	observers := append([]func(Transition){}, f.observers...)
	f.mu.Unlock()

	for _, t := range pending {
		for _, fn := range observers {
			fn(t)
		}
	}
}
