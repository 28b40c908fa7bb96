package invite

import (
	"context"
	"time"

	"github.com/dimitrije/teamjoin/internal/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultReconcileAttempts = 10
	DefaultReconcileInterval = 500 * time.Millisecond
)

// ProfileReader reads the authoritative profile of an identity.
type ProfileReader interface {
	GetProfile(ctx context.Context, uid string) (*models.Identity, error)
}

type ReconcileStatus string

const (
	ReconcileConfirmed ReconcileStatus = "confirmed"
	ReconcileTimedOut  ReconcileStatus = "timed_out"
)

// Reconciliation is the result of waiting for a redemption to show up on
// the identity. Identity is the last profile snapshot read, possibly nil.
type Reconciliation struct {
	Status   ReconcileStatus
	Identity *models.Identity
	Session  *models.Session
	Attempts int
}

func (r Reconciliation) Confirmed() bool {
	return r.Status == ReconcileConfirmed
}

// Reconciler waits, with a bounded number of attempts, for the profile of a
// redeemed identity to carry its team affiliation.
type Reconciler struct {
	refresher   SessionRefresher
	profiles    ProfileReader
	maxAttempts int
	interval    time.Duration
}

func NewReconciler(refresher SessionRefresher, profiles ProfileReader, maxAttempts int, interval time.Duration) *Reconciler {
	if maxAttempts <= 0 {
		maxAttempts = DefaultReconcileAttempts
	}
	if interval < 0 {
		interval = DefaultReconcileInterval
	}
	return &Reconciler{
		refresher:   refresher,
		profiles:    profiles,
		maxAttempts: maxAttempts,
		interval:    interval,
	}
}

// Reconcile never fails because the update is late: after maxAttempts it
// returns ReconcileTimedOut and the redemption is treated as authoritative.
// It only returns an error when ctx is done.
func (r *Reconciler) Reconcile(ctx context.Context, session *models.Session) (Reconciliation, error) {
	ctx, span := tracer.Start(ctx, "invite.Reconcile")
	defer span.End()

	entry := log.WithField("uid", session.UID)
	res := Reconciliation{Status: ReconcileTimedOut, Session: session}

	if fresh, err := r.refresher.RefreshSession(ctx, session); err != nil {
		entry.WithError(err).Warn("failed to refresh session after redemption")
	} else {
		res.Session = fresh
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempts = attempt

		identity, err := r.profiles.GetProfile(ctx, session.UID)
		if err != nil {
			entry.WithError(err).WithField("attempt", attempt).Debug("profile read failed")
		} else if identity != nil {
			res.Identity = identity
			if identity.Affiliated() {
				res.Status = ReconcileConfirmed
				span.SetAttributes(attribute.Int("reconcile.attempts", attempt))
				return res, nil
			}
		}

		if attempt == r.maxAttempts {
			break
		}
		timer := time.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return res, ctx.Err()
		case <-timer.C:
		}
	}

	span.SetAttributes(attribute.Int("reconcile.attempts", res.Attempts), attribute.Bool("reconcile.timed_out", true))
	entry.WithFields(logrus.Fields{
		"attempts": res.Attempts,
		"interval": r.interval.String(),
	}).Warn("team affiliation not visible after redemption, continuing")
	return res, nil
}
