package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dimitrije/teamjoin/internal/invite"
	"github.com/dimitrije/teamjoin/internal/logging"
	"github.com/dimitrije/teamjoin/internal/models"
	"github.com/dimitrije/teamjoin/internal/services"
	"github.com/dimitrije/teamjoin/internal/sse"
	"github.com/google/uuid"
)

// FlowRegistry keeps the live join flows of this process, keyed by join
// session id. Every transition is persisted to the session audit trail and
// pushed to the session's event stream.
type FlowRegistry struct {
	deps     invite.Deps
	sessions SessionServiceInterface
	hub      HubInterface
	expiry   time.Duration
	now      func() time.Time
	flows    sync.Map
}

type flowEntry struct {
	flow      *invite.Flow
	expiresAt time.Time
}

func NewFlowRegistry(deps invite.Deps, sessions SessionServiceInterface, hub HubInterface, expiry time.Duration) *FlowRegistry {
	return &FlowRegistry{
		deps:     deps,
		sessions: sessions,
		hub:      hub,
		expiry:   expiry,
		now:      time.Now,
	}
}

// Create persists a new join session for token and registers a fresh flow
// for it. The flow is not started.
func (r *FlowRegistry) Create(ctx context.Context, token string) (uuid.UUID, *invite.Flow, error) {
	expiresAt := r.now().Add(r.expiry)
	session, err := r.sessions.Create(ctx, token, expiresAt)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to create join session: %w", err)
	}

	flow := invite.NewFlow(r.deps)
	flow.Observe(r.recorder(session.ID, flow))
	flow.OnComplete(func(snap invite.Snapshot) {
		logging.LogEvent("invite_redeemed", map[string]interface{}{
			"session_id": session.ID.String(),
			"outcome":    string(snap.Outcome),
			"team_id":    snap.TeamID,
			"role":       snap.Role,
		})
	})

	r.flows.Store(session.ID, flowEntry{flow: flow, expiresAt: expiresAt})
	return session.ID, flow, nil
}

func (r *FlowRegistry) Get(id uuid.UUID) (*invite.Flow, bool) {
	v, ok := r.flows.Load(id)
	if !ok {
		return nil, false
	}
	entry, ok := v.(flowEntry)
	if !ok || !r.now().Before(entry.expiresAt) {
		r.flows.Delete(id)
		return nil, false
	}
	return entry.flow, true
}

// Persisted loads the audit record of a join session whose flow this process
// no longer holds, for example after a restart.
func (r *FlowRegistry) Persisted(ctx context.Context, id uuid.UUID) (*models.JoinSession, []models.JoinSessionEvent, error) {
	session, err := r.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	events, err := r.sessions.ListEvents(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load join session events: %w", err)
	}
	return session, events, nil
}

// Run sweeps expired flows and sessions every interval until ctx is done.
func (r *FlowRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *FlowRegistry) sweep(ctx context.Context) int {
	now := r.now()
	removed := 0
	r.flows.Range(func(key, value interface{}) bool {
		if entry, ok := value.(flowEntry); ok && !now.Before(entry.expiresAt) {
			r.flows.Delete(key)
			removed++
		}
		return true
	})

	deleted, err := r.sessions.CleanupExpired(ctx)
	if err != nil {
		logging.LogError("join_session_cleanup", err, nil)
	} else if deleted > 0 || removed > 0 {
		logging.LogEvent("join_sessions_expired", map[string]interface{}{
			"flows":    removed,
			"sessions": deleted,
		})
	}
	return removed
}

func (r *FlowRegistry) recorder(id uuid.UUID, flow *invite.Flow) func(invite.Transition) {
	return func(t invite.Transition) {
		snap := flow.Snapshot()
		rec := services.SessionTransition{
			From:    string(t.From),
			To:      string(t.To),
			Detail:  t.Detail,
			Mode:    string(snap.Mode),
			Outcome: string(t.Outcome),
			Role:    snap.Role,
		}
		if snap.Invite != nil {
			rec.InviteID = snap.Invite.ID
			rec.ProID = snap.Invite.ProID
			if rec.Role == "" {
				rec.Role = snap.Invite.Role
			}
		}
		if snap.Session != nil {
			rec.UID = snap.Session.UID
		}

		// Recording must outlive the request that caused the transition.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.sessions.RecordTransition(ctx, id, rec); err != nil {
			logging.LogError("join_session_record", err, map[string]interface{}{
				"session_id": id.String(),
				"to":         rec.To,
			})
		}

		r.hub.BroadcastTransition(sse.TransitionEvent{
			SessionID: id,
			From:      string(t.From),
			To:        string(t.To),
			Outcome:   string(t.Outcome),
			Detail:    t.Detail,
			At:        t.At,
		})
	}
}
