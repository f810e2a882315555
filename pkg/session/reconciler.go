package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
)

// runReconciler watches a downed primary tier and restores routing once
// it answers pings again, replaying durable revocations first so a
// recovered cache cannot serve credentials that were revoked during the
// outage.
func (m *Manager) runReconciler() {
	defer m.wg.Done()

	// Startup pass: revocations persisted by a previous process may
	// still have live primary copies; replay them before this process
	// serves traffic from the primary tier for long.
	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	m.replayRevocations(startupCtx)
	cancel()

	ticker := time.NewTicker(m.config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if m.primaryAvailable() {
				continue
			}
			m.Reconcile(context.Background())
		}
	}
}

// Reconcile probes the primary tier and, on success, replays fallback
// revocations against it before restoring primary routing. It reports
// whether the tier is usable. The background loop calls this on every
// tick while the tier is down; it is also safe to call directly after
// an operator intervention.
func (m *Manager) Reconcile(ctx context.Context) bool {
	if !m.probePrimary(ctx) {
		return false
	}

	m.replayRevocations(ctx)

	if !m.primaryUp.Swap(true) {
		m.log.InfoContext(ctx, "primary store recovered", logger.Tier(TierPrimary))
	}

	m.replayPendingRevokeAll(ctx)

	return true
}

// probePrimary pings the tier with exponential backoff; a few rapid
// retries smooth over flapping without delaying the outer loop.
func (m *Manager) probePrimary(ctx context.Context) bool {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.primary.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return err == nil
}

// replayRevocations pushes every revoked-but-unexpired fallback row at
// the primary tier, deleting stale cached copies and their index
// entries. Runs before primary routing is restored.
func (m *Manager) replayRevocations(ctx context.Context) {
	recs, err := m.fallback.ListInactive(ctx)
	if err != nil {
		m.log.ErrorContext(ctx, "failed to list revocations for replay", logger.Error(err))
		return
	}

	replayed := 0
	for _, rec := range recs {
		if err := m.primary.Delete(ctx, rec.Key); err != nil {
			m.log.WarnContext(ctx, "revocation replay delete failed",
				logger.Error(err), logger.Tier(TierPrimary))
			continue
		}
		if rec.UserID != uuid.Nil {
			_ = m.indexRemove(ctx, rec.UserID, indexKeyFor(rec.Kind, rec.UserID), memberOf(rec.Key))
		}
		replayed++
	}

	if replayed > 0 {
		m.log.InfoContext(ctx, "revocations replayed to primary store",
			logger.Tier(TierPrimary), logger.Component("reconciler"))
	}
}

// replayPendingRevokeAll finishes whole-user revocations that could not
// enumerate the primary index during the outage.
func (m *Manager) replayPendingRevokeAll(ctx context.Context) {
	m.pendingMu.Lock()
	if len(m.pendingRevokeAll) == 0 {
		m.pendingMu.Unlock()
		return
	}
	users := make([]uuid.UUID, 0, len(m.pendingRevokeAll))
	for uid := range m.pendingRevokeAll {
		users = append(users, uid)
	}
	m.pendingRevokeAll = make(map[uuid.UUID]struct{})
	m.pendingMu.Unlock()

	for _, uid := range users {
		if _, err := m.RevokeAllForUser(ctx, uid); err != nil {
			m.log.ErrorContext(ctx, "pending revoke-all replay failed",
				logger.UserID(uid), logger.Error(err))
		}
	}
}

// runSweeper reaps expired fallback rows on a fixed interval. Disabled
// when SweepInterval is zero; deployments usually prefer a scheduled
// job over an in-process loop.
func (m *Manager) runSweeper() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := m.fallback.DeleteExpired(ctx); err != nil {
				m.log.ErrorContext(ctx, "expired credential sweep failed", logger.Error(err))
			}
			cancel()
		}
	}
}
