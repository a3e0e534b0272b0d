package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-spirit-connect/internal/adapter"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/internal/utils"
	"github.com/MKhiriev/go-spirit-connect/models"
)

// tokenLeeway is how close to its expiry a session token is still used.
const tokenLeeway = 30 * time.Second

// Route binds a local store to the backend resource its rows are uploaded to.
type Route struct {
	Store    string
	Resource string
}

// DefaultRoutes returns the upload routes of the application stores.
func DefaultRoutes() []Route {
	return []Route{
		{Store: store.StoreJournalEntries, Resource: adapter.ResourceJournalEntries},
		{Store: store.StorePrayerHistory, Resource: adapter.ResourceDailyPrayers},
	}
}

type reconcileService struct {
	queue         QueueService
	adapter       adapter.ServerAdapter
	routes        []Route
	recordTimeout time.Duration
	now           Clock

	logger *logger.Logger
}

// NewReconcileService creates a ReconcileService uploading the rows of routes
// through serverAdapter. recordTimeout bounds each upload; zero means only
// the caller's context applies.
func NewReconcileService(queue QueueService, serverAdapter adapter.ServerAdapter, routes []Route, recordTimeout time.Duration, now Clock, log *logger.Logger) ReconcileService {
	if now == nil {
		now = time.Now
	}
	if routes == nil {
		routes = DefaultRoutes()
	}
	return &reconcileService{
		queue:         queue,
		adapter:       serverAdapter,
		routes:        routes,
		recordTimeout: recordTimeout,
		now:           now,
		logger:        log,
	}
}

func (r *reconcileService) Routes() []Route {
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}

func (r *reconcileService) selectRoutes(stores []string) ([]Route, error) {
	if len(stores) == 0 {
		return r.Routes(), nil
	}

	selected := make([]Route, 0, len(stores))
	for _, name := range stores {
		route, ok := findRoute(r.routes, name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnroutableStore, name)
		}
		selected = append(selected, route)
	}
	return selected, nil
}

func findRoute(routes []Route, storeName string) (Route, bool) {
	for _, route := range routes {
		if route.Store == storeName {
			return route, true
		}
	}
	return Route{}, false
}

func (r *reconcileService) Reconcile(ctx context.Context, stores ...string) (models.ReconcileReport, error) {
	var report models.ReconcileReport

	routes, err := r.selectRoutes(stores)
	if err != nil {
		return report, err
	}

	if err = r.checkSession(); err != nil {
		report.Aborted = true
		return report, err
	}

	for _, route := range routes {
		part, err := r.reconcileRoute(ctx, route)
		report.Add(part)
		if err != nil {
			return report, err
		}
	}

	replayed, err := r.replayQueue(ctx)
	report.Replayed = replayed
	if err != nil {
		report.Aborted = true
		return report, err
	}

	r.logger.Info().
		Str("func", "*reconcileService.Reconcile").
		Int("synced", report.Synced).
		Int("failed", report.Failed).
		Int("deferred", report.Deferred).
		Int("dead_lettered", report.DeadLettered).
		Int("replayed", report.Replayed).
		Msg("reconcile pass finished")

	return report, nil
}

// checkSession refuses a pass with a session token that is already expired.
// Tokens that are not JWTs are left to the server to judge.
func (r *reconcileService) checkSession() error {
	token := r.adapter.Token()
	if token == "" {
		return nil
	}

	expired, err := utils.TokenExpired(token, r.now(), tokenLeeway)
	if err != nil {
		r.logger.Debug().Err(err).
			Str("func", "*reconcileService.checkSession").
			Msg("session token is opaque, skipping expiry check")
		return nil
	}
	if expired {
		return fmt.Errorf("%w: %w", ErrSyncAborted, ErrTokenIsExpired)
	}
	return nil
}

func (r *reconcileService) reconcileRoute(ctx context.Context, route Route) (models.ReconcileReport, error) {
	var report models.ReconcileReport

	pending, err := r.queue.ReadUnsynced(ctx, route.Store)
	if err != nil {
		return report, fmt.Errorf("failed to read unsynced rows of %s: %w", route.Store, err)
	}

	now := r.now()
	for _, row := range pending {
		if err = ctx.Err(); err != nil {
			return report, err
		}

		if !row.Due(now) {
			report.Deferred++
			continue
		}

		uploadErr := r.upload(ctx, route, row)
		if uploadErr == nil {
			err = r.queue.MarkSynced(ctx, route.Store, row)
			switch {
			case errors.Is(err, ErrRowChanged):
				// Edited mid-upload: the newer version goes out next pass.
				report.Deferred++
			case errors.Is(err, store.ErrRecordNotFound):
				// Deleted locally mid-upload; the server copy stands.
				report.Synced++
			case err != nil:
				return report, err
			default:
				report.Synced++
			}
			continue
		}

		// The row is not to blame for an expired session or a cancelled
		// pass, so no attempt is charged.
		if errors.Is(uploadErr, adapter.ErrUnauthorized) {
			report.Aborted = true
			return report, fmt.Errorf("%w: %w", ErrSyncAborted, mapAdapterError(uploadErr))
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		updated, err := r.queue.MarkFailed(ctx, route.Store, row.LocalID, uploadErr)
		if err != nil {
			return report, err
		}
		if _, dead := updated.(models.DeadLetterRow); dead {
			report.DeadLettered++
		} else {
			report.Failed++
		}
	}

	return report, nil
}

func (r *reconcileService) upload(ctx context.Context, route Route, row models.PendingRow) error {
	if r.recordTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.recordTimeout)
		defer cancel()
	}

	_, err := r.adapter.Upsert(ctx, route.Resource, row.LocalID, row.Data)
	return err
}

// replayQueue sends the sync queue as one batch and drops exactly the
// actions that were sent. A failed replay keeps the queue for the next pass;
// only an expired session aborts the pass.
func (r *reconcileService) replayQueue(ctx context.Context) (int, error) {
	actions, err := r.queue.GetSyncQueue(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read sync queue: %w", err)
	}
	if len(actions) == 0 {
		return 0, nil
	}

	if err = r.adapter.Replay(ctx, actions); err != nil {
		r.logger.Warn().Err(err).
			Str("func", "*reconcileService.replayQueue").
			Int("actions", len(actions)).
			Msg("failed to replay sync queue")
		if errors.Is(err, adapter.ErrUnauthorized) {
			return 0, fmt.Errorf("%w: %w", ErrSyncAborted, mapAdapterError(err))
		}
		return 0, nil
	}

	if err = r.queue.RemoveFromSyncQueue(ctx, actions); err != nil {
		return 0, err
	}
	return len(actions), nil
}
