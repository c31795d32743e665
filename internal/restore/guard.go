package restore

import (
	"context"
	"sync"
	"time"

	"ride-hail-client/internal/common/logger"
	"ride-hail-client/internal/common/model"
)

// Guard ensures the restore procedure runs at most once concurrently and
// at most once per login, however many foreground events fire.
type Guard struct {
	mu          sync.Mutex
	hasRestored bool
	isRestoring bool
}

// RestoreOnce runs procedure unless a restore already completed or one
// is in flight. Reports whether the procedure ran.
//
// hasRestored is set after the procedure completes even if it returned
// an error, so a failed restore is not retried until ResetGuard. That
// mirrors the shipped behavior; retry-on-next-foreground is the recorded
// alternative.
func (g *Guard) RestoreOnce(procedure func() error) bool {
	g.mu.Lock()
	if g.hasRestored || g.isRestoring {
		g.mu.Unlock()
		return false
	}
	g.isRestoring = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.hasRestored = true
		g.isRestoring = false
		g.mu.Unlock()
	}()

	if err := procedure(); err != nil {
		logger.Warn("restore_failed", "Session restore failed", "", "", err.Error())
	}
	return true
}

// ResetGuard clears both flags; called on logout so the next login can
// restore again.
func (g *Guard) ResetGuard() {
	g.mu.Lock()
	g.hasRestored = false
	g.isRestoring = false
	g.mu.Unlock()
}

func (g *Guard) HasRestored() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hasRestored
}

// Session is the slice of the connection manager the restore flow needs.
type Session interface {
	WaitConnected(timeout time.Duration) bool
	JoinRoom(rideID string) error
	Identity() *model.Identity
}

// Restorer ties the guard to the resume snapshot: on app foreground it
// fetches the server's view of the ride and rehydrates local state.
type Restorer struct {
	guard    Guard
	client   *ResumeClient
	session  Session
	authWait time.Duration

	OnTrip   func(trip model.TripDetails)
	OnRating func(prompt model.RatingPrompt)
}

func NewRestorer(client *ResumeClient, session Session, authWait time.Duration) *Restorer {
	if authWait <= 0 {
		authWait = 5 * time.Second
	}
	return &Restorer{client: client, session: session, authWait: authWait}
}

// OnForeground is called on cold start and on every app-foreground
// event. Failures are swallowed: a broken restore must never block
// normal use of the app.
func (r *Restorer) OnForeground(ctx context.Context) bool {
	return r.guard.RestoreOnce(func() error {
		return r.procedure(ctx)
	})
}

func (r *Restorer) ResetGuard() {
	r.guard.ResetGuard()
}

func (r *Restorer) procedure(ctx context.Context) error {
	identity := r.session.Identity()
	if identity == nil || identity.Phone == "" {
		logger.Debug("restore_skipped", "No identity, nothing to restore", "", "")
		return nil
	}

	snapshot, err := r.client.Fetch(ctx, identity.Phone, identity.Role)
	if err != nil {
		return err
	}

	switch snapshot.State {
	case model.TripMatched, model.TripArrived, model.TripOnTrip:
		// Ограниченное ожидание авторизации: без неё просто не заходим
		// в комнату, но состояние всё равно восстанавливаем
		if r.session.WaitConnected(r.authWait) {
			if err := r.session.JoinRoom(snapshot.Trip.RideID); err != nil {
				logger.Warn("restore_join_failed", "Could not rejoin ride room", "", snapshot.Trip.RideID, err.Error())
			}
		} else {
			logger.Warn("restore_join_skipped", "Socket not authenticated in time, skipping room rejoin", "", snapshot.Trip.RideID, "")
		}
		logger.Info("restore_trip", "Rehydrated active trip", "", snapshot.Trip.RideID)
		if r.OnTrip != nil {
			r.OnTrip(*snapshot.Trip)
		}

	case model.TripRatingPending:
		logger.Info("restore_rating", "Rehydrated rating prompt", "", snapshot.Rating.RideID)
		if r.OnRating != nil {
			r.OnRating(*snapshot.Rating)
		}

	default:
		logger.Debug("restore_none", "Server reports no trip in progress", "", "")
	}
	return nil
}
