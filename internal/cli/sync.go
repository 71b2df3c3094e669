package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/tripsync"
)

// watchRetry is the pause before reopening a dropped event stream.
const watchRetry = 5 * time.Second

// cmdSync runs the connection watch and the queue runner until interrupted.
// Background dashboard loads are reported as they finish.
func cmdSync(ctx context.Context, a *app, _ []string) error {
	userID, err := a.requireUser()
	if err != nil {
		return err
	}

	a.dashboard.OnUpdate(func(res *tripsync.DashboardResult) {
		fmt.Fprintf(a.out, "%s  %d trips (offline=%t)\n", fmtTime(time.Now()), len(res.Trips), res.Offline)
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.conn.Watch(ctx, tripsync.DefaultPolicy().ConnectionCooldown)
	}()
	go func() {
		defer wg.Done()
		a.queue.Run(ctx)
	}()

	if _, err := a.dashboard.FetchTrips(ctx, userID, true); err != nil {
		a.logger.Warn("initial dashboard load failed", slog.String("error", err.Error()))
	}
	fmt.Fprintln(a.out, "Syncing. Press Ctrl+C to stop.")

	wg.Wait()
	return nil
}

// cmdWatch prints every change to a trip and refreshes the cached details
// after each one. Dropped streams are reopened.
func cmdWatch(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tripsync watch <trip id>")
	}
	tripID := args[0]
	userID, err := a.requireUser()
	if err != nil {
		return err
	}

	for {
		err := a.api.StreamEvents(ctx, tripID, nil, func(ev model.ChangeEvent) {
			fmt.Fprintf(a.out, "%s  %s %s\n", fmtTime(time.Now()), ev.Type, ev.Table)
			if ev.Table == model.TableTrips || ev.Table == model.TableTripMembers {
				if _, err := a.trips.FetchTripDetails(ctx, tripID, userID, true); err != nil {
					a.logger.Warn("refreshing trip failed", slog.String("error", err.Error()))
				}
			}
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !queueable(err) {
			return errors.New(tripsync.Describe(err))
		}
		a.logger.Info("event stream closed, reconnecting", slog.Duration("after", watchRetry))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(watchRetry):
		}
	}
}
