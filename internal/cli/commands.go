package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/client"
	"github.com/sakif/family-trips/internal/config"
	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/tripsync"
)

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login")
	token := fs.String("token", "", "refresh token from GET /auth/session")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return fmt.Errorf("usage: tripsync login -token <refresh token>")
	}

	a.session = client.NewSession(a.cfg.ServerURL, "", &oauth2.Token{RefreshToken: *token}, nil)
	a.session.Subscribe(a.saveToken)
	if err := a.session.Refresh(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", a.session.UserID())
	return nil
}

func cmdLogout(_ context.Context, a *app, _ []string) error {
	a.cfg.UserID = ""
	a.cfg.AccessToken = ""
	a.cfg.RefreshToken = ""
	a.cfg.TokenExpiry = time.Time{}
	if err := config.SaveClient(a.cfgPath, a.cfg); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func cmdStatus(ctx context.Context, a *app, args []string) error {
	fs := newFlags("status")
	force := fs.Bool("force", false, "check even within the cooldown")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st := a.conn.CheckConnection(ctx, *force)
	fmt.Fprintf(a.out, "server:       %s\n", a.cfg.ServerURL)
	fmt.Fprintf(a.out, "connection:   %s (checked %s)\n", st.Status, fmtTime(st.LastChecked))
	if st.Error != "" {
		fmt.Fprintf(a.out, "error:        %s\n", st.Error)
	}
	user := a.session.UserID()
	if user == "" {
		user = "(signed out)"
	}
	fmt.Fprintf(a.out, "user:         %s\n", user)

	pending, abandoned := 0, 0
	for _, op := range a.queue.Operations() {
		if op.Status == tripsync.OperationAbandoned {
			abandoned++
		} else {
			pending++
		}
	}
	fmt.Fprintf(a.out, "queue:        %d pending, %d abandoned\n", pending, abandoned)
	return nil
}

func cmdTrips(ctx context.Context, a *app, args []string) error {
	fs := newFlags("trips")
	force := fs.Bool("force", false, "skip the cache")
	if err := fs.Parse(args); err != nil {
		return err
	}
	userID, err := a.requireUser()
	if err != nil {
		return err
	}

	res, err := a.dashboard.FetchTrips(ctx, userID, *force)
	if err != nil {
		return errors.New(tripsync.Describe(err))
	}
	if res.Offline {
		fmt.Fprintln(a.out, "Offline: showing saved trips.")
	} else if res.FromCache {
		fmt.Fprintln(a.out, "(cached)")
	}
	if len(res.Trips) == 0 {
		fmt.Fprintln(a.out, "No trips yet. Create one with `tripsync create-trip`.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDESTINATION\tDATES\tMEMBERS\tROLE")
	for _, t := range res.Trips {
		role := "member"
		if t.Owned {
			role = "owner"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s..%s\t%d\t%s\n",
			t.ID, t.Name, t.Destination, t.StartDate, t.EndDate, t.DisplayMemberCount, role)
	}
	return tw.Flush()
}

func cmdTrip(ctx context.Context, a *app, args []string) error {
	fs := newFlags("trip")
	force := fs.Bool("force", false, "skip the cache")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: tripsync trip [-force] <trip id>")
	}
	userID, err := a.requireUser()
	if err != nil {
		return err
	}
	a.online(ctx)

	details, err := a.trips.FetchTripDetails(ctx, fs.Arg(0), userID, *force)
	if err != nil {
		if errors.Is(err, apperror.ErrForbidden) {
			return errors.New("you are not a member of this trip")
		}
		return errors.New(tripsync.Describe(err))
	}
	printTrip(a, details)
	return nil
}

func printTrip(a *app, d *tripsync.TripDetails) {
	if d.Offline {
		fmt.Fprintln(a.out, "Offline: showing saved copy.")
	} else if d.FromCache {
		fmt.Fprintln(a.out, "(cached)")
	}
	t := d.Trip
	fmt.Fprintf(a.out, "%s: %s, %s to %s\n", t.Name, t.Destination, t.StartDate, t.EndDate)
	fmt.Fprintf(a.out, "Invite code: %s\n", t.InviteCode)
	if t.AlbumURL != "" {
		fmt.Fprintf(a.out, "Album: %s\n", t.AlbumURL)
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MEMBER\tROLE\tARRIVES\tDEPARTS\tTRAVEL")
	for _, m := range d.Members {
		name := m.Name
		if name == "" {
			name = m.UserID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", name, m.Role,
			strings.TrimSpace(m.ArrivalDate+" "+m.ArrivalTime),
			strings.TrimSpace(m.DepartureDate+" "+m.DepartureTime),
			m.TravelMethod)
	}
	tw.Flush()
}

func cmdCreateTrip(ctx context.Context, a *app, args []string) error {
	fs := newFlags("create-trip")
	var in client.TripInput
	fs.StringVar(&in.Name, "name", "", "trip name")
	fs.StringVar(&in.Destination, "dest", "", "destination")
	fs.StringVar(&in.StartDate, "start", "", "first day (YYYY-MM-DD)")
	fs.StringVar(&in.EndDate, "end", "", "last day (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.requireUser(); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return err
	}

	return a.mutate(ctx, tripsync.KindCreateTrip, in, func() error {
		trip, err := a.api.CreateTrip(ctx, in)
		if err == nil {
			fmt.Fprintf(a.out, "Created %s (invite code %s)\n", trip.ID, trip.InviteCode)
		}
		return err
	})
}

func cmdJoin(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tripsync join <invite code>")
	}
	if _, err := a.requireUser(); err != nil {
		return err
	}
	code := strings.ToUpper(strings.TrimSpace(args[0]))
	if err := (client.JoinInput{InviteCode: code}).Validate(); err != nil {
		return err
	}

	return a.mutate(ctx, tripsync.KindJoinTrip, tripsync.JoinTripPayload{InviteCode: code}, func() error {
		member, err := a.api.JoinTrip(ctx, code)
		if err == nil {
			fmt.Fprintf(a.out, "Joined trip %s\n", member.TripID)
		}
		return err
	})
}

func cmdWishlist(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tripsync wishlist <trip id>")
	}
	items, err := a.api.ListWishlist(ctx, args[0])
	if err != nil {
		return errors.New(tripsync.Describe(err))
	}
	printWishlist(a, items)
	return nil
}

func printWishlist(a *app, items []model.WishlistItem) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tTITLE\tCATEGORY")
	for _, it := range items {
		mark := "[ ]"
		if it.Completed {
			mark = "[x]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, it.ID, it.Title, it.Category)
	}
	tw.Flush()
}

func cmdWish(ctx context.Context, a *app, args []string) error {
	fs := newFlags("wish")
	var in client.WishlistInput
	fs.StringVar(&in.Category, "category", "", "Attractions, Events, Restaurants or Other")
	fs.StringVar(&in.Description, "desc", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: tripsync wish [-category C] [-desc D] <trip id> <title>")
	}
	tripID := fs.Arg(0)
	in.Title = strings.Join(fs.Args()[1:], " ")
	if err := in.Validate(); err != nil {
		return err
	}

	return a.mutate(ctx, tripsync.KindAddWishlistItem, tripsync.WishlistPayload{TripID: tripID, Item: in}, func() error {
		item, err := a.api.AddWishlistItem(ctx, tripID, in)
		if err == nil {
			fmt.Fprintf(a.out, "Added %q (%s)\n", item.Title, item.Category)
		}
		return err
	})
}

// cmdDone shows the toggled list straight away and puts it back if the
// server rejects the change.
func cmdDone(ctx context.Context, a *app, args []string) error {
	fs := newFlags("done")
	undo := fs.Bool("undo", false, "mark as not completed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: tripsync done [-undo] <trip id> <item id>")
	}
	tripID, itemID := fs.Arg(0), fs.Arg(1)

	items, err := a.api.ListWishlist(ctx, tripID)
	if err != nil {
		return errors.New(tripsync.Describe(err))
	}

	m := tripsync.Mutation[[]model.WishlistItem]{
		Apply: func(current []model.WishlistItem) []model.WishlistItem {
			next := append([]model.WishlistItem(nil), current...)
			for i := range next {
				if next[i].ID == itemID {
					next[i].Completed = !*undo
				}
			}
			return next
		},
		Write: func(ctx context.Context, _ []model.WishlistItem) error {
			_, err := a.api.SetWishlistCompleted(ctx, itemID, !*undo)
			return err
		},
	}
	res := m.Run(ctx, items, nil)
	printWishlist(a, res.Value)
	if res.Reverted {
		return fmt.Errorf("change reverted: %s", tripsync.Describe(res.Err))
	}
	return nil
}

func cmdMemories(ctx context.Context, a *app, args []string) error {
	fs := newFlags("memories")
	date := fs.String("date", "", "only this day (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: tripsync memories [-date YYYY-MM-DD] <trip id>")
	}
	memories, err := a.api.ListMemories(ctx, fs.Arg(0), *date)
	if err != nil {
		return errors.New(tripsync.Describe(err))
	}
	for _, m := range memories {
		fmt.Fprintf(a.out, "%s  %s\n", m.Date, m.Content)
		for _, u := range m.MediaURLs {
			fmt.Fprintf(a.out, "            %s\n", u)
		}
	}
	return nil
}

func cmdMemory(ctx context.Context, a *app, args []string) error {
	fs := newFlags("memory")
	var in client.MemoryInput
	fs.StringVar(&in.Date, "date", time.Now().Format(model.DateLayout), "day (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: tripsync memory -date YYYY-MM-DD <trip id> <text>")
	}
	tripID := fs.Arg(0)
	in.Content = strings.Join(fs.Args()[1:], " ")
	if err := in.Validate(); err != nil {
		return err
	}

	return a.mutate(ctx, tripsync.KindCreateMemory, tripsync.MemoryPayload{TripID: tripID, Memory: in}, func() error {
		memory, err := a.api.CreateMemory(ctx, tripID, in)
		if err == nil {
			fmt.Fprintf(a.out, "Saved memory for %s\n", memory.Date)
		}
		return err
	})
}

func cmdAsk(ctx context.Context, a *app, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: tripsync ask <trip id> <question>")
	}
	answer, err := a.api.Ask(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return errors.New(tripsync.Describe(err))
	}
	fmt.Fprintln(a.out, answer.Text)
	for _, r := range answer.FunctionResults {
		if r.Error != "" {
			fmt.Fprintf(a.out, "  %s: %s\n", r.Name, r.Error)
			continue
		}
		fmt.Fprintf(a.out, "  %s: %s\n", r.Name, r.Result)
	}
	return nil
}

func cmdQueue(ctx context.Context, a *app, args []string) error {
	action := "list"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "list":
		ops := a.queue.Operations()
		if len(ops) == 0 {
			fmt.Fprintln(a.out, "Queue is empty.")
			return nil
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tRETRIES\tLAST TRY\tERROR")
		for _, op := range ops {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
				op.ID, op.Kind, op.Status, op.RetryCount, fmtTime(op.LastRetryAt), op.LastError)
		}
		return tw.Flush()
	case "process":
		a.conn.CheckConnection(ctx, true)
		if a.queue.ProcessQueue(ctx) {
			fmt.Fprintln(a.out, "Queue processed.")
		} else {
			fmt.Fprintln(a.out, "Some operations are still waiting; see `tripsync queue`.")
		}
		return nil
	case "clear":
		a.queue.Clear()
		fmt.Fprintln(a.out, "Queue cleared.")
		return nil
	case "clear-abandoned":
		fmt.Fprintf(a.out, "Removed %d abandoned operations.\n", a.queue.ClearAbandoned())
		return nil
	}
	return fmt.Errorf("unknown queue action %q", action)
}

// mutate sends a change now when online, and queues it when the server
// cannot be reached.
func (a *app) mutate(ctx context.Context, kind string, payload any, send func() error) error {
	if a.online(ctx) {
		err := send()
		if err == nil || !queueable(err) {
			return err
		}
		a.logger.Info("request failed, queueing",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
	id, err := a.queue.Enqueue(kind, payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Offline: queued as %s. It will be sent when you are back online.\n", id)
	return nil
}

func queueable(err error) bool {
	switch tripsync.Classify(err) {
	case tripsync.ClassNetwork, tripsync.ClassTimeout:
		return true
	}
	return false
}
