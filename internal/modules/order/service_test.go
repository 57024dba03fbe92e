// README: Lifecycle tests: transition table, happy path, races, sweeper.
package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"laoyou/internal/modules/address"
	"laoyou/internal/modules/dispatch"
	"laoyou/internal/modules/fee"
	"laoyou/internal/modules/payment"
	"laoyou/internal/types"
)

var (
	testStart = types.Location{Lat: 31.2304, Lng: 121.4737, Address: "上海市黄浦区南京东路123号"}
	testEnd   = types.Location{Lat: 31.2497, Lng: 121.4559, Address: "上海市静安区华山医院"}
)

type fixedResolver struct{}

func (fixedResolver) Resolve(_ context.Context, _ types.ID, ref address.Ref) (types.Location, error) {
	if ref.Kind == address.RefManual {
		return ref.Manual, nil
	}
	if ref.RefID == "end" {
		return testEnd, nil
	}
	return testStart, nil
}

type testEnv struct {
	store   *MemStore
	svc     *Service
	now     time.Time
	charges []payment.Charge
	mu      sync.Mutex
}

func newTestEnv(t *testing.T, finder dispatch.DriverFinder) *testEnv {
	t.Helper()
	env := &testEnv{
		store: NewMemStore(),
		now:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	if finder == nil {
		finder = dispatch.FinderFunc(func(context.Context, dispatch.Request) (types.ID, error) {
			return "drv-1", nil
		})
	}
	rates := fee.Rates{BaseFee: 10, PerKm: 2.3, PerMin: 0.5, ElderlySurcharge: 5, EstimateMinutes: 10}
	seq := 0
	env.svc = NewService(Deps{
		Store:    env.store,
		Fees:     fee.NewEngine(rates, fee.ElderlyDiscount(3)),
		Resolver: fixedResolver{},
		Finder:   finder,
		Payments: payment.NotifierFunc(func(_ context.Context, c payment.Charge) error {
			env.mu.Lock()
			env.charges = append(env.charges, c)
			env.mu.Unlock()
			return nil
		}),
		Clock: func() time.Time { return env.now },
		NewID: func() types.ID {
			seq++
			return types.ID(fmt.Sprintf("ord-%d", seq))
		},
	})
	return env
}

func (e *testEnv) create(t *testing.T) *Order {
	t.Helper()
	o, err := e.svc.Create(context.Background(), CreateCommand{
		UserID:   "user-1",
		StartRef: address.Ref{Kind: address.RefSaved, RefID: "start"},
		EndRef:   address.Ref{Kind: address.RefSaved, RefID: "end"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return o
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPendingDispatch, StatusDispatched, true},
		{StatusPendingDispatch, StatusCanceled, true},
		{StatusPendingDispatch, StatusExpired, true},
		{StatusPendingDispatch, StatusDriverAccepted, false},
		{StatusDispatched, StatusDriverAccepted, true},
		{StatusDispatched, StatusExpired, true},
		{StatusDispatched, StatusPickedUp, false},
		{StatusDriverAccepted, StatusPickedUp, true},
		{StatusDriverAccepted, StatusCanceled, true},
		{StatusDriverAccepted, StatusExpired, false},
		{StatusPickedUp, StatusCompleted, true},
		{StatusPickedUp, StatusCanceled, true},
		{StatusCompleted, StatusCanceled, false},
		{StatusCanceled, StatusDispatched, false},
		{StatusExpired, StatusDispatched, false},
		{StatusFailed, StatusDispatched, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestHappyPathLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	o := env.create(t)
	if o.Status != StatusPendingDispatch {
		t.Fatalf("status = %s, want pending_dispatch", o.Status)
	}
	if o.Fee.TotalFee <= 0 {
		t.Fatalf("estimate total = %v, want > 0", o.Fee.TotalFee)
	}
	if !o.DeadlineAt.Equal(env.now.Add(600 * time.Second)) {
		t.Fatalf("deadline = %v, want created + 600s", o.DeadlineAt)
	}

	driverID, err := env.svc.Dispatch(ctx, o.ID)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if driverID != "drv-1" {
		t.Fatalf("driver = %s, want drv-1", driverID)
	}

	env.now = env.now.Add(time.Minute)
	if err := env.svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "drv-1", DriverName: "王师傅", LicensePlate: "沪A12345"}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	env.now = env.now.Add(3 * time.Minute)
	if err := env.svc.PickUp(ctx, PickUpCommand{OrderID: o.ID, DriverID: "drv-1"}); err != nil {
		t.Fatalf("pickup: %v", err)
	}

	env.now = env.now.Add(22 * time.Minute)
	done, err := env.svc.Complete(ctx, CompleteCommand{OrderID: o.ID, DriverID: "drv-1", DistanceKm: 8.4, DurationMin: 22})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", done.Status)
	}
	// 10 + 8.4*2.3 + 22*0.5 = 40.32; no elderly assistance booked, so neither
	// the surcharge nor the discount applies.
	if done.Fee.TotalFee != 40.32 {
		t.Fatalf("settled total = %v, want 40.32", done.Fee.TotalFee)
	}
	if done.Fee.DiscountFee != 0 {
		t.Fatalf("discount = %v, non-elderly ride must pay full fare", done.Fee.DiscountFee)
	}
	if done.PayStatus != "unpaid" {
		t.Fatalf("pay status = %q, want unpaid", done.PayStatus)
	}
	if done.DriverName != "王师傅" || done.LicensePlate != "沪A12345" {
		t.Fatalf("driver identity not recorded: %+v", done)
	}
	if done.AcceptedAt == nil || done.PickedUpAt == nil || done.CompletedAt == nil {
		t.Fatalf("missing lifecycle timestamps: %+v", done)
	}
	if !done.CompletedAt.After(*done.PickedUpAt) {
		t.Fatalf("completed_at %v not after picked_up_at %v", done.CompletedAt, done.PickedUpAt)
	}

	env.mu.Lock()
	defer env.mu.Unlock()
	if len(env.charges) != 1 {
		t.Fatalf("charges = %d, want 1", len(env.charges))
	}
	if env.charges[0].Amount != 40.32 || env.charges[0].PayerID != "user-1" {
		t.Fatalf("charge = %+v", env.charges[0])
	}
}

func TestElderlyRideSettlement(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	o, err := env.svc.Create(ctx, CreateCommand{
		UserID:             "user-1",
		StartRef:           address.Ref{Kind: address.RefSaved, RefID: "start"},
		EndRef:             address.Ref{Kind: address.RefSaved, RefID: "end"},
		NeedElderlyService: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	env.svc.Dispatch(ctx, o.ID)
	env.svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "drv-1"})
	env.svc.PickUp(ctx, PickUpCommand{OrderID: o.ID, DriverID: "drv-1"})

	done, err := env.svc.Complete(ctx, CompleteCommand{OrderID: o.ID, DriverID: "drv-1", DistanceKm: 8.4, DurationMin: 22})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	// 40.32 + 5 surcharge - 3 elderly discount
	if done.Fee.ExtraFee != 5 || done.Fee.DiscountFee != 3 {
		t.Fatalf("breakdown = %+v, want surcharge 5 and discount 3", done.Fee)
	}
	if done.Fee.TotalFee != 42.32 {
		t.Fatalf("settled total = %v, want 42.32", done.Fee.TotalFee)
	}
}

func TestDispatchNoDriverMarksFailed(t *testing.T) {
	env := newTestEnv(t, dispatch.FinderFunc(func(context.Context, dispatch.Request) (types.ID, error) {
		return "", dispatch.ErrNoDriver
	}))
	ctx := context.Background()

	o := env.create(t)
	_, err := env.svc.Dispatch(ctx, o.ID)
	if !errors.Is(err, dispatch.ErrNoDriver) {
		t.Fatalf("err = %v, want ErrNoDriver", err)
	}

	got, _ := env.svc.Get(ctx, o.ID)
	if got.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
}

func TestDispatchFromWrongState(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	o := env.create(t)
	if err := env.svc.Cancel(ctx, CancelCommand{OrderID: o.ID, Actor: "user", ActorID: "user-1", Reason: "不去了"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := env.svc.Dispatch(ctx, o.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestConcurrentAcceptSingleWinner(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	o := env.create(t)
	if _, err := env.svc.Dispatch(ctx, o.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	const drivers = 8
	var wg sync.WaitGroup
	errs := make([]error, drivers)
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.svc.Accept(ctx, AcceptCommand{
				OrderID:  o.ID,
				DriverID: types.ID(fmt.Sprintf("drv-%d", i)),
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	var winner int
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
			winner = i
		case errors.Is(err, ErrConflict):
			// Losers all see "order already taken".
		default:
			t.Fatalf("driver %d: unexpected error %v", i, err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}

	got, _ := env.svc.Get(ctx, o.ID)
	if got.Status != StatusDriverAccepted {
		t.Fatalf("status = %s, want driver_accepted", got.Status)
	}
	if got.DriverID != types.ID(fmt.Sprintf("drv-%d", winner)) {
		t.Fatalf("driver_id = %s, want winner drv-%d", got.DriverID, winner)
	}
}

func TestAcceptAfterWinnerConflicts(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	o := env.create(t)
	env.svc.Dispatch(ctx, o.ID)
	if err := env.svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "drv-1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Whether mid-trip or done, a taken ride reads as a conflict.
	if err := env.svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "drv-2"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("accept on taken order: err = %v, want ErrConflict", err)
	}
	env.svc.PickUp(ctx, PickUpCommand{OrderID: o.ID, DriverID: "drv-1"})
	if err := env.svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "drv-2"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("accept on picked-up order: err = %v, want ErrConflict", err)
	}

	// A canceled order is a dead ride, not a taken one.
	o2 := env.create(t)
	env.svc.Cancel(ctx, CancelCommand{OrderID: o2.ID, Actor: "user", ActorID: "user-1"})
	if err := env.svc.Accept(ctx, AcceptCommand{OrderID: o2.ID, DriverID: "drv-2"}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("accept on canceled order: err = %v, want ErrInvalidState", err)
	}
}

func TestPickUpRequiresAssignedDriver(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	o := env.create(t)
	env.svc.Dispatch(ctx, o.ID)
	if err := env.svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "drv-1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := env.svc.PickUp(ctx, PickUpCommand{OrderID: o.ID, DriverID: "drv-9"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if err := env.svc.PickUp(ctx, PickUpCommand{OrderID: o.ID, DriverID: "drv-1"}); err != nil {
		t.Fatalf("pickup by assigned driver: %v", err)
	}
}

func TestCompleteRejectsNegativeMeasurements(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	o := env.create(t)
	env.svc.Dispatch(ctx, o.ID)
	env.svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "drv-1"})
	env.svc.PickUp(ctx, PickUpCommand{OrderID: o.ID, DriverID: "drv-1"})

	if _, err := env.svc.Complete(ctx, CompleteCommand{OrderID: o.ID, DriverID: "drv-1", DistanceKm: -1, DurationMin: 10}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}
	got, _ := env.svc.Get(ctx, o.ID)
	if got.Status != StatusPickedUp {
		t.Fatalf("status = %s, rejected settlement must not advance the order", got.Status)
	}
}

func TestCancelStates(t *testing.T) {
	ctx := context.Background()

	t.Run("pending order cancels", func(t *testing.T) {
		env := newTestEnv(t, nil)
		o := env.create(t)
		if err := env.svc.Cancel(ctx, CancelCommand{OrderID: o.ID, Actor: "user", ActorID: "user-1", Reason: "plans changed"}); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		got, _ := env.svc.Get(ctx, o.ID)
		if got.Status != StatusCanceled || got.Cancelor != "user" || got.CancelReason != "plans changed" {
			t.Fatalf("got %+v", got)
		}
		if got.CanceledAt == nil {
			t.Fatal("canceled_at not stamped")
		}
	})

	t.Run("in-trip order cancels", func(t *testing.T) {
		env := newTestEnv(t, nil)
		o := env.create(t)
		env.svc.Dispatch(ctx, o.ID)
		env.svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "drv-1"})
		env.svc.PickUp(ctx, PickUpCommand{OrderID: o.ID, DriverID: "drv-1"})
		if err := env.svc.Cancel(ctx, CancelCommand{OrderID: o.ID, Actor: "driver", ActorID: "drv-1", Reason: "rider unwell"}); err != nil {
			t.Fatalf("cancel: %v", err)
		}
	})

	t.Run("terminal order refuses", func(t *testing.T) {
		env := newTestEnv(t, nil)
		o := env.create(t)
		env.svc.Dispatch(ctx, o.ID)
		env.svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "drv-1"})
		env.svc.PickUp(ctx, PickUpCommand{OrderID: o.ID, DriverID: "drv-1"})
		if _, err := env.svc.Complete(ctx, CompleteCommand{OrderID: o.ID, DriverID: "drv-1", DistanceKm: 5, DurationMin: 12}); err != nil {
			t.Fatalf("complete: %v", err)
		}

		before, _ := env.svc.Get(ctx, o.ID)
		if err := env.svc.Cancel(ctx, CancelCommand{OrderID: o.ID, Actor: "user", ActorID: "user-1"}); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("err = %v, want ErrInvalidState", err)
		}
		after, _ := env.svc.Get(ctx, o.ID)
		if after.Status != before.Status || !after.CompletedAt.Equal(*before.CompletedAt) {
			t.Fatal("refused cancel must not mutate the order")
		}
	})
}

func TestGetUnknownOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("expires stale waiting orders", func(t *testing.T) {
		env := newTestEnv(t, nil)
		stale := env.create(t)
		env.svc.Dispatch(ctx, stale.ID)
		fresh := env.create(t)

		n, err := env.svc.SweepExpired(ctx, env.now.Add(601*time.Second))
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if n != 2 {
			t.Fatalf("expired = %d, want 2", n)
		}
		for _, id := range []types.ID{stale.ID, fresh.ID} {
			got, _ := env.svc.Get(ctx, id)
			if got.Status != StatusExpired {
				t.Fatalf("order %s status = %s, want expired", id, got.Status)
			}
		}
	})

	t.Run("deadline not reached is left alone", func(t *testing.T) {
		env := newTestEnv(t, nil)
		o := env.create(t)
		n, err := env.svc.SweepExpired(ctx, env.now.Add(300*time.Second))
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if n != 0 {
			t.Fatalf("expired = %d, want 0", n)
		}
		got, _ := env.svc.Get(ctx, o.ID)
		if got.Status != StatusPendingDispatch {
			t.Fatalf("status = %s, want pending_dispatch", got.Status)
		}
	})

	t.Run("accepted order survives the sweep", func(t *testing.T) {
		env := newTestEnv(t, nil)
		o := env.create(t)
		env.svc.Dispatch(ctx, o.ID)
		env.svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "drv-1"})

		n, err := env.svc.SweepExpired(ctx, env.now.Add(time.Hour))
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if n != 0 {
			t.Fatalf("expired = %d, want 0", n)
		}
		got, _ := env.svc.Get(ctx, o.ID)
		if got.Status != StatusDriverAccepted {
			t.Fatalf("status = %s, want driver_accepted", got.Status)
		}
	})
}

func TestSweepRacesAccept(t *testing.T) {
	ctx := context.Background()
	late := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	// Run the race repeatedly; whichever side wins, the order must land in
	// exactly one of driver_accepted or expired with no error surfacing.
	for i := 0; i < 20; i++ {
		env := newTestEnv(t, nil)
		o := env.create(t)
		if _, err := env.svc.Dispatch(ctx, o.ID); err != nil {
			t.Fatalf("dispatch: %v", err)
		}

		var wg sync.WaitGroup
		var acceptErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			acceptErr = env.svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "drv-1"})
		}()
		go func() {
			defer wg.Done()
			if _, err := env.svc.SweepExpired(ctx, late); err != nil {
				t.Errorf("sweep: %v", err)
			}
		}()
		wg.Wait()

		got, _ := env.svc.Get(ctx, o.ID)
		switch got.Status {
		case StatusDriverAccepted:
			if acceptErr != nil {
				t.Fatalf("winner accept returned %v", acceptErr)
			}
		case StatusExpired:
			if acceptErr == nil {
				t.Fatal("accept reported success on an expired order")
			}
			if !errors.Is(acceptErr, ErrConflict) && !errors.Is(acceptErr, ErrInvalidState) {
				t.Fatalf("losing accept err = %v", acceptErr)
			}
		default:
			t.Fatalf("status = %s, want driver_accepted or expired", got.Status)
		}
	}
}

func TestEventsAudit(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	o := env.create(t)
	env.svc.Dispatch(ctx, o.ID)
	env.svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "drv-1"})

	var events []Event
	for _, e := range env.store.Events() {
		if e.OrderID == o.ID {
			events = append(events, e)
		}
	}
	want := []struct{ from, to Status }{
		{StatusNone, StatusPendingDispatch},
		{StatusPendingDispatch, StatusDispatched},
		{StatusDispatched, StatusDriverAccepted},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %d, want %d", len(events), len(want))
	}
	for i, w := range want {
		if events[i].FromStatus != w.from || events[i].ToStatus != w.to {
			t.Fatalf("event %d = %s->%s, want %s->%s", i, events[i].FromStatus, events[i].ToStatus, w.from, w.to)
		}
	}
}
