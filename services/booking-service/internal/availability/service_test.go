package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/blackout"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/cache"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/recurrence"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/testfixtures"
)

var (
	day = testfixtures.MustDate("2025-06-03") // Tuesday
	at  = testfixtures.MustClock
	ptr = testfixtures.Ptr
)

func newTestService(store *testfixtures.Store, now func() time.Time, cfg Config, c *cache.AvailabilityCache) *Service {
	return New(Deps{
		Schedules: store,
		Events:    store,
		Bookings:  store,
		Busy:      store,
		Catalog:   store,
		Blackouts: blackout.NewService(store),
		Cache:     c,
	}, cfg, nil, now)
}

func twoEmployees() *testfixtures.Store {
	return testfixtures.NewStore().
		AddService(model.Service{ID: "svc-1", Name: "Consultation", DurationMinutes: 30}).
		AddRule(model.ScheduleRule{ID: "r1", DaysOfWeek: []int{1, 2, 3, 4, 5}, StartTime: at("09:00"), EndTime: at("11:00"), EmployeeID: "emp-1", EmployeeName: "Ada"}).
		AddRule(model.ScheduleRule{ID: "r2", DaysOfWeek: []int{2}, StartTime: at("09:00"), EndTime: at("10:00"), EmployeeID: "emp-2", EmployeeName: "Grace"})
}

func starts(slots []model.Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.StartTime.String()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSlotsMatchServiceDuration(t *testing.T) {
	store := twoEmployees()
	svc := newTestService(store, testfixtures.NewClock(time.Time{}).Now, Config{}, nil)

	slots, err := svc.GetAvailableSlots(context.Background(), Request{Date: day, EmployeeID: ptr("emp-1"), ServiceID: ptr("svc-1"), Quantity: 1})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	want := []string{"09:00", "09:30", "10:00", "10:30"}
	if got := starts(slots); !equalStrings(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for _, s := range slots {
		if s.DurationMinutes() != 30 {
			t.Fatalf("slot %s lasts %d minutes", s.StartTime, s.DurationMinutes())
		}
		if s.Capacity != 1 {
			t.Fatalf("specific employee slot must have capacity 1, got %d", s.Capacity)
		}
		if s.EmployeeID == nil || *s.EmployeeID != "emp-1" || s.EmployeeName != "Ada" {
			t.Fatalf("unexpected employee on slot: %+v", s)
		}
	}
}

func TestAnyProviderCollapsesByStart(t *testing.T) {
	store := twoEmployees()
	svc := newTestService(store, testfixtures.NewClock(time.Time{}).Now, Config{}, nil)

	slots, err := svc.GetAvailableSlots(context.Background(), Request{Date: day, ServiceID: ptr("svc-1"), Quantity: 1})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 collapsed slots, got %d (%v)", len(slots), starts(slots))
	}
	wantCap := map[string]int{"09:00": 2, "09:30": 2, "10:00": 1, "10:30": 1}
	for _, s := range slots {
		if s.EmployeeID != nil || s.EmployeeName != model.AnyProviderName {
			t.Fatalf("expected any-provider slot, got %+v", s)
		}
		if s.Capacity != wantCap[s.StartTime.String()] {
			t.Fatalf("capacity at %s: expected %d, got %d", s.StartTime, wantCap[s.StartTime.String()], s.Capacity)
		}
	}
}

func TestCollapseAnyProvider(t *testing.T) {
	in := []model.Slot{
		{Date: day, StartTime: at("10:00"), EndTime: at("11:00"), EmployeeID: ptr("emp-1"), Capacity: 1},
		{Date: day, StartTime: at("10:00"), EndTime: at("11:00"), EmployeeID: ptr("emp-2"), Capacity: 1},
		{Date: day, StartTime: at("11:00"), EndTime: at("12:00"), EmployeeID: ptr("emp-1"), Capacity: 1},
	}
	out := CollapseAnyProvider(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(out))
	}
	if out[0].StartTime != at("10:00") || out[0].Capacity != 2 || out[0].EmployeeID != nil {
		t.Fatalf("unexpected first slot: %+v", out[0])
	}
	if out[1].StartTime != at("11:00") || out[1].Capacity != 1 || out[1].EmployeeID != nil {
		t.Fatalf("unexpected second slot: %+v", out[1])
	}
}

func TestMinimumAdvanceIsInclusive(t *testing.T) {
	store := testfixtures.NewStore().
		AddService(model.Service{ID: "svc-1", DurationMinutes: 60}).
		AddRule(model.ScheduleRule{ID: "r1", DaysOfWeek: []int{4}, StartTime: at("09:00"), EndTime: at("12:00"), EmployeeID: "emp-1"})
	now := time.Date(2025, time.December, 24, 10, 0, 0, 0, time.UTC)
	svc := newTestService(store, testfixtures.NewClock(now).Now, Config{MinAdvance: 24 * time.Hour}, nil)

	slots, err := svc.GetAvailableSlots(context.Background(), Request{Date: testfixtures.MustDate("2025-12-25"), ServiceID: ptr("svc-1"), Quantity: 1})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	want := []string{"10:00", "11:00"}
	if got := starts(slots); !equalStrings(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMaximumAdvance(t *testing.T) {
	store := twoEmployees()
	svc := newTestService(store, testfixtures.NewClock(time.Time{}).Now, Config{MaxAdvance: 25 * time.Hour}, nil)

	// now is 2025-06-02 08:00 UTC, so the horizon ends at 09:00 on day.
	slots, err := svc.GetAvailableSlots(context.Background(), Request{Date: day, EmployeeID: ptr("emp-1"), Quantity: 1})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if got := starts(slots); !equalStrings(got, []string{"09:00"}) {
		t.Fatalf("expected only 09:00 inside the horizon, got %v", got)
	}
}

func TestPastDateHasNoSlots(t *testing.T) {
	store := twoEmployees()
	svc := newTestService(store, testfixtures.NewClock(time.Time{}).Now, Config{}, nil)

	slots, err := svc.GetAvailableSlots(context.Background(), Request{Date: testfixtures.MustDate("2025-05-27"), Quantity: 1})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots in the past, got %v", starts(slots))
	}
}

func TestBuffersSurroundSlotsAndBookings(t *testing.T) {
	store := testfixtures.NewStore().
		AddService(model.Service{ID: "svc-b", DurationMinutes: 60, BufferBeforeMinutes: 15, BufferAfterMinutes: 15}).
		AddRule(model.ScheduleRule{ID: "r1", DaysOfWeek: []int{2}, StartTime: at("09:00"), EndTime: at("12:00"), EmployeeID: "emp-1"})
	svc := newTestService(store, testfixtures.NewClock(time.Time{}).Now, Config{}, nil)
	req := Request{Date: day, EmployeeID: ptr("emp-1"), ServiceID: ptr("svc-b"), Quantity: 1}

	slots, err := svc.GetAvailableSlots(context.Background(), req)
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if got := starts(slots); !equalStrings(got, []string{"09:15", "10:15"}) {
		t.Fatalf("expected buffered starts, got %v", got)
	}

	store.AddBooking(model.Booking{ID: "b1", Date: day, StartTime: at("09:15"), EndTime: at("10:15"), EmployeeID: ptr("emp-1"), ServiceID: "svc-b", Quantity: 1, Status: model.StatusConfirmed})
	slots, err = svc.GetAvailableSlots(context.Background(), req)
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("booking buffer should consume the following slot, got %v", starts(slots))
	}
}

func TestBusyIntervalsRemoveOverlappingSlots(t *testing.T) {
	store := testfixtures.NewStore().
		AddRule(model.ScheduleRule{ID: "r1", DaysOfWeek: []int{2}, StartTime: at("09:00"), EndTime: at("12:00"), EmployeeID: "emp-1"}).
		AddBusy(model.BusyInterval{
			EmployeeID: "emp-1",
			Start:      time.Date(2025, time.June, 3, 10, 0, 0, 0, time.UTC),
			End:        time.Date(2025, time.June, 3, 10, 45, 30, 0, time.UTC),
			Source:     "google",
		})
	svc := newTestService(store, testfixtures.NewClock(time.Time{}).Now, Config{}, nil)

	slots, err := svc.GetAvailableSlots(context.Background(), Request{Date: day, EmployeeID: ptr("emp-1"), Quantity: 1})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	want := []string{"09:00", "09:30", "11:00", "11:30"}
	if got := starts(slots); !equalStrings(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestBlackoutScopedToEmployee(t *testing.T) {
	store := twoEmployees().AddBlackout(model.BlackoutPeriod{
		ID: "bo-1", StartDate: day, EndDate: day, EmployeeID: ptr("emp-1"), IsActive: true, Reason: "training",
	})
	svc := newTestService(store, testfixtures.NewClock(time.Time{}).Now, Config{}, nil)

	slots, err := svc.GetAvailableSlots(context.Background(), Request{Date: day, Quantity: 1})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if got := starts(slots); !equalStrings(got, []string{"09:00", "09:30"}) {
		t.Fatalf("expected only emp-2 slots, got %v", got)
	}

	store.AddBlackout(model.BlackoutPeriod{ID: "bo-2", StartDate: day, EndDate: day, IsActive: true, Reason: "holiday"})
	slots, err = svc.GetAvailableSlots(context.Background(), Request{Date: day, Quantity: 1})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("global blackout should remove every slot, got %v", starts(slots))
	}
}

func TestQuantityFiltersOnAggregateCapacity(t *testing.T) {
	store := twoEmployees()
	svc := newTestService(store, testfixtures.NewClock(time.Time{}).Now, Config{}, nil)
	ctx := context.Background()

	slots, err := svc.GetAvailableSlots(ctx, Request{Date: day, ServiceID: ptr("svc-1"), Quantity: 2})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if got := starts(slots); !equalStrings(got, []string{"09:00", "09:30"}) {
		t.Fatalf("expected the two-provider starts, got %v", got)
	}

	slots, err = svc.GetAvailableSlots(ctx, Request{Date: day, EmployeeID: ptr("emp-1"), Quantity: 2})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("a single employee never seats 2, got %v", starts(slots))
	}

	store.AddBooking(model.Booking{ID: "b1", Date: day, StartTime: at("09:00"), EndTime: at("09:30"), ServiceID: "svc-1", Quantity: 1, Status: model.StatusPending})
	slots, err = svc.GetAvailableSlots(ctx, Request{Date: day, ServiceID: ptr("svc-1"), Quantity: 2})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if got := starts(slots); !equalStrings(got, []string{"09:30"}) {
		t.Fatalf("unassigned booking should consume one seat at 09:00, got %v", got)
	}
	for _, s := range slots {
		if s.Capacity < 0 {
			t.Fatalf("negative capacity on %+v", s)
		}
	}
}

func TestCollapsedCapacityCountsUnassignedBookings(t *testing.T) {
	store := twoEmployees().AddBooking(model.Booking{
		ID: "b1", Date: day, StartTime: at("09:00"), EndTime: at("09:30"), ServiceID: "svc-1", Quantity: 1, Status: model.StatusPending,
	})
	svc := newTestService(store, testfixtures.NewClock(time.Time{}).Now, Config{}, nil)

	slots, err := svc.GetAvailableSlots(context.Background(), Request{Date: day, ServiceID: ptr("svc-1"), Quantity: 1})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	caps := map[string]int{}
	for _, s := range slots {
		caps[s.StartTime.String()] = s.Capacity
	}
	if caps["09:00"] != 1 {
		t.Fatalf("two providers less one booked seat should leave 1 at 09:00, got %d", caps["09:00"])
	}
	if caps["09:30"] != 2 {
		t.Fatalf("expected both providers free at 09:30, got %d", caps["09:30"])
	}
}

func TestCollapseAnyProviderCapsAtAggregate(t *testing.T) {
	out := CollapseAnyProvider([]model.Slot{
		{Date: day, StartTime: at("10:00"), EndTime: at("10:30"), EmployeeID: ptr("emp-1"), Capacity: 1},
		{Date: day, StartTime: at("10:00"), EndTime: at("10:30"), EmployeeID: ptr("emp-2"), Capacity: 1},
	})
	if len(out) != 1 || out[0].Capacity != 1 {
		t.Fatalf("expected one slot with capacity 1, got %+v", out)
	}
}

func TestFindSlotsListsEveryFreeEmployee(t *testing.T) {
	svc := newTestService(twoEmployees(), testfixtures.NewClock(time.Time{}).Now, Config{}, nil)
	slots, err := svc.FindSlots(context.Background(), Request{Date: day, ServiceID: ptr("svc-1"), Quantity: 1}, at("09:00"))
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	if len(slots) != 2 || *slots[0].EmployeeID == *slots[1].EmployeeID {
		t.Fatalf("expected both employees, got %+v", slots)
	}
}

func TestAssignedBookingBlocksEmployee(t *testing.T) {
	store := twoEmployees().AddBooking(model.Booking{
		ID: "b1", Date: day, StartTime: at("09:00"), EndTime: at("09:30"), EmployeeID: ptr("emp-1"), ServiceID: "svc-1", Quantity: 1, Status: model.StatusConfirmed,
	})
	svc := newTestService(store, testfixtures.NewClock(time.Time{}).Now, Config{}, nil)

	slots, err := svc.GetAvailableSlots(context.Background(), Request{Date: day, ServiceID: ptr("svc-1"), Quantity: 1})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if slots[0].StartTime != at("09:00") || slots[0].Capacity != 1 {
		t.Fatalf("expected 09:00 with one provider left, got %+v", slots[0])
	}

	store.PutBooking(model.Booking{
		ID: "b1", Date: day, StartTime: at("09:00"), EndTime: at("09:30"), EmployeeID: ptr("emp-1"), ServiceID: "svc-1", Quantity: 1, Status: model.StatusCancelled,
	})
	slots, err = svc.GetAvailableSlots(context.Background(), Request{Date: day, ServiceID: ptr("svc-1"), Quantity: 1})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if slots[0].Capacity != 2 {
		t.Fatalf("cancelled booking must free the slot, got capacity %d", slots[0].Capacity)
	}
}

func TestResultsShiftToRequestedZone(t *testing.T) {
	store := testfixtures.NewStore().
		AddRule(model.ScheduleRule{ID: "r1", DaysOfWeek: []int{2}, StartTime: at("09:00"), EndTime: at("10:00"), EmployeeID: "emp-1", Timezone: "Europe/Berlin"})
	svc := newTestService(store, testfixtures.NewClock(time.Time{}).Now, Config{}, nil)
	ctx := context.Background()

	slots, err := svc.GetAvailableSlots(ctx, Request{Date: day, EmployeeID: ptr("emp-1"), Quantity: 1})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if got := starts(slots); !equalStrings(got, []string{"07:00", "07:30"}) {
		t.Fatalf("expected UTC starts, got %v", got)
	}
	if slots[0].Timezone != "UTC" {
		t.Fatalf("expected UTC zone on output, got %q", slots[0].Timezone)
	}

	slots, err = svc.GetAvailableSlots(ctx, Request{Date: day, EmployeeID: ptr("emp-1"), Quantity: 1, Timezone: "Asia/Tokyo"})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if got := starts(slots); !equalStrings(got, []string{"16:00", "16:30"}) {
		t.Fatalf("expected Tokyo starts, got %v", got)
	}

	_, err = svc.GetAvailableSlots(ctx, Request{Date: day, Quantity: 1, Timezone: "Mars/Olympus_Mons"})
	if err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestRecurringEventAddsAvailability(t *testing.T) {
	store := testfixtures.NewStore().AddEvent(model.Event{
		ID:         "ev-1",
		Date:       testfixtures.MustDate("2025-05-27"),
		StartTime:  at("14:00"),
		EndTime:    at("15:00"),
		EmployeeID: "emp-3",
		Rule: &model.RecurrenceRule{
			Frequency:  model.Weekly,
			Interval:   1,
			Exceptions: []model.Date{testfixtures.MustDate("2025-06-10")},
		},
	})
	svc := newTestService(store, testfixtures.NewClock(time.Time{}).Now, Config{}, nil)
	ctx := context.Background()

	cases := map[string][]string{
		"2025-06-03": {"14:00", "14:30"},
		"2025-06-04": nil,
		"2025-06-10": nil,
		"2025-06-17": {"14:00", "14:30"},
	}
	for date, want := range cases {
		slots, err := svc.GetAvailableSlots(ctx, Request{Date: testfixtures.MustDate(date), EmployeeID: ptr("emp-3"), Quantity: 1})
		if err != nil {
			t.Fatalf("%s: %v", date, err)
		}
		if got := starts(slots); !equalStrings(got, want) {
			t.Fatalf("%s: expected %v, got %v", date, want, got)
		}
	}
}

func TestInvalidRecurrenceIsSkipped(t *testing.T) {
	store := twoEmployees().AddEvent(model.Event{
		ID: "ev-bad", Date: day, StartTime: at("14:00"), EndTime: at("15:00"), EmployeeID: "emp-1",
		Rule: &model.RecurrenceRule{Frequency: "HOURLY"},
	})
	svc := newTestService(store, testfixtures.NewClock(time.Time{}).Now, Config{}, nil)

	slots, err := svc.GetAvailableSlots(context.Background(), Request{Date: day, EmployeeID: ptr("emp-1"), Quantity: 1})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("expected rule slots only, got %v", starts(slots))
	}
	if err := recurrence.Validate(model.RecurrenceRule{Frequency: "HOURLY"}); err == nil {
		t.Fatal("expected HOURLY to be rejected")
	}
}

func TestValidation(t *testing.T) {
	svc := newTestService(twoEmployees(), testfixtures.NewClock(time.Time{}).Now, Config{}, nil)

	_, err := svc.GetAvailableSlots(context.Background(), Request{Date: day, Quantity: 0})
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := verr.FieldErrors["quantity"]; !ok {
		t.Fatalf("expected quantity field error, got %v", verr.FieldErrors)
	}

	_, err = svc.GetAvailableSlots(context.Background(), Request{Date: day, ServiceID: ptr("nope"), Quantity: 1})
	if !errors.As(err, &verr) || verr.FieldErrors["service_id"] == "" {
		t.Fatalf("expected unknown service error, got %v", err)
	}
}

func TestCacheServesRepeatsAndFindSlotReadsLive(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	store := twoEmployees()
	c := cache.NewAvailabilityCache(cache.NewMemoryStore(clock.Now), time.Minute, nil)
	svc := newTestService(store, clock.Now, Config{}, c)
	ctx := context.Background()
	req := Request{Date: day, ServiceID: ptr("svc-1"), Quantity: 1}

	if _, err := svc.GetAvailableSlots(ctx, req); err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	reads := store.ScheduleReads()
	if _, err := svc.GetAvailableSlots(ctx, req); err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if store.ScheduleReads() != reads {
		t.Fatalf("expected a cache hit, schedule reads went %d -> %d", reads, store.ScheduleReads())
	}

	store.AddBooking(model.Booking{ID: "b1", Date: day, StartTime: at("10:00"), EndTime: at("10:30"), EmployeeID: ptr("emp-1"), ServiceID: "svc-1", Quantity: 1, Status: model.StatusConfirmed})
	ok, err := svc.IsSlotAvailable(ctx, req, at("10:00"))
	if err != nil {
		t.Fatalf("IsSlotAvailable: %v", err)
	}
	if ok {
		t.Fatal("FindSlot must see the new booking despite the stale cache")
	}
	if store.ScheduleReads() == reads {
		t.Fatal("FindSlot should bypass the cache")
	}

	c.InvalidateBooking(ctx, day, ptr("emp-1"), "svc-1")
	slots, err := svc.GetAvailableSlots(ctx, req)
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	for _, s := range slots {
		if s.StartTime == at("10:00") {
			t.Fatalf("10:00 should be gone after invalidation, got %+v", s)
		}
	}
}

func TestFindSlotAssignsFreeEmployee(t *testing.T) {
	store := twoEmployees().AddBooking(model.Booking{
		ID: "b1", Date: day, StartTime: at("09:00"), EndTime: at("09:30"), EmployeeID: ptr("emp-1"), ServiceID: "svc-1", Quantity: 1, Status: model.StatusConfirmed,
	})
	svc := newTestService(store, testfixtures.NewClock(time.Time{}).Now, Config{}, nil)

	slot, ok, err := svc.FindSlot(context.Background(), Request{Date: day, ServiceID: ptr("svc-1"), Quantity: 1}, at("09:00"))
	if err != nil || !ok {
		t.Fatalf("expected a free slot, got ok=%v err=%v", ok, err)
	}
	if slot.EmployeeID == nil || *slot.EmployeeID != "emp-2" {
		t.Fatalf("expected emp-2 to be assigned, got %+v", slot)
	}

	_, ok, err = svc.FindSlot(context.Background(), Request{Date: day, EmployeeID: ptr("emp-1"), Quantity: 1}, at("09:15"))
	if err != nil || ok {
		t.Fatalf("09:15 is not on the slot grid, got ok=%v err=%v", ok, err)
	}
}

func TestFindSlotAcrossZones(t *testing.T) {
	store := testfixtures.NewStore().
		AddRule(model.ScheduleRule{ID: "r1", DaysOfWeek: []int{3}, StartTime: at("08:00"), EndTime: at("09:00"), EmployeeID: "emp-1", Timezone: "Asia/Tokyo"})
	svc := newTestService(store, testfixtures.NewClock(time.Time{}).Now, Config{}, nil)

	// 08:00 Wednesday in Tokyo is 23:00 Tuesday UTC.
	slot, ok, err := svc.FindSlot(context.Background(), Request{Date: day, EmployeeID: ptr("emp-1"), Quantity: 1}, at("23:00"))
	if err != nil || !ok {
		t.Fatalf("expected slot, got ok=%v err=%v", ok, err)
	}
	if slot.Date != testfixtures.MustDate("2025-06-04") || slot.StartTime != at("08:00") || slot.Timezone != "Asia/Tokyo" {
		t.Fatalf("expected the native Tokyo slot, got %+v", slot)
	}
}
