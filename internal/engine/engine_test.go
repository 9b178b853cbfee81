package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SmartXchain/piedmont-sub000/internal/config"
	"github.com/SmartXchain/piedmont-sub000/internal/db"
	"github.com/SmartXchain/piedmont-sub000/internal/domain"
	"github.com/SmartXchain/piedmont-sub000/internal/engine"
	"github.com/SmartXchain/piedmont-sub000/internal/migrate"
	"github.com/SmartXchain/piedmont-sub000/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Clock  *time.Time
}

const testCatalog = `
methods:
  - id: clean
    title: Alkaline clean
    tank: Tank 1
    touch: {min: 10, max: 20}
    run: {min: 15, max: 15}
  - id: anodize
    title: Type II anodize
    tank: Tank 4
    touch: {min: 15, max: 15}
    run: {min: 30, max: 30}
  - id: seal
    title: Hot seal
    touch: {min: 10}
  - id: wide
    title: Inspection
    touch: {min: 10, max: 20}
    run: {min: 0, max: 0}
  - id: blank
    title: Masking
routings:
  - id: wo100
    name: Clean, anodize, seal
    steps:
      - {step: 10, method: clean}
      - {step: 20, method: anodize}
      - {step: 30, method: seal}
  - id: inspect
    name: Inspection only
    steps:
      - {step: 10, method: wide}
  - id: empty
    name: No steps
  - id: bare
    name: Unestimated steps
    steps:
      - {step: 10, method: blank}
      - {step: 20, title: Visual check}
resources:
  - {id: tank-4, name: Tank 4, type: tank}
`

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	clock := time.Date(2024, 12, 31, 17, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return clock }
	ctx := context.Background()
	if _, err := eng.ImportCatalog(ctx, []byte(testCatalog), "tester"); err != nil {
		t.Fatalf("import catalog: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, Clock: &clock}
}

func (env testEnv) createOrder(t *testing.T, wo, routing string) domain.Order {
	t.Helper()
	o, err := env.Engine.CreateOrder(env.Ctx, engine.OrderCreateOptions{
		WorkOrder:  wo,
		PartNumber: "PN-" + wo,
		Quantity:   4,
		RoutingID:  routing,
		StartDate:  "2025-01-01",
		ActorID:    "tester",
	})
	if err != nil {
		t.Fatalf("create order %s: %v", wo, err)
	}
	return o
}

func TestCompileScheduleEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, "WO-100", "wo100")
	if o.Status != domain.OrderScheduled {
		t.Fatalf("expected scheduled, got %s", o.Status)
	}
	if o.EstimatedFinishDate == nil || *o.EstimatedFinishDate != "2025-01-01" {
		t.Fatalf("unexpected finish date %v", o.EstimatedFinishDate)
	}
	ops, err := env.Engine.ListOperations(env.Ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct{ start, end string }{
		{"08:00", "08:30"},
		{"08:30", "09:15"},
		{"09:15", "09:25"},
	}
	if len(ops) != len(want) {
		t.Fatalf("expected %d operations, got %d", len(want), len(ops))
	}
	for i, op := range ops {
		if op.Sequence != i+1 {
			t.Fatalf("operation %d has sequence %d", i, op.Sequence)
		}
		if got := op.PlannedStart.Format("15:04"); got != want[i].start {
			t.Fatalf("op %d start %s, want %s", i+1, got, want[i].start)
		}
		if got := op.PlannedEnd.Format("15:04"); got != want[i].end {
			t.Fatalf("op %d end %s, want %s", i+1, got, want[i].end)
		}
		if i > 0 && !ops[i-1].PlannedEnd.Equal(op.PlannedStart) {
			t.Fatalf("gap between op %d and %d", i, i+1)
		}
		if op.Minutes() < 1 {
			t.Fatalf("op %d shorter than a minute", i+1)
		}
	}
}

func TestCompileUnestimatedStepsTakeOneMinute(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, "WO-101", "bare")
	ops, err := env.Engine.ListOperations(env.Ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct{ start, end string }{
		{"08:00", "08:01"},
		{"08:01", "08:02"},
	}
	if len(ops) != len(want) {
		t.Fatalf("expected %d operations, got %d", len(want), len(ops))
	}
	for i, op := range ops {
		if op.Minutes() != 1 {
			t.Fatalf("op %d lasts %d minutes, want 1", i+1, op.Minutes())
		}
		if op.PlannedStart.Format("15:04") != want[i].start || op.PlannedEnd.Format("15:04") != want[i].end {
			t.Fatalf("op %d spans %s-%s", i+1, op.PlannedStart.Format("15:04"), op.PlannedEnd.Format("15:04"))
		}
	}
	if ops[1].MethodID != nil {
		t.Fatalf("step without method got method %s", *ops[1].MethodID)
	}
}

func TestCompileScheduleRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, "WO-1", "wo100")
	_, err := env.Engine.CompileSchedule(env.Ctx, engine.CompileOptions{OrderID: o.ID, ActorID: "tester"})
	var sc engine.StateConflictError
	if !errors.As(err, &sc) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	ops, err := env.Engine.ListOperations(env.Ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 3 {
		t.Fatalf("duplicate compile wrote operations: %d", len(ops))
	}
}

func TestCompileScheduleAnchors(t *testing.T) {
	env := newTestEnv(t)
	o, err := env.Engine.CreateOrder(env.Ctx, engine.OrderCreateOptions{WorkOrder: "WO-2", PartNumber: "P", Quantity: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompileSchedule(env.Ctx, engine.CompileOptions{OrderID: o.ID}); err == nil {
		t.Fatalf("expected error without routing")
	}
	o, err = env.Engine.AttachRouting(env.Ctx, o.ID, "inspect", "tester")
	if err != nil {
		t.Fatalf("attach routing: %v", err)
	}
	ops, err := env.Engine.ListOperations(env.Ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 || !ops[0].PlannedStart.Equal(*env.Clock) {
		t.Fatalf("expected anchor at now, got %+v", ops)
	}
	if ops[0].Minutes() != 15 {
		t.Fatalf("expected mean of 10 and 20, got %d", ops[0].Minutes())
	}

	o2, err := env.Engine.CreateOrder(env.Ctx, engine.OrderCreateOptions{WorkOrder: "WO-3", PartNumber: "P", Quantity: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AttachRouting(env.Ctx, o2.ID, "empty", "tester"); err != nil {
		t.Fatal(err)
	}
	start := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	ops, err = env.Engine.CompileSchedule(env.Ctx, engine.CompileOptions{OrderID: o2.ID, Start: &start})
	if err != nil || len(ops) != 0 {
		t.Fatalf("zero step routing: %v %d", err, len(ops))
	}
	got, _ := env.Engine.GetOrder(env.Ctx, o2.ID)
	if got.Status != domain.OrderPlanned {
		t.Fatalf("zero step compile changed status to %s", got.Status)
	}
}

func TestAttachRoutingCannotSwapScheduledRouting(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, "WO-4", "wo100")
	if _, err := env.Engine.AttachRouting(env.Ctx, o.ID, "wo100", "tester"); err != nil {
		t.Fatalf("re-attaching same routing should be a no-op: %v", err)
	}
	_, err := env.Engine.AttachRouting(env.Ctx, o.ID, "inspect", "tester")
	var sc engine.StateConflictError
	if !errors.As(err, &sc) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAddDelayAccumulates(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, "WO-5", "wo100")
	if _, err := env.Engine.AddDelay(env.Ctx, engine.DelayOptions{OrderID: o.ID, StepNumber: 20, Minutes: 5, Reason: "rack shortage", ActorID: "op"}); err != nil {
		t.Fatal(err)
	}
	d, err := env.Engine.AddDelay(env.Ctx, engine.DelayOptions{OrderID: o.ID, StepNumber: 20, Minutes: 10, Reason: "  rectifier fault ", ActorID: "op"})
	if err != nil {
		t.Fatal(err)
	}
	if d.AddedMinutes != 15 {
		t.Fatalf("expected 15 minutes, got %d", d.AddedMinutes)
	}
	lines := strings.Split(d.Reason, "\n")
	if len(lines) != 2 || lines[0] != "[+5 min @ 2024-12-31 17:00] rack shortage" || lines[1] != "[+10 min @ 2024-12-31 17:00] rectifier fault" {
		t.Fatalf("unexpected notes %q", d.Reason)
	}
	ops, _ := env.Engine.ListOperations(env.Ctx, o.ID)
	if ops[1].PlannedEnd.Format("15:04") != "09:15" {
		t.Fatalf("delay must not move planned operations")
	}
	s, err := env.Engine.Schedule(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, ev := range s.Events {
		if ev.ExtendedProps.OrderID == o.ID && ev.ExtendedProps.StepNumber == 20 {
			found = true
			if !ev.ExtendedProps.IsDelayed || ev.ExtendedProps.DelayMinutes != 15 {
				t.Fatalf("projection missing delay: %+v", ev.ExtendedProps)
			}
		}
	}
	if !found {
		t.Fatalf("step 20 not projected")
	}
}

func TestAddDelayValidation(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, "WO-6", "wo100")
	var ve engine.ValidationError
	cases := []struct {
		name string
		opts engine.DelayOptions
		chk  func(error) bool
	}{
		{"missing order", engine.DelayOptions{StepNumber: 10, Minutes: 5, Reason: "x"}, func(err error) bool { return errors.As(err, &ve) }},
		{"unknown order", engine.DelayOptions{OrderID: "nope", StepNumber: 10, Minutes: 5, Reason: "x"}, func(err error) bool { return errors.Is(err, repo.ErrNotFound) }},
		{"unknown step", engine.DelayOptions{OrderID: o.ID, StepNumber: 99, Minutes: 5, Reason: "x"}, func(err error) bool { return errors.Is(err, repo.ErrNotFound) }},
		{"zero minutes", engine.DelayOptions{OrderID: o.ID, StepNumber: 10, Minutes: 0, Reason: "x"}, func(err error) bool { return errors.As(err, &ve) && ve.Field == "minutes" }},
		{"blank reason", engine.DelayOptions{OrderID: o.ID, StepNumber: 10, Minutes: 5, Reason: "   "}, func(err error) bool { return errors.As(err, &ve) && ve.Field == "reason" }},
	}
	for _, tc := range cases {
		_, err := env.Engine.AddDelay(env.Ctx, tc.opts)
		if err == nil || !tc.chk(err) {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
	delays, err := env.Engine.ListDelays(env.Ctx, o.ID)
	if err != nil || len(delays) != 0 {
		t.Fatalf("rejected delays were written: %v %d", err, len(delays))
	}
}

func TestAddDelayConcurrent(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, "WO-7", "wo100")
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Engine.AddDelay(env.Ctx, engine.DelayOptions{OrderID: o.ID, StepNumber: 10, Minutes: 1, Reason: "queue"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent delay: %v", err)
		}
	}
	d, err := env.Engine.Repo.GetDelay(env.Ctx, o.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if d.AddedMinutes != 8 || strings.Count(d.Reason, "\n") != 7 {
		t.Fatalf("lost updates: %d minutes, %q", d.AddedMinutes, d.Reason)
	}
}

func TestDoneOrderIsImmutable(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, "WO-8", "wo100")
	o, err := env.Engine.UpdateOrderStatus(env.Ctx, engine.StatusUpdateOptions{OrderID: o.ID, Status: "done"})
	if err != nil {
		t.Fatal(err)
	}
	var sc engine.StateConflictError
	if _, err := env.Engine.AddDelay(env.Ctx, engine.DelayOptions{OrderID: o.ID, StepNumber: 10, Minutes: 5, Reason: "late"}); !errors.As(err, &sc) {
		t.Fatalf("expected conflict for delay on done order, got %v", err)
	}
	for _, st := range []string{"hold", "planned", "done"} {
		if _, err := env.Engine.UpdateOrderStatus(env.Ctx, engine.StatusUpdateOptions{OrderID: o.ID, Status: st}); !errors.As(err, &sc) {
			t.Fatalf("done -> %s should conflict, got %v", st, err)
		}
	}
	delays, _ := env.Engine.ListDelays(env.Ctx, o.ID)
	if len(delays) != 0 {
		t.Fatalf("delay written to done order")
	}
	stored, err := env.Engine.GetOrder(env.Ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != domain.OrderDone || stored.CompletedAt == nil {
		t.Fatalf("done order changed after rejected updates: %+v", stored)
	}
	if !stored.CompletedAt.Equal(*o.CompletedAt) {
		t.Fatalf("completed_at moved from %v to %v", *o.CompletedAt, *stored.CompletedAt)
	}
}

func TestStatusCompletionRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, "WO-9", "wo100")
	o, err := env.Engine.UpdateOrderStatus(env.Ctx, engine.StatusUpdateOptions{OrderID: o.ID, Status: "done"})
	if err != nil {
		t.Fatal(err)
	}
	if o.CompletedAt == nil || !o.CompletedAt.Equal(*env.Clock) {
		t.Fatalf("expected completed_at stamp, got %v", o.CompletedAt)
	}
	o, err = env.Engine.UpdateOrderStatus(env.Ctx, engine.StatusUpdateOptions{OrderID: o.ID, Status: "in_progress"})
	if err != nil {
		t.Fatal(err)
	}
	stored, err := env.Engine.GetOrder(env.Ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.CompletedAt != nil || stored.Status != domain.OrderInProgress {
		t.Fatalf("re-open should clear completed_at, got %+v", stored)
	}
}

func TestUpdateOrderStatusRejectsInvalid(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, "WO-10", "wo100")
	var ve engine.ValidationError
	for _, st := range []string{"", "scheduled", "cancelled", "bogus"} {
		if _, err := env.Engine.UpdateOrderStatus(env.Ctx, engine.StatusUpdateOptions{OrderID: o.ID, Status: st}); !errors.As(err, &ve) {
			t.Fatalf("status %q: expected validation error, got %v", st, err)
		}
	}
	if _, err := env.Engine.UpdateOrderStatus(env.Ctx, engine.StatusUpdateOptions{OrderID: "missing", Status: "hold"}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := env.Engine.CancelOrder(env.Ctx, o.ID, "admin"); err != nil {
		t.Fatal(err)
	}
	var sc engine.StateConflictError
	if _, err := env.Engine.UpdateOrderStatus(env.Ctx, engine.StatusUpdateOptions{OrderID: o.ID, Status: "in_progress"}); !errors.As(err, &sc) {
		t.Fatalf("cancelled order should be frozen, got %v", err)
	}
}

func TestOperationStatusDoesNotCascade(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, "WO-11", "wo100")
	res := "tank-4"
	start := time.Date(2025, 1, 1, 8, 5, 0, 0, time.UTC)
	op, err := env.Engine.UpdateOperation(env.Ctx, engine.OperationUpdateOptions{OrderID: o.ID, Sequence: 1, Status: "completed", ResourceID: &res, ActualStart: &start})
	if err != nil {
		t.Fatal(err)
	}
	if op.Status != domain.OperationCompleted || op.ResourceID == nil || *op.ResourceID != "tank-4" {
		t.Fatalf("unexpected operation %+v", op)
	}
	stored, _ := env.Engine.GetOrder(env.Ctx, o.ID)
	if stored.Status != domain.OrderScheduled {
		t.Fatalf("order status changed to %s", stored.Status)
	}
	before := start.Add(-time.Hour)
	if _, err := env.Engine.UpdateOperation(env.Ctx, engine.OperationUpdateOptions{OrderID: o.ID, Sequence: 1, ActualEnd: &before}); err == nil {
		t.Fatalf("expected error for end before start")
	}
	_, err = env.Engine.UpdateOperation(env.Ctx, engine.OperationUpdateOptions{OrderID: o.ID, Sequence: 9, Status: "hold"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !strings.Contains(err.Error(), o.ID+"/9") {
		t.Fatalf("not found error should name the sequence: %v", err)
	}
}

func TestPartStatusIsIndependent(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, "WO-12", "wo100")
	o, err := env.Engine.SetPartStatus(env.Ctx, o.ID, "received", "receiving")
	if err != nil {
		t.Fatal(err)
	}
	if o.PartStatus != domain.PartReceived || o.Status != domain.OrderScheduled {
		t.Fatalf("unexpected order %+v", o)
	}
	if _, err := env.Engine.SetPartStatus(env.Ctx, o.ID, "lost", ""); err == nil {
		t.Fatalf("expected invalid part status")
	}
}

func TestCreateOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	env.createOrder(t, "WO-13", "")
	var ve engine.ValidationError
	bad := []engine.OrderCreateOptions{
		{PartNumber: "P", Quantity: 1},
		{WorkOrder: "WO-X", Quantity: 1},
		{WorkOrder: "WO-X", PartNumber: "P", Quantity: 0},
		{WorkOrder: "WO-X", PartNumber: "P", Quantity: 1, DueDate: "01/02/2025"},
		{WorkOrder: "WO-13", PartNumber: "P", Quantity: 1},
	}
	for i, opts := range bad {
		if _, err := env.Engine.CreateOrder(env.Ctx, opts); !errors.As(err, &ve) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if _, err := env.Engine.CreateOrder(env.Ctx, engine.OrderCreateOptions{WorkOrder: "WO-Y", PartNumber: "P", Quantity: 1, RoutingID: "ghost"}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected routing not found, got %v", err)
	}
}

func TestCreateOrderConcurrentDuplicateWorkOrder(t *testing.T) {
	env := newTestEnv(t)
	const workers = 6
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.Engine.CreateOrder(env.Ctx, engine.OrderCreateOptions{
				WorkOrder: "WO-RACE", PartNumber: "P", Quantity: 1, RoutingID: "wo100",
			})
		}(i)
	}
	wg.Wait()
	created := 0
	for i, err := range errs {
		var ve engine.ValidationError
		switch {
		case err == nil:
			created++
		case errors.As(err, &ve) && ve.Field == "work_order":
		default:
			t.Fatalf("worker %d: expected work_order validation error, got %v", i, err)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one order created, got %d", created)
	}
}

func TestCreateResourceRejectsExistingID(t *testing.T) {
	env := newTestEnv(t)
	var ve engine.ValidationError
	_, err := env.Engine.CreateResource(env.Ctx, engine.ResourceCreateOptions{ID: "tank-4", Name: "Oven 2", Type: "oven"})
	if !errors.As(err, &ve) || ve.Field != "id" {
		t.Fatalf("expected id validation error, got %v", err)
	}
	_, err = env.Engine.CreateResource(env.Ctx, engine.ResourceCreateOptions{Name: "Tank 4", Type: "tank"})
	if !errors.As(err, &ve) || ve.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}
	res, err := env.Engine.Repo.GetResource(env.Ctx, "tank-4")
	if err != nil {
		t.Fatal(err)
	}
	if res.Name != "Tank 4" || res.Type != domain.ResourceType("tank") {
		t.Fatalf("existing resource was rewritten: %+v", res)
	}
}

func TestScheduleProjectionMatchesMaxEstimate(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, "WO-14", "inspect")
	ops, _ := env.Engine.ListOperations(env.Ctx, o.ID)
	if ops[0].Minutes() != 15 {
		t.Fatalf("compiled duration should be the mean, got %d", ops[0].Minutes())
	}
	s, err := env.Engine.Schedule(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Events) != 2 {
		t.Fatalf("expected step and summary events, got %d", len(s.Events))
	}
	start, _ := time.Parse(time.RFC3339, s.Events[0].Start)
	end, _ := time.Parse(time.RFC3339, s.Events[0].End)
	if end.Sub(start) != 20*time.Minute {
		t.Fatalf("projected duration should be the max, got %s", end.Sub(start))
	}
	again, _ := env.Engine.Schedule(env.Ctx)
	if again.Events[0].Start != s.Events[0].Start || again.Events[0].End != s.Events[0].End {
		t.Fatalf("projection not idempotent")
	}
}

func TestCancelledOrdersLeaveSchedule(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, "WO-15", "inspect")
	if _, err := env.Engine.CancelOrder(env.Ctx, o.ID, "admin"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CancelOrder(env.Ctx, o.ID, "admin"); err == nil {
		t.Fatalf("second cancel should conflict")
	}
	s, _ := env.Engine.Schedule(env.Ctx)
	if len(s.Resources) != 0 {
		t.Fatalf("cancelled order still projected")
	}
}

func TestImportCatalogRejectsUnknownMethod(t *testing.T) {
	env := newTestEnv(t)
	doc := "routings:\n  - id: r\n    name: R\n    steps:\n      - {step: 1, method: ghost}\n"
	if _, err := env.Engine.ImportCatalog(env.Ctx, []byte(doc), ""); err == nil {
		t.Fatalf("expected unknown method error")
	}
	doc = "methods:\n  - id: m\n    title: M\n    touch: {min: ten}\n"
	if _, err := env.Engine.ImportCatalog(env.Ctx, []byte(doc), ""); err == nil {
		t.Fatalf("expected bad number error")
	}
}
