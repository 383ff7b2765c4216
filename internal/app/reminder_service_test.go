package app

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"sweep_reminder_bot/internal/domain/reminder"
	"sweep_reminder_bot/internal/domain/schedule"
	"sweep_reminder_bot/internal/domain/stream"
	"sweep_reminder_bot/internal/domain/subscriber"
	idb "sweep_reminder_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func civilZone(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load civil zone: %v", err)
	}
	return loc
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("component", "test")
}

type fakeStreamRepo struct {
	streams map[string]stream.NotificationStream
}

func (r *fakeStreamRepo) Upsert(_ context.Context, st *stream.NotificationStream) error {
	r.streams[st.StreamKey] = *st
	return nil
}

func (r *fakeStreamRepo) GetByKey(_ context.Context, key string) (*stream.NotificationStream, error) {
	st, ok := r.streams[key]
	if !ok {
		return nil, idb.ErrStreamNotFound
	}
	return &st, nil
}

func (r *fakeStreamRepo) ListByOwner(_ context.Context, ownerID int64) ([]stream.NotificationStream, error) {
	var out []stream.NotificationStream
	for _, st := range r.streams {
		if st.OwnerID == ownerID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (r *fakeStreamRepo) ListAll(_ context.Context) ([]stream.NotificationStream, error) {
	var out []stream.NotificationStream
	for _, st := range r.streams {
		out = append(out, st)
	}
	return out, nil
}

func (r *fakeStreamRepo) DeleteByKeys(_ context.Context, ownerID int64, keys []string) error {
	for _, k := range keys {
		delete(r.streams, k)
	}
	return nil
}

type fakeStageRepo struct {
	loc     *time.Location
	records []reminder.StageRecord
	nextID  int64
}

func (r *fakeStageRepo) dateKey(t time.Time) string {
	return t.In(r.loc).Format(schedule.DateLayout)
}

func (r *fakeStageRepo) Create(_ context.Context, rec *reminder.StageRecord) error {
	for _, existing := range r.records {
		if existing.StreamKey == rec.StreamKey &&
			r.dateKey(existing.OccurrenceDate) == r.dateKey(rec.OccurrenceDate) &&
			existing.Stage == rec.Stage {
			return idb.ErrDuplicateStageRecord
		}
	}
	r.nextID++
	rec.ID = r.nextID
	r.records = append(r.records, *rec)
	return nil
}

func (r *fakeStageRepo) ListByStreamKey(_ context.Context, key string, since time.Time) ([]reminder.StageRecord, error) {
	var out []reminder.StageRecord
	for _, rec := range r.records {
		if rec.StreamKey == key && !rec.OccurrenceEnd.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeStageRepo) ListByOccurrence(_ context.Context, key string, date time.Time) ([]reminder.StageRecord, error) {
	var out []reminder.StageRecord
	for _, rec := range r.records {
		if rec.StreamKey == key && r.dateKey(rec.OccurrenceDate) == r.dateKey(date) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeStageRepo) AcknowledgeOccurrence(_ context.Context, key string, date time.Time, at time.Time) (int64, error) {
	var affected int64
	for i := range r.records {
		rec := &r.records[i]
		if rec.StreamKey == key && r.dateKey(rec.OccurrenceDate) == r.dateKey(date) && !rec.Acknowledged {
			rec.Acknowledged = true
			rec.AcknowledgedAt.Time, rec.AcknowledgedAt.Valid = at, true
			affected++
		}
	}
	return affected, nil
}

func (r *fakeStageRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []reminder.StageRecord
	var removed int64
	for _, rec := range r.records {
		if rec.OccurrenceEnd.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	r.records = kept
	return removed, nil
}

type fakeSubscriberRepo struct {
	byID map[int64]*subscriber.Subscriber
}

func (r *fakeSubscriberRepo) Create(_ context.Context, sub *subscriber.Subscriber) error { return nil }

func (r *fakeSubscriberRepo) GetByID(_ context.Context, id int64) (*subscriber.Subscriber, error) {
	sub, ok := r.byID[id]
	if !ok {
		return nil, idb.ErrSubscriberNotFound
	}
	return sub, nil
}

func (r *fakeSubscriberRepo) GetByTelegramID(_ context.Context, telegramID int64) (*subscriber.Subscriber, error) {
	for _, sub := range r.byID {
		if sub.TelegramID == telegramID {
			return sub, nil
		}
	}
	return nil, idb.ErrSubscriberNotFound
}

func (r *fakeSubscriberRepo) Update(_ context.Context, sub *subscriber.Subscriber) error { return nil }

func (r *fakeSubscriberRepo) ListActive(_ context.Context) ([]*subscriber.Subscriber, error) {
	return nil, nil
}

func (r *fakeSubscriberRepo) ListAll(_ context.Context) ([]*subscriber.Subscriber, error) {
	return nil, nil
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeTelegramClient struct {
	sent []sentMessage
}

func (c *fakeTelegramClient) SendMessage(chatID int64, text string, _ *telebot.SendOptions) error {
	c.sent = append(c.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

type fixture struct {
	svc      *ReminderServiceImpl
	streams  *fakeStreamRepo
	stages   *fakeStageRepo
	subs     *fakeSubscriberRepo
	telegram *fakeTelegramClient
	loc      *time.Location
	stream   stream.NotificationStream
}

// newFixture wires the service against in-memory fakes with a single active
// subscriber owning one weekly Tuesday 08:00-10:00 stream.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc := civilZone(t)

	sched := schedule.RecurringSchedule{
		DayOfWeek: time.Tuesday,
		StartTime: "08:00",
		EndTime:   "10:00",
		Frequency: schedule.FrequencyWeekly,
	}
	st := stream.NotificationStream{
		ID:         1,
		OwnerID:    7,
		StreamKey:  stream.StreamKey(7, "Guerrero St", sched),
		StreetName: "Guerrero St",
		Schedule:   sched,
		Summary:    "2800-2900 (side A)",
	}

	streams := &fakeStreamRepo{streams: map[string]stream.NotificationStream{st.StreamKey: st}}
	stages := &fakeStageRepo{loc: loc}
	subs := &fakeSubscriberRepo{byID: map[int64]*subscriber.Subscriber{
		7: {ID: 7, TelegramID: 700123, FirstName: "Sam", IsActive: true},
	}}
	tc := &fakeTelegramClient{}

	svc := NewReminderServiceImpl(streams, stages, subs, tc, loc, 90, testLogger())
	return &fixture{svc: svc, streams: streams, stages: stages, subs: subs, telegram: tc, loc: loc, stream: st}
}

func TestProcessDueRemindersIssuesStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 6, 20, 0, 0, 0, f.loc) // night_before window opens

	if err := f.svc.ProcessDueReminders(ctx, now); err != nil {
		t.Fatalf("ProcessDueReminders: %v", err)
	}

	if len(f.stages.records) != 1 {
		t.Fatalf("stage records = %d, want 1", len(f.stages.records))
	}
	rec := f.stages.records[0]
	if rec.Stage != reminder.StageNightBefore {
		t.Errorf("stage = %s, want night_before", rec.Stage)
	}
	if got := rec.OccurrenceDate.In(f.loc).Format(schedule.DateLayout); got != "2025-01-07" {
		t.Errorf("occurrence date = %s, want 2025-01-07", got)
	}

	if len(f.telegram.sent) != 1 {
		t.Fatalf("messages sent = %d, want 1", len(f.telegram.sent))
	}
	if f.telegram.sent[0].chatID != 700123 {
		t.Errorf("chat id = %d, want owner's telegram id", f.telegram.sent[0].chatID)
	}
}

func TestProcessDueRemindersIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Two ticks inside the same night_before window issue one reminder.
	for _, minute := range []int{0, 1} {
		now := time.Date(2025, 1, 6, 20, minute, 0, 0, f.loc)
		if err := f.svc.ProcessDueReminders(ctx, now); err != nil {
			t.Fatalf("ProcessDueReminders: %v", err)
		}
	}

	if len(f.stages.records) != 1 {
		t.Errorf("stage records = %d, want 1", len(f.stages.records))
	}
	if len(f.telegram.sent) != 1 {
		t.Errorf("messages sent = %d, want 1", len(f.telegram.sent))
	}
}

func TestProcessDueRemindersOutsideWindow(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 1, 5, 12, 0, 0, 0, f.loc) // Sunday noon, nothing due

	if err := f.svc.ProcessDueReminders(context.Background(), now); err != nil {
		t.Fatalf("ProcessDueReminders: %v", err)
	}
	if len(f.stages.records) != 0 || len(f.telegram.sent) != 0 {
		t.Errorf("nothing should be issued outside a stage window; records=%d sent=%d", len(f.stages.records), len(f.telegram.sent))
	}
}

func TestProcessDueRemindersSkipsAcknowledgedOccurrence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tue := time.Date(2025, 1, 7, 0, 0, 0, 0, f.loc)

	if err := f.svc.Acknowledge(ctx, 7, f.stream.StreamKey, tue); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	now := time.Date(2025, 1, 7, 7, 0, 0, 0, f.loc) // 1hr window
	if err := f.svc.ProcessDueReminders(ctx, now); err != nil {
		t.Fatalf("ProcessDueReminders: %v", err)
	}
	if len(f.telegram.sent) != 0 {
		t.Errorf("acknowledged occurrence should stay quiet; sent %d messages", len(f.telegram.sent))
	}
}

func TestProcessDueRemindersInactiveOwnerSuppressed(t *testing.T) {
	f := newFixture(t)
	f.subs.byID[7].IsActive = false
	now := time.Date(2025, 1, 6, 20, 0, 0, 0, f.loc)

	if err := f.svc.ProcessDueReminders(context.Background(), now); err != nil {
		t.Fatalf("ProcessDueReminders: %v", err)
	}
	if len(f.stages.records) != 1 {
		t.Errorf("stage record should still be issued; got %d", len(f.stages.records))
	}
	if len(f.telegram.sent) != 0 {
		t.Errorf("inactive owner should not receive messages; sent %d", len(f.telegram.sent))
	}
}

func TestAcknowledge(t *testing.T) {
	tue := func(loc *time.Location) time.Time { return time.Date(2025, 1, 7, 0, 0, 0, 0, loc) }

	t.Run("without issued records inserts acknowledged placeholder", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		if err := f.svc.Acknowledge(ctx, 7, f.stream.StreamKey, tue(f.loc)); err != nil {
			t.Fatalf("Acknowledge: %v", err)
		}
		if len(f.stages.records) != 1 {
			t.Fatalf("records = %d, want 1 placeholder", len(f.stages.records))
		}
		rec := f.stages.records[0]
		if !rec.Acknowledged || !rec.AcknowledgedAt.Valid {
			t.Errorf("placeholder not marked acknowledged: %+v", rec)
		}
		if rec.Stage != reminder.StageNightBefore {
			t.Errorf("placeholder stage = %s, want night_before", rec.Stage)
		}
	})

	t.Run("with issued records flips them", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		now := time.Date(2025, 1, 6, 20, 0, 0, 0, f.loc)
		if err := f.svc.ProcessDueReminders(ctx, now); err != nil {
			t.Fatalf("ProcessDueReminders: %v", err)
		}

		if err := f.svc.Acknowledge(ctx, 7, f.stream.StreamKey, tue(f.loc)); err != nil {
			t.Fatalf("Acknowledge: %v", err)
		}
		if len(f.stages.records) != 1 {
			t.Fatalf("records = %d, want the single issued record", len(f.stages.records))
		}
		if !f.stages.records[0].Acknowledged {
			t.Error("issued record not acknowledged")
		}
	})

	t.Run("repeat acknowledge reports already done", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		if err := f.svc.Acknowledge(ctx, 7, f.stream.StreamKey, tue(f.loc)); err != nil {
			t.Fatalf("first Acknowledge: %v", err)
		}
		if err := f.svc.Acknowledge(ctx, 7, f.stream.StreamKey, tue(f.loc)); !errors.Is(err, ErrAlreadyAcknowledged) {
			t.Errorf("second Acknowledge error = %v, want ErrAlreadyAcknowledged", err)
		}
	})

	t.Run("foreign stream is forbidden", func(t *testing.T) {
		f := newFixture(t)
		if err := f.svc.Acknowledge(context.Background(), 99, f.stream.StreamKey, tue(f.loc)); !errors.Is(err, ErrNotStreamOwner) {
			t.Errorf("error = %v, want ErrNotStreamOwner", err)
		}
	})

	t.Run("unknown stream is not found", func(t *testing.T) {
		f := newFixture(t)
		if err := f.svc.Acknowledge(context.Background(), 7, "deadbeefdeadbeef", tue(f.loc)); !errors.Is(err, ErrStreamNotFound) {
			t.Errorf("error = %v, want ErrStreamNotFound", err)
		}
	})
}

func TestCleanupExpiredRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 4, 0, 0, 0, f.loc)

	old := time.Date(2025, 1, 7, 0, 0, 0, 0, f.loc)
	recent := time.Date(2025, 5, 27, 0, 0, 0, 0, f.loc)
	for _, date := range []time.Time{old, recent} {
		rec := &reminder.StageRecord{
			OwnerID:         7,
			StreamKey:       f.stream.StreamKey,
			OccurrenceDate:  date,
			OccurrenceStart: date.Add(8 * time.Hour),
			OccurrenceEnd:   date.Add(10 * time.Hour),
			Stage:           reminder.StageNightBefore,
			IssuedAt:        date,
		}
		if err := f.stages.Create(ctx, rec); err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}

	if err := f.svc.CleanupExpiredRecords(ctx, now); err != nil {
		t.Fatalf("CleanupExpiredRecords: %v", err)
	}
	if len(f.stages.records) != 1 {
		t.Fatalf("records after cleanup = %d, want 1", len(f.stages.records))
	}
	if got := f.stages.records[0].OccurrenceDate; !got.Equal(recent) {
		t.Errorf("surviving record = %v, want the recent one", got)
	}
}

func TestStageMessage(t *testing.T) {
	tests := []struct {
		stage reminder.Stage
		want  string
	}{
		{reminder.StageNightBefore, "Street cleaning tomorrow on Guerrero St, 2800-2900 (side A), 08:00-10:00. Plan to move your car tonight or early in the morning."},
		{reminder.Stage1Hour, "Street cleaning on Guerrero St, 2800-2900 (side A), starts in 1 hour (08:00-10:00). Time to move your car."},
		{reminder.Stage30Min, "Street cleaning on Guerrero St, 2800-2900 (side A), starts in 30 minutes (08:00-10:00). Move your car now."},
		{reminder.Stage10Min, "LAST CALL: street cleaning on Guerrero St, 2800-2900 (side A), starts in 10 minutes (08:00-10:00)!"},
	}
	for _, tt := range tests {
		if got := StageMessage("Guerrero St", "2800-2900 (side A)", "08:00-10:00", tt.stage); got != tt.want {
			t.Errorf("StageMessage(%s) = %q, want %q", tt.stage, got, tt.want)
		}
	}
}
