package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-06-02 is a Monday.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

type stubRepo struct {
	professional *Professional
	cfg          *ClinicConfig
	weekly       map[time.Weekday]*WeeklySchedule
	blocks       []Block
	booked       []BookedInterval

	createdBlocks []Block
	deleteResult  bool
}

func (s *stubRepo) GetProfessional(_ context.Context, _, _ uuid.UUID) (*Professional, error) {
	if s.professional == nil {
		return nil, ErrProfessionalNotFound
	}
	return s.professional, nil
}

func (s *stubRepo) GetClinicConfig(_ context.Context, _ uuid.UUID) (*ClinicConfig, error) {
	if s.cfg == nil {
		return nil, ErrClinicConfigMissing
	}
	return s.cfg, nil
}

func (s *stubRepo) GetWeeklySchedule(_ context.Context, _, _ uuid.UUID, weekday time.Weekday) (*WeeklySchedule, error) {
	return s.weekly[weekday], nil
}

func (s *stubRepo) ListBlocksOverlapping(_ context.Context, _, _ uuid.UUID, from, to time.Time) ([]Block, error) {
	var result []Block
	for _, b := range s.blocks {
		if b.StartsAt.Before(to) && from.Before(b.EndsAt) {
			result = append(result, b)
		}
	}
	return result, nil
}

func (s *stubRepo) ListBookedIntervals(_ context.Context, _, _ uuid.UUID, _ time.Time) ([]BookedInterval, error) {
	return s.booked, nil
}

func (s *stubRepo) CreateBlock(_ context.Context, b Block) (uuid.UUID, error) {
	b.ID = uuid.New()
	s.createdBlocks = append(s.createdBlocks, b)
	return b.ID, nil
}

func (s *stubRepo) DeleteBlock(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return s.deleteResult, nil
}

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func openClinicRepo(t *testing.T) *stubRepo {
	t.Helper()
	return &stubRepo{
		professional: &Professional{ID: uuid.New(), TenantID: uuid.New(), Name: "Dr. Souza"},
		cfg: &ClinicConfig{
			DefaultDurationMinutes:  30,
			SlotIntervalMinutes:     15,
			CancellationNoticeHours: 24,
			Hours: map[time.Weekday]OpenHours{
				time.Monday: {Opens: mustTime(t, "08:00"), Closes: mustTime(t, "18:00")},
			},
		},
		weekly: map[time.Weekday]*WeeklySchedule{
			time.Monday: {
				Weekday:   time.Monday,
				Start:     mustTime(t, "09:00"),
				End:       mustTime(t, "17:00"),
				Available: true,
			},
		},
	}
}

func slotStarts(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Start.String()
	}
	return out
}

func TestAvailableSlotsFullDay(t *testing.T) {
	repo := openClinicRepo(t)
	svc := NewService(repo)

	slots, err := svc.AvailableSlots(context.Background(), uuid.New(), uuid.New(), monday)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	// 09:00 through 16:30 every 15 minutes
	assert.Len(t, slots, 31)
	assert.Equal(t, "09:00", slots[0].Start.String())
	assert.Equal(t, "16:30", slots[len(slots)-1].Start.String())
	assert.Equal(t, 30, slots[0].DurationMinutes)
}

func TestAvailableSlotsBoundary(t *testing.T) {
	repo := openClinicRepo(t)
	svc := NewService(repo)

	slots, err := svc.AvailableSlots(context.Background(), uuid.New(), uuid.New(), monday)
	require.NoError(t, err)

	starts := slotStarts(slots)
	// start + duration == schedule end is bookable, one step past is not
	assert.Contains(t, starts, "16:30")
	assert.NotContains(t, starts, "16:45")
}

func TestAvailableSlotsExcludesBookedOverlap(t *testing.T) {
	repo := openClinicRepo(t)
	repo.booked = []BookedInterval{
		{Start: mustTime(t, "10:00"), End: mustTime(t, "10:30")},
	}
	svc := NewService(repo)

	slots, err := svc.AvailableSlots(context.Background(), uuid.New(), uuid.New(), monday)
	require.NoError(t, err)

	starts := slotStarts(slots)
	assert.NotContains(t, starts, "09:45")
	assert.NotContains(t, starts, "10:00")
	assert.NotContains(t, starts, "10:15")
	assert.Contains(t, starts, "09:30")
	assert.Contains(t, starts, "10:30")
}

func TestAvailableSlotsExcludesBlocks(t *testing.T) {
	repo := openClinicRepo(t)
	repo.blocks = []Block{
		{
			StartsAt: mustTime(t, "12:00").At(monday),
			EndsAt:   mustTime(t, "13:00").At(monday),
		},
	}
	svc := NewService(repo)

	slots, err := svc.AvailableSlots(context.Background(), uuid.New(), uuid.New(), monday)
	require.NoError(t, err)

	starts := slotStarts(slots)
	assert.NotContains(t, starts, "11:45")
	assert.NotContains(t, starts, "12:00")
	assert.NotContains(t, starts, "12:45")
	assert.Contains(t, starts, "11:30")
	assert.Contains(t, starts, "13:00")
}

func TestAvailableSlotsDurationOverride(t *testing.T) {
	repo := openClinicRepo(t)
	override := 60
	repo.weekly[time.Monday].DurationMinutes = &override
	svc := NewService(repo)

	slots, err := svc.AvailableSlots(context.Background(), uuid.New(), uuid.New(), monday)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	assert.Equal(t, 60, slots[0].DurationMinutes)
	assert.Equal(t, "16:00", slots[len(slots)-1].Start.String())
}

func TestAvailableSlotsDayOff(t *testing.T) {
	repo := openClinicRepo(t)
	svc := NewService(repo)

	tuesday := monday.AddDate(0, 0, 1)
	slots, err := svc.AvailableSlots(context.Background(), uuid.New(), uuid.New(), tuesday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestAvailableSlotsUnavailableFlag(t *testing.T) {
	repo := openClinicRepo(t)
	repo.weekly[time.Monday].Available = false
	svc := NewService(repo)

	slots, err := svc.AvailableSlots(context.Background(), uuid.New(), uuid.New(), monday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestAvailableSlotsUnknownProfessional(t *testing.T) {
	repo := openClinicRepo(t)
	repo.professional = nil
	svc := NewService(repo)

	_, err := svc.AvailableSlots(context.Background(), uuid.New(), uuid.New(), monday)
	assert.ErrorIs(t, err, ErrProfessionalNotFound)
}

func TestAvailableSlotsMissingConfig(t *testing.T) {
	repo := openClinicRepo(t)
	repo.cfg = nil
	svc := NewService(repo)

	_, err := svc.AvailableSlots(context.Background(), uuid.New(), uuid.New(), monday)
	assert.ErrorIs(t, err, ErrClinicConfigMissing)
}

func TestAvailableSlotsRejectsNonPositiveInterval(t *testing.T) {
	repo := openClinicRepo(t)
	repo.cfg.SlotIntervalMinutes = 0
	svc := NewService(repo)

	done := make(chan error, 1)
	go func() {
		_, err := svc.AvailableSlots(context.Background(), uuid.New(), uuid.New(), monday)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrInvalidClinicConfig)
	case <-time.After(2 * time.Second):
		t.Fatal("AvailableSlots did not terminate with slot interval 0")
	}
}

func TestAvailableSlotsRejectsNonPositiveDefaultDuration(t *testing.T) {
	repo := openClinicRepo(t)
	repo.cfg.DefaultDurationMinutes = -15
	svc := NewService(repo)

	_, err := svc.AvailableSlots(context.Background(), uuid.New(), uuid.New(), monday)
	assert.ErrorIs(t, err, ErrInvalidClinicConfig)

	_, err = svc.DefaultDuration(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrInvalidClinicConfig)
}

func TestIsWithinClinicHours(t *testing.T) {
	repo := openClinicRepo(t)
	svc := NewService(repo)
	ctx := context.Background()

	tests := []struct {
		name string
		date time.Time
		at   string
		want bool
	}{
		{"at opening", monday, "08:00", true},
		{"mid day", monday, "12:30", true},
		{"just before closing", monday, "17:59", true},
		{"at closing", monday, "18:00", false},
		{"before opening", monday, "07:45", false},
		{"closed weekday", monday.AddDate(0, 0, 6), "10:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.IsWithinClinicHours(ctx, uuid.New(), tt.date, mustTime(t, tt.at))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateBlockInvalidRange(t *testing.T) {
	repo := openClinicRepo(t)
	svc := NewService(repo)

	start := mustTime(t, "10:00").At(monday)
	_, err := svc.CreateBlock(context.Background(), uuid.New(), uuid.New(), start, start, nil)
	assert.ErrorIs(t, err, ErrInvalidBlockRange)
	assert.Empty(t, repo.createdBlocks)
}

func TestCreateBlockAllowsStacking(t *testing.T) {
	repo := openClinicRepo(t)
	repo.blocks = []Block{
		{StartsAt: mustTime(t, "09:00").At(monday), EndsAt: mustTime(t, "11:00").At(monday)},
	}
	svc := NewService(repo)

	id, err := svc.CreateBlock(context.Background(), uuid.New(), uuid.New(),
		mustTime(t, "10:00").At(monday), mustTime(t, "12:00").At(monday), nil)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.Len(t, repo.createdBlocks, 1)
}

func TestRemoveBlockIdempotent(t *testing.T) {
	repo := openClinicRepo(t)
	repo.deleteResult = false
	svc := NewService(repo)

	removed, err := svc.RemoveBlock(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestTimeOfDayParseAndFormat(t *testing.T) {
	tod, err := ParseTimeOfDay("09:05")
	require.NoError(t, err)
	assert.Equal(t, "09:05", tod.String())
	assert.Equal(t, "09:35", tod.Add(30).String())

	for _, bad := range []string{"24:00", "10:60", "oops", "10:00xyz", "x10:00", "10:00:00", "10", ""} {
		_, err = ParseTimeOfDay(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
