package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/npc-mind/internal/clock"
	"github.com/rcliao/npc-mind/internal/llm"
	"github.com/rcliao/npc-mind/internal/model"
	"github.com/rcliao/npc-mind/internal/world"
)

var day1 = time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)

var testWorld = world.NewStatic(
	world.Location{Name: "Home:Kitchen", Objects: []string{"stove", "fridge"}},
	world.Location{Name: "Library:Hall", Objects: []string{"A", "B"}},
)

var persona = Persona{Name: "Mina", Description: "A diligent student.", Goal: "Pass the exam"}

func newTestPlanner(t *testing.T, rules []llm.Rule, opts ...Option) (*Planner, *clock.Manual, *llm.Scripted) {
	t.Helper()
	backend := llm.NewScripted("", rules...)
	gw := llm.NewClient(backend, llm.WithChatPolicy(llm.Policy{Attempts: 1}))
	clk := clock.NewManual(day1)
	return New(gw, clk, persona, testWorld, opts...), clk, backend
}

var twoItemDay = []llm.Rule{
	{Match: "what hour", Reply: "7"},
	{Match: "goals for today", Reply: "1. Study\n2. Rest"},
	{Match: "hourly schedule", Reply: "07:00|wake|Home:Kitchen\n09:00|study|Library:Hall"},
}

func TestParseScheduleTilesDay(t *testing.T) {
	items := ParseSchedule("07:00|wake|Home:Kitchen\n09:00|study|Library:Hall", testWorld.LocationNames(), nil)

	want := []model.PlanItem{
		{StartHour: 7, Duration: 2, Activity: "wake", Location: "Home:Kitchen"},
		{StartHour: 9, Duration: 22, Activity: "study", Location: "Library:Hall"},
	}
	assert.Equal(t, want, items)
	assertTiles(t, items)
}

func TestParseScheduleCleansLines(t *testing.T) {
	resp := `# Schedule
- 09:00 | study | library
07:30 | wake | home:kitchen
25:00 | nonsense | Home:Kitchen
noon | lunch | Home:Kitchen
09:00 | duplicate | Home:Kitchen
22 | sleep | Moon Base
13:00 | only two fields`

	items := ParseSchedule(resp, testWorld.LocationNames(), nil)
	require.Len(t, items, 3)
	assert.Equal(t, model.PlanItem{StartHour: 7, Duration: 2, Activity: "wake", Location: "Home:Kitchen"}, items[0])
	assert.Equal(t, model.PlanItem{StartHour: 9, Duration: 13, Activity: "study", Location: "Library:Hall"}, items[1])
	assert.Equal(t, model.PlanItem{StartHour: 22, Duration: 9, Activity: "sleep", Location: "Moon Base"}, items[2])
	assertTiles(t, items)
}

func TestTileSingleItem(t *testing.T) {
	items := Tile([]model.PlanItem{{StartHour: 8, Activity: "everything"}})
	require.Len(t, items, 1)
	assert.Equal(t, 24, items[0].Duration)
	assert.Nil(t, Tile(nil))
}

func assertTiles(t *testing.T, items []model.PlanItem) {
	t.Helper()
	total := 0
	for i, it := range items {
		assert.Greater(t, it.Duration, 0)
		next := items[(i+1)%len(items)].StartHour
		assert.Equal(t, next, it.EndHour(), "item %d must end where the next begins", i)
		total += it.Duration
	}
	assert.Equal(t, 24, total)
}

func TestCreateDailyPlanAndCurrentActivity(t *testing.T) {
	p, _, backend := newTestPlanner(t, twoItemDay)
	assert.Equal(t, Idle, p.State())

	plan, err := p.CreateDailyPlan(context.Background(), day1)
	require.NoError(t, err)
	assert.Equal(t, 7, plan.WakeHour)
	assert.Equal(t, []string{"Study", "Rest"}, plan.Goals)
	require.Len(t, plan.Schedule, 2)
	assert.Equal(t, PlanReady, p.State())

	prompts := backend.Prompts()
	require.Len(t, prompts, 3)
	assert.Contains(t, prompts[2], "- Home:Kitchen\n- Library:Hall\n")

	tests := []struct {
		hour int
		want string
	}{
		{8, "wake"},
		{10, "study"},
		{5, "study"},
		{7, "wake"},
		{23, "study"},
	}
	for _, tt := range tests {
		item, ok := p.GetCurrentActivity(time.Date(2024, 3, 1, tt.hour, 30, 0, 0, time.UTC))
		require.True(t, ok)
		if item.Activity != tt.want {
			t.Errorf("hour %d: expected %q, got %q", tt.hour, tt.want, item.Activity)
		}
	}
}

type recentStub []model.Memory

func (r recentStub) RetrieveRecent(n int) []model.Memory { return r }

type summaryStub string

func (s summaryStub) Summary() string { return string(s) }

func TestGoalPromptUsesMemoriesAndSummary(t *testing.T) {
	p, _, backend := newTestPlanner(t, twoItemDay,
		WithMemories(recentStub{{Description: "Failed a quiz"}}),
		WithSummaries(summaryStub("Talked about the exam.")))

	_, err := p.CreateDailyPlan(context.Background(), day1)
	require.NoError(t, err)
	goals := backend.Prompts()[1]
	assert.Contains(t, goals, "- Failed a quiz")
	assert.Contains(t, goals, "Talked about the exam.")
	assert.Contains(t, goals, "Pass the exam")
}

func TestShouldReplan(t *testing.T) {
	p, _, _ := newTestPlanner(t, twoItemDay)
	assert.True(t, p.ShouldReplan(day1), "never planned")

	_, err := p.CreateDailyPlan(context.Background(), day1)
	require.NoError(t, err)
	assert.False(t, p.ShouldReplan(day1.Add(10*time.Hour)), "same day")
	assert.True(t, p.ShouldReplan(day1.Add(24*time.Hour)), "next day")
}

func TestCreateDailyPlanDefaults(t *testing.T) {
	p, _, _ := newTestPlanner(t, []llm.Rule{{Match: "", Reply: "ERROR: too many requests"}})

	plan, err := p.CreateDailyPlan(context.Background(), day1)
	require.NoError(t, err)
	assert.Equal(t, DefaultWakeHour, plan.WakeHour)
	assert.Equal(t, DefaultGoals, plan.Goals)
	require.NotEmpty(t, plan.Schedule)
	assert.Equal(t, DefaultWakeHour, plan.Schedule[0].StartHour)
	assertTiles(t, plan.Schedule)
	assert.False(t, p.ShouldReplan(day1))
}

func TestParseWakeHour(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"8", 8},
		{"5", 6},
		{"11", 10},
		{"early", 7},
		{"ERROR: nope", 7},
	}
	for _, tt := range tests {
		if got := ParseWakeHour(tt.in); got != tt.want {
			t.Errorf("ParseWakeHour(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseGoals(t *testing.T) {
	assert.Equal(t, []string{"Study hard", "Call mom", "Sleep"},
		ParseGoals("# Goals\n1. Study hard\n\n- Call mom\n3) Sleep\n"))
	assert.Empty(t, ParseGoals("\n# only a comment\n"))
}

// blockingGateway parks every Complete call until released.
type blockingGateway struct {
	entered chan string
	release chan struct{}
	reply   func(prompt string) string
}

func newBlockingGateway(reply func(string) string) *blockingGateway {
	return &blockingGateway{entered: make(chan string, 16), release: make(chan struct{}), reply: reply}
}

func (g *blockingGateway) Complete(ctx context.Context, prompt string, _ float64, _ int) string {
	g.entered <- prompt
	<-g.release
	return g.reply(prompt)
}

func (g *blockingGateway) Embed(context.Context, string) []float32 { return nil }

func TestCreateDailyPlanInFlightGuard(t *testing.T) {
	gw := newBlockingGateway(func(string) string { return "" })
	p := New(gw, clock.NewManual(day1), persona, testWorld)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := p.CreateDailyPlan(context.Background(), day1)
		assert.NoError(t, err)
	}()
	<-gw.entered

	assert.True(t, p.Planning())
	assert.Equal(t, PlanningDaily, p.State())
	_, err := p.CreateDailyPlan(context.Background(), day1)
	assert.ErrorIs(t, err, ErrPlanningInFlight)
	_, err = p.Decompose(context.Background(), model.PlanItem{Activity: "x", Duration: 1}, nil)
	assert.ErrorIs(t, err, ErrPlanningInFlight)

	close(gw.release)
	wg.Wait()
	assert.False(t, p.Planning())
	assert.Equal(t, PlanReady, p.State())
}

func TestCreateDailyPlanCancelled(t *testing.T) {
	p, _, _ := newTestPlanner(t, twoItemDay)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.CreateDailyPlan(ctx, day1)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, p.Planning())
	assert.True(t, p.ShouldReplan(day1))
	assert.Equal(t, Idle, p.State())
}
