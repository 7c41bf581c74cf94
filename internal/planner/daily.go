package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rcliao/npc-mind/internal/llm"
	"github.com/rcliao/npc-mind/internal/model"
	"github.com/rcliao/npc-mind/internal/world"
)

// Wake hour bounds.
const (
	MinWakeHour     = 6
	MaxWakeHour     = 10
	DefaultWakeHour = 7
)

// DefaultGoals are used when the model's goal list cannot be parsed.
var DefaultGoals = []string{
	"Spend the day in a planned way",
	"Focus on studies",
	"Take adequate rest",
	"Keep up social relationships",
}

const wakePrompt = `You are %s. %s
What hour do you usually wake up? Answer with a single number between %d and %d.`

const goalsPrompt = `You are %s. %s
Your long-term goal: %s
You woke up at %02d:00.

Recent memories:
%s
Recent conversations: %s

List 4 to 6 short goals for today, one per line.`

const schedulePrompt = `You are %s. %s
You wake up at %02d:00. Today you want to:
%s
Write an hourly schedule for today, starting at %02d:00.
Use only these locations, spelled exactly as written:
%s
Write one line per entry in the form "HH:MM | activity | location", in time order, and include when you go to sleep.`

// CreateDailyPlan asks the model for a wake hour, goals and an hourly
// schedule, in that order. A call made while another is running returns
// ErrPlanningInFlight and changes nothing. If ctx is cancelled midway the
// partial plan is discarded and ctx.Err() returned.
func (p *Planner) CreateDailyPlan(ctx context.Context, now time.Time) (DailyPlan, error) {
	p.mu.Lock()
	if p.planning {
		p.mu.Unlock()
		p.logger.Warn("daily plan requested while one is in flight, ignoring")
		return DailyPlan{}, ErrPlanningInFlight
	}
	p.planning = true
	prev := p.state
	p.state = PlanningDaily
	p.mu.Unlock()

	abandon := func(err error) (DailyPlan, error) {
		p.mu.Lock()
		p.planning = false
		p.state = prev
		p.mu.Unlock()
		p.logger.Warn("daily plan abandoned", "err", err)
		return DailyPlan{}, err
	}

	wake := p.wakeHour(ctx)
	if err := ctx.Err(); err != nil {
		return abandon(err)
	}
	goals := p.dailyGoals(ctx, wake)
	if err := ctx.Err(); err != nil {
		return abandon(err)
	}
	locations := p.locations()
	schedule := p.hourlySchedule(ctx, wake, goals, locations)
	if err := ctx.Err(); err != nil {
		return abandon(err)
	}

	plan := DailyPlan{Date: now, WakeHour: wake, Goals: goals, Schedule: schedule}
	p.mu.Lock()
	p.plan = &plan
	p.planning = false
	p.state = PlanReady
	p.mu.Unlock()

	p.logger.Info("daily plan created", "date", now.Format("2006-01-02"), "wake", wake,
		"goals", len(goals), "entries", len(schedule))
	return plan.clone(), nil
}

func (p *Planner) wakeHour(ctx context.Context) int {
	resp := p.gw.Complete(ctx, fmt.Sprintf(wakePrompt, p.persona.Name, p.persona.Description, MinWakeHour, MaxWakeHour), 0.1, 10)
	return ParseWakeHour(resp)
}

// ParseWakeHour reads a wake hour clamped to [6,10], defaulting to 7.
func ParseWakeHour(resp string) int {
	n, ok := llm.LeadingInt(resp)
	if !ok {
		return DefaultWakeHour
	}
	if n < MinWakeHour {
		return MinWakeHour
	}
	if n > MaxWakeHour {
		return MaxWakeHour
	}
	return n
}

func (p *Planner) dailyGoals(ctx context.Context, wake int) []string {
	var recent strings.Builder
	if p.memories != nil {
		for _, m := range p.memories.RetrieveRecent(5) {
			fmt.Fprintf(&recent, "- %s\n", m.Description)
		}
	}
	if recent.Len() == 0 {
		recent.WriteString("- nothing in particular\n")
	}
	summary := "none"
	if p.summaries != nil {
		summary = p.summaries.Summary()
	}
	goal := p.persona.Goal
	if goal == "" {
		goal = "live a good day"
	}

	prompt := fmt.Sprintf(goalsPrompt, p.persona.Name, p.persona.Description, goal, wake, recent.String(), summary)
	goals := ParseGoals(p.gw.Complete(ctx, prompt, 0.4, 200))
	if len(goals) == 0 {
		p.logger.Warn("no goals parsed, using defaults")
		return append([]string(nil), DefaultGoals...)
	}
	return goals
}

// ParseGoals reads one goal per line, dropping blank and comment lines and
// list markers.
func ParseGoals(resp string) []string {
	var goals []string
	for _, line := range llm.Lines(resp) {
		if g := llm.StripEnumeration(line); g != "" {
			goals = append(goals, g)
		}
	}
	return goals
}

func (p *Planner) locations() []string {
	var names []string
	if p.world != nil {
		names = p.world.LocationNames()
	}
	if len(names) == 0 {
		p.logger.Warn("no locations available, using placeholder", "placeholder", world.UnknownLocation)
		return []string{world.UnknownLocation}
	}
	return names
}

func (p *Planner) hourlySchedule(ctx context.Context, wake int, goals, locations []string) []model.PlanItem {
	prompt := fmt.Sprintf(schedulePrompt, p.persona.Name, p.persona.Description, wake,
		bulletList(goals), wake, bulletList(locations))
	items := ParseSchedule(p.gw.Complete(ctx, prompt, 0.5, 500), locations, p.logger)
	if len(items) == 0 {
		p.logger.Warn("no schedule parsed, using default schedule")
		return DefaultSchedule(wake, goals, locations)
	}
	return items
}

func bulletList(items []string) string {
	var sb strings.Builder
	for _, it := range items {
		fmt.Fprintf(&sb, "- %s\n", it)
	}
	return sb.String()
}

// ParseSchedule reads "hour | activity | location" lines. Lines without a
// valid hour (0-23) or activity are dropped. Locations are mapped onto
// known names where possible. The result is ordered by hour, keeps the first
// entry for a repeated hour, and tiles the day.
func ParseSchedule(resp string, locations []string, logger *slog.Logger) []model.PlanItem {
	if logger == nil {
		logger = slog.Default()
	}
	var items []model.PlanItem
	for _, line := range llm.Lines(resp) {
		parts := strings.Split(line, "|")
		if len(parts) < 3 {
			logger.Warn("skipping schedule line", "line", line, "reason", "expected hour | activity | location")
			continue
		}
		hour, ok := parseHour(parts[0])
		if !ok {
			logger.Warn("skipping schedule line", "line", line, "reason", "bad hour")
			continue
		}
		activity := strings.TrimSpace(parts[1])
		if activity == "" {
			logger.Warn("skipping schedule line", "line", line, "reason", "empty activity")
			continue
		}
		location := llm.Unquote(parts[2])
		if resolved, tier := world.Resolve(location, locations); tier != world.TierNone {
			location = resolved
		} else {
			logger.Warn("schedule names an unknown location", "location", location)
		}
		items = append(items, model.PlanItem{StartHour: hour, Activity: activity, Location: location})
	}
	return Tile(items)
}

func parseHour(field string) (int, bool) {
	field = llm.StripEnumeration(strings.TrimSpace(field))
	if i := strings.Index(field, ":"); i >= 0 {
		field = field[:i]
	}
	h, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// Tile orders items by start hour, drops repeated hours, and sets every
// duration to the distance to the next item; the last wraps around midnight
// to the first.
func Tile(items []model.PlanItem) []model.PlanItem {
	if len(items) == 0 {
		return nil
	}
	sorted := append([]model.PlanItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartHour < sorted[j].StartHour })

	var out []model.PlanItem
	for _, it := range sorted {
		if len(out) > 0 && out[len(out)-1].StartHour == it.StartHour {
			continue
		}
		out = append(out, it)
	}

	for i := range out {
		if i < len(out)-1 {
			out[i].Duration = out[i+1].StartHour - out[i].StartHour
		} else {
			out[i].Duration = (24 - out[i].StartHour) + out[0].StartHour
		}
	}
	return out
}

// DefaultSchedule covers the day when the model's schedule is unusable.
func DefaultSchedule(wake int, goals, locations []string) []model.PlanItem {
	if len(locations) == 0 {
		locations = []string{world.UnknownLocation}
	}
	if len(goals) == 0 {
		goals = DefaultGoals
	}
	home := locations[0]
	away := locations[1%len(locations)]
	return Tile([]model.PlanItem{
		{StartHour: wake, Activity: "wake up and get ready", Location: home},
		{StartHour: wake + 1, Activity: goals[0], Location: away},
		{StartHour: 12, Activity: "have lunch", Location: home},
		{StartHour: 13, Activity: goals[1%len(goals)], Location: away},
		{StartHour: 18, Activity: "have dinner", Location: home},
		{StartHour: 19, Activity: goals[2%len(goals)], Location: home},
		{StartHour: 22, Activity: "sleep", Location: home},
	})
}
