package model

import (
	"fmt"
	"time"
)

// PlanItem is one hour-granularity entry of a daily schedule.
type PlanItem struct {
	StartHour    int    `json:"start_hour"`
	Duration     int    `json:"duration"`
	Activity     string `json:"activity"`
	Location     string `json:"location"`
	TargetObject string `json:"target_object,omitempty"`
}

// EndHour is the hour the item ends at, modulo 24.
func (p PlanItem) EndHour() int {
	return (p.StartHour + p.Duration) % 24
}

// Contains reports whether hour falls inside [StartHour, StartHour+Duration),
// wrapping past midnight.
func (p PlanItem) Contains(hour int) bool {
	end := p.EndHour()
	if end <= p.StartHour {
		return hour >= p.StartHour || hour < end
	}
	return hour >= p.StartHour && hour < end
}

func (p PlanItem) String() string {
	return fmt.Sprintf("%02d:00 (%dh) %s @ %s", p.StartHour, p.Duration, p.Activity, p.Location)
}

// SubPlanItem is a minute-granularity step produced by decomposing a PlanItem.
type SubPlanItem struct {
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	TargetObject    string `json:"target_object,omitempty"`
	Urgent          bool   `json:"urgent,omitempty"`
}

// ConversationTurn is one line of dialogue.
type ConversationTurn struct {
	Speaker   string    `json:"speaker"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
