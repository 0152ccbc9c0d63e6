package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

var durationWeeksRe = regexp.MustCompile(`(?i)(\d+)\s*weeks?`)

// ParseDurationWeeks extracts N from a plan duration such as "8 weeks".
func ParseDurationWeeks(duration string) (int, bool) {
	m := durationWeeksRe.FindStringSubmatch(duration)
	if m == nil {
		return 0, false
	}
	weeks, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return weeks, true
}

// EstimatedTotalSessions is the number of sessions a plan prescribes at the client's weekly target.
func EstimatedTotalSessions(plan *TrainingPlan, workoutsPerWeek int) int {
	weeks, ok := ParseDurationWeeks(plan.Duration)
	if !ok {
		return 0
	}
	if workoutsPerWeek <= 0 {
		workoutsPerWeek = DefaultWorkoutsPerWeek
	}
	return weeks * workoutsPerWeek
}

// PlanEndDate is start + weeks*7 for a plan with a start date and a parseable duration.
func PlanEndDate(start time.Time, duration string) (time.Time, bool) {
	weeks, ok := ParseDurationWeeks(duration)
	if !ok {
		return time.Time{}, false
	}
	return AddDays(start, weeks*7), true
}

// PlanProgressPercent credits whichever of calendar progress and session progress is further
// along, capped at 100. An unparseable duration yields 0.
func PlanProgressPercent(plan *TrainingPlan, completedSessions, estimatedTotalSessions int, asOf time.Time) int {
	weeks, ok := ParseDurationWeeks(plan.Duration)
	if !ok || weeks <= 0 {
		return 0
	}
	totalDays := float64(weeks * 7)

	var timeProgress float64
	if plan.StartDate != nil {
		elapsed := DaysBetween(*plan.StartDate, asOf)
		if elapsed < 0 {
			elapsed = 0
		}
		timeProgress = math.Min(100, float64(elapsed)/totalDays*100)
	}

	var sessionProgress float64
	if estimatedTotalSessions > 0 {
		sessionProgress = float64(completedSessions) / float64(estimatedTotalSessions) * 100
	}

	return int(math.Round(math.Min(100, math.Max(timeProgress, sessionProgress))))
}

// TimeRemainingStatus classifies where today falls relative to a plan's run.
type TimeRemainingStatus string

const (
	TimeStartingSoon  TimeRemainingStatus = "starting-soon"
	TimeStartingLater TimeRemainingStatus = "starting-later"
	TimeActive        TimeRemainingStatus = "active"
	TimeEndingSoon    TimeRemainingStatus = "ending-soon"
	TimeEnding        TimeRemainingStatus = "ending"
	TimeOverdue       TimeRemainingStatus = "overdue"
)

// TimeRemaining describes how long until a plan starts or ends.
type TimeRemaining struct {
	Status TimeRemainingStatus `json:"status"`
	Days   int                 `json:"days"`
	Text   string              `json:"text"`
}

// PlanTimeRemaining is defined only for Active plans with a start date and parseable duration.
func PlanTimeRemaining(plan *TrainingPlan, asOf time.Time) *TimeRemaining {
	if plan.Status != PlanActive || plan.StartDate == nil {
		return nil
	}

	if untilStart := DaysBetween(asOf, *plan.StartDate); untilStart > 0 {
		switch {
		case untilStart == 1:
			return &TimeRemaining{Status: TimeStartingSoon, Days: 1, Text: "Starts tomorrow"}
		case untilStart <= 7:
			return &TimeRemaining{Status: TimeStartingSoon, Days: untilStart, Text: fmt.Sprintf("Starts in %d days", untilStart)}
		default:
			return &TimeRemaining{Status: TimeStartingLater, Days: untilStart, Text: "Starts in " + weeksAndDays(untilStart)}
		}
	}

	end, ok := PlanEndDate(*plan.StartDate, plan.Duration)
	if !ok {
		return nil
	}
	left := DaysBetween(asOf, end)
	switch {
	case left < 0:
		return &TimeRemaining{Status: TimeOverdue, Days: -left, Text: fmt.Sprintf("%d days overdue", -left)}
	case left == 0:
		return &TimeRemaining{Status: TimeEnding, Days: 0, Text: "Ends today"}
	case left <= 7:
		return &TimeRemaining{Status: TimeEndingSoon, Days: left, Text: fmt.Sprintf("%d days left", left)}
	default:
		return &TimeRemaining{Status: TimeActive, Days: left, Text: weeksAndDays(left) + " left"}
	}
}

func weeksAndDays(days int) string {
	weeks, extra := days/7, days%7
	if extra == 0 {
		return fmt.Sprintf("%d weeks", weeks)
	}
	return fmt.Sprintf("%dw %dd", weeks, extra)
}
