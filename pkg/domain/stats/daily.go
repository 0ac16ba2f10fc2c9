// Package stats computes per-day completion rollups over task instances.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/propsync/fieldtask/pkg/domain/task"
)

// DateFormat is the calendar-date key format used by the rollups.
const DateFormat = "2006-01-02"

// ReportingZone is the fixed civil calendar the product reports in (UTC+7).
// Day grouping always uses this zone, never the runtime's local zone: two
// devices in different locales must agree on which day a completion belongs
// to.
var ReportingZone = time.FixedZone("UTC+7", 7*60*60)

// DaySummary is one row of the day-by-day rollup. In this two-bucket view
// in_progress counts toward pending; the three-state badge remains available
// on the drill-down entries.
type DaySummary struct {
	Date       string `json:"date"`
	Total      int    `json:"total"`
	Completed  int    `json:"completed"`
	Pending    int    `json:"pending"`
	Percentage int    `json:"percentage"`
}

// Entry is one instance in a day's drill-down list, annotated with the badge
// status for that instance: the derived effective status for a main
// instance, the raw lifecycle status for a sub instance.
type Entry struct {
	Instance task.Instance `json:"instance"`
	Badge    task.Status   `json:"badge"`
}

// DayDetail is the expandable detail view for one calendar date.
type DayDetail struct {
	Date    string  `json:"date"`
	Entries []Entry `json:"entries"`
}

// Aggregator groups instances by calendar day in a fixed zone and computes
// completion rollups. It recomputes from the full instance set on demand;
// nothing is incrementally maintained.
type Aggregator struct {
	loc *time.Location
}

// NewAggregator creates an Aggregator reporting in the given zone.
// A nil location falls back to ReportingZone.
func NewAggregator(loc *time.Location) Aggregator {
	if loc == nil {
		loc = ReportingZone
	}
	return Aggregator{loc: loc}
}

// DateOf returns the calendar date key of t in the reporting zone.
func (a Aggregator) DateOf(t time.Time) string {
	return t.In(a.loc).Format(DateFormat)
}

// Summarize computes per-day rollups over the given instance set, most
// recent day first. Only main instances are counted; their effective status
// is derived from children found anywhere in the set.
func (a Aggregator) Summarize(instances []task.Instance) []DaySummary {
	byDate := make(map[string]*DaySummary)

	for _, inst := range instances {
		if !inst.IsMain() {
			continue
		}
		date := a.DateOf(inst.CreatedAt)
		summary, ok := byDate[date]
		if !ok {
			summary = &DaySummary{Date: date}
			byDate[date] = summary
		}

		summary.Total++
		effective := task.EffectiveStatus(inst, task.ChildrenOf(instances, inst.InstanceID))
		if effective.IsCompleted() {
			summary.Completed++
		} else {
			summary.Pending++
		}
	}

	summaries := make([]DaySummary, 0, len(byDate))
	for _, s := range byDate {
		s.Percentage = percentage(s.Completed, s.Total)
		summaries = append(summaries, *s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Date > summaries[j].Date
	})
	return summaries
}

// Detail returns the drill-down list for one calendar date: every instance
// created that date, mains first each followed by their sub instances.
func (a Aggregator) Detail(instances []task.Instance, date string) DayDetail {
	detail := DayDetail{Date: date}

	var mains, orphans []task.Instance
	for _, inst := range instances {
		if a.DateOf(inst.CreatedAt) != date {
			continue
		}
		if inst.IsMain() {
			mains = append(mains, inst)
		} else if !a.sameDateParentPresent(instances, inst, date) {
			orphans = append(orphans, inst)
		}
	}

	for _, main := range mains {
		detail.Entries = append(detail.Entries, Entry{
			Instance: main,
			Badge:    task.InstanceBadge(main, instances),
		})
		for _, child := range task.ChildrenOf(instances, main.InstanceID) {
			if a.DateOf(child.CreatedAt) != date {
				continue
			}
			detail.Entries = append(detail.Entries, Entry{
				Instance: child,
				Badge:    task.InstanceBadge(child, instances),
			})
		}
	}

	// Sub instances whose parent was created on another date still belong to
	// this date's list.
	for _, orphan := range orphans {
		detail.Entries = append(detail.Entries, Entry{
			Instance: orphan,
			Badge:    task.InstanceBadge(orphan, instances),
		})
	}

	return detail
}

func (a Aggregator) sameDateParentPresent(instances []task.Instance, sub task.Instance, date string) bool {
	for _, inst := range instances {
		if inst.InstanceID == sub.ParentInstanceID {
			return a.DateOf(inst.CreatedAt) == date
		}
	}
	return false
}

func percentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
