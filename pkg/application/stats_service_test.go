package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/propsync/fieldtask/pkg/application"
	"github.com/propsync/fieldtask/pkg/domain/stats"
	"github.com/propsync/fieldtask/pkg/domain/task"
)

// reportingDate builds a timestamp whose calendar date in the reporting zone
// is the given day at noon.
func reportingDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, stats.ReportingZone)
}

func statsFixture() []task.Instance {
	completed := reportingDate(2025, 3, 10)
	mk := func(id, parent string, st task.Status, created time.Time) task.Instance {
		inst := task.Instance{
			InstanceID:       id,
			WorkerID:         "worker-1",
			Definition:       task.Definition{ID: "def-" + id, IsMainTask: parent == ""},
			ParentInstanceID: parent,
			Status:           st,
			CreatedAt:        created,
		}
		if st == task.StatusCompleted {
			inst.CompletedAt = &completed
		}
		return inst
	}

	return []task.Instance{
		// Day 1: derived main with one completed and one pending child.
		mk("main-a", "", task.StatusPending, reportingDate(2025, 3, 10)),
		mk("sub-a1", "main-a", task.StatusCompleted, reportingDate(2025, 3, 10)),
		mk("sub-a2", "main-a", task.StatusPending, reportingDate(2025, 3, 10)),
		// Day 1: completed standalone main.
		mk("main-b", "", task.StatusCompleted, reportingDate(2025, 3, 10)),
		// Day 2: single pending main.
		mk("main-c", "", task.StatusPending, reportingDate(2025, 3, 11)),
	}
}

func TestStatsService_List(t *testing.T) {
	repo := &MockRepo{Instances: statsFixture()}
	svc := application.NewStatsService(repo)

	views, err := svc.List(context.Background(), "worker-1", "", "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("got %d views, want 3 mains", len(views))
	}

	byID := make(map[string]application.TaskView)
	for _, v := range views {
		byID[v.InstanceID] = v
	}

	// main-a has a completed child, so its derived status is in_progress.
	if got := byID["main-a"].EffectiveStatus; got != task.StatusInProgress {
		t.Errorf("main-a effective status = %s, want in_progress", got)
	}
	if len(byID["main-a"].SubTasks) != 2 {
		t.Errorf("main-a has %d subs, want 2", len(byID["main-a"].SubTasks))
	}
	if got := byID["main-b"].EffectiveStatus; got != task.StatusCompleted {
		t.Errorf("main-b effective status = %s, want completed", got)
	}
}

func TestStatsService_ListDateRange(t *testing.T) {
	repo := &MockRepo{Instances: statsFixture()}
	svc := application.NewStatsService(repo)

	views, err := svc.List(context.Background(), "worker-1", "2025-03-11", "2025-03-11")
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || views[0].InstanceID != "main-c" {
		t.Errorf("range filter returned %d views, want only main-c", len(views))
	}
}

func TestStatsService_ListOtherWorkerEmpty(t *testing.T) {
	repo := &MockRepo{Instances: statsFixture()}
	svc := application.NewStatsService(repo)

	views, err := svc.List(context.Background(), "worker-2", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 0 {
		t.Errorf("worker-2 sees %d views, want 0", len(views))
	}
}

func TestStatsService_Daily(t *testing.T) {
	repo := &MockRepo{Instances: statsFixture()}
	svc := application.NewStatsService(repo)

	summaries, err := svc.Daily(context.Background(), "worker-1", "", "")
	if err != nil {
		t.Fatalf("Daily failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d day rows, want 2", len(summaries))
	}

	// Most recent day first.
	if summaries[0].Date != "2025-03-11" || summaries[1].Date != "2025-03-10" {
		t.Errorf("dates not descending: %s, %s", summaries[0].Date, summaries[1].Date)
	}

	day1 := summaries[1]
	if day1.Total != 2 || day1.Completed != 1 || day1.Pending != 1 {
		t.Errorf("day 1 rollup = %+v, want total 2 / completed 1 / pending 1", day1)
	}
	if day1.Percentage != 50 {
		t.Errorf("day 1 percentage = %d, want 50", day1.Percentage)
	}
}

func TestStatsService_DailyRange(t *testing.T) {
	repo := &MockRepo{Instances: statsFixture()}
	svc := application.NewStatsService(repo)

	summaries, err := svc.Daily(context.Background(), "worker-1", "2025-03-10", "2025-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].Date != "2025-03-10" {
		t.Errorf("range filter returned %d rows, want only 2025-03-10", len(summaries))
	}
}

func TestStatsService_DayDetail(t *testing.T) {
	repo := &MockRepo{Instances: statsFixture()}
	svc := application.NewStatsService(repo)

	detail, err := svc.DayDetail(context.Background(), "worker-1", "2025-03-10")
	if err != nil {
		t.Fatalf("DayDetail failed: %v", err)
	}
	if len(detail.Entries) != 4 {
		t.Fatalf("got %d entries, want 4 instances on 2025-03-10", len(detail.Entries))
	}
	// Subs carry their raw status as badge, mains the derived one.
	for _, e := range detail.Entries {
		if e.Instance.InstanceID == "main-a" && e.Badge != task.StatusInProgress {
			t.Errorf("main-a badge = %s, want in_progress", e.Badge)
		}
		if e.Instance.InstanceID == "sub-a1" && e.Badge != task.StatusCompleted {
			t.Errorf("sub-a1 badge = %s, want completed", e.Badge)
		}
	}
}
