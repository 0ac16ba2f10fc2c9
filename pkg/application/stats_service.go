package application

import (
	"context"

	"github.com/propsync/fieldtask/pkg/domain"
	"github.com/propsync/fieldtask/pkg/domain/stats"
	"github.com/propsync/fieldtask/pkg/domain/task"
)

// TaskView is one main instance in the worker's task list, with its derived
// badge status and sub instances nested under it.
type TaskView struct {
	task.Instance
	EffectiveStatus task.Status     `json:"effective_status"`
	SubTasks        []task.Instance `json:"sub_user_task"`
}

// StatsService serves the worker-facing task list and the day-by-day
// completion rollups.
type StatsService struct {
	repo domain.InstanceRepository
	agg  stats.Aggregator
}

// NewStatsService creates a StatsService reporting in the default zone.
func NewStatsService(repo domain.InstanceRepository) *StatsService {
	return &StatsService{repo: repo, agg: stats.NewAggregator(nil)}
}

// List returns the worker's main instances, each with its derived status and
// its sub instances attached. An optional date range (inclusive, calendar
// dates in the reporting zone) narrows the result; empty bounds are open.
func (s *StatsService) List(ctx context.Context, workerID, dateFrom, dateTo string) ([]TaskView, error) {
	instances, err := s.repo.ListInstances(workerID)
	if err != nil {
		return nil, err
	}

	views := make([]TaskView, 0)
	for _, inst := range instances {
		if !inst.IsMain() {
			continue
		}
		if !s.inRange(inst, dateFrom, dateTo) {
			continue
		}

		children := task.ChildrenOf(instances, inst.InstanceID)
		views = append(views, TaskView{
			Instance:        inst,
			EffectiveStatus: task.EffectiveStatus(inst, children),
			SubTasks:        children,
		})
	}
	return views, nil
}

// Daily returns the per-day rollups for one worker, most recent day first.
// The optional range bounds are calendar dates in the reporting zone.
func (s *StatsService) Daily(ctx context.Context, workerID, dateFrom, dateTo string) ([]stats.DaySummary, error) {
	instances, err := s.repo.ListInstances(workerID)
	if err != nil {
		return nil, err
	}

	summaries := s.agg.Summarize(instances)
	if dateFrom == "" && dateTo == "" {
		return summaries, nil
	}

	filtered := make([]stats.DaySummary, 0, len(summaries))
	for _, summary := range summaries {
		if dateFrom != "" && summary.Date < dateFrom {
			continue
		}
		if dateTo != "" && summary.Date > dateTo {
			continue
		}
		filtered = append(filtered, summary)
	}
	return filtered, nil
}

// DayDetail returns one date's drill-down list for a worker.
func (s *StatsService) DayDetail(ctx context.Context, workerID, date string) (stats.DayDetail, error) {
	instances, err := s.repo.ListInstances(workerID)
	if err != nil {
		return stats.DayDetail{}, err
	}
	return s.agg.Detail(instances, date), nil
}

// inRange reports whether the instance's creation date falls inside the
// inclusive calendar range. Date strings compare lexically because the key
// format is fixed-width year-month-day.
func (s *StatsService) inRange(inst task.Instance, dateFrom, dateTo string) bool {
	date := s.agg.DateOf(inst.CreatedAt)
	if dateFrom != "" && date < dateFrom {
		return false
	}
	if dateTo != "" && date > dateTo {
		return false
	}
	return true
}
