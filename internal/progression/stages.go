package progression

import (
	"sort"

	"github.com/pavelanni/traderpath/internal/model"
)

// OrderStages returns a copy of stages sorted by order index, then id.
func OrderStages(stages []model.LearningStage) []model.LearningStage {
	out := make([]model.LearningStage, len(stages))
	copy(out, stages)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CurrentStage returns the first stage, in order, whose progress is missing or
// not completed. When every stage is completed it returns the last stage, and
// nil when there are no stages.
func CurrentStage(stages []model.LearningStage, progress map[int64]model.StageProgress) *model.LearningStage {
	ordered := OrderStages(stages)
	if len(ordered) == 0 {
		return nil
	}
	for i := range ordered {
		p, ok := progress[ordered[i].ID]
		if !ok || p.Status != model.ProgressCompleted {
			return &ordered[i]
		}
	}
	return &ordered[len(ordered)-1]
}

// CompletedCount counts completed stages among stages.
func CompletedCount(stages []model.LearningStage, progress map[int64]model.StageProgress) int {
	n := 0
	for _, s := range stages {
		if p, ok := progress[s.ID]; ok && p.Status == model.ProgressCompleted {
			n++
		}
	}
	return n
}

// CompletionPercent returns completed stages as a rounded percentage.
func CompletionPercent(stages []model.LearningStage, progress map[int64]model.StageProgress) int {
	if len(stages) == 0 {
		return 0
	}
	done := CompletedCount(stages, progress)
	return (done*200 + len(stages)) / (2 * len(stages))
}

// ProgressByStage indexes progress records by stage id.
func ProgressByStage(records []model.StageProgress) map[int64]model.StageProgress {
	m := make(map[int64]model.StageProgress, len(records))
	for _, p := range records {
		m[p.StageID] = p
	}
	return m
}
