package pipeline

import "github.com/On-Jun9/TakeoutPipe/pkg/types"

type ProgressCallback func(update ProgressUpdate)

// Outcome is what happened to one asset at commit time.
type Outcome string

const (
	OutcomeFiled        Outcome = "filed"
	OutcomeUnclassified Outcome = "unclassified"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeFailed       Outcome = "failed"
)

// ProgressType tags a ProgressUpdate.
type ProgressType string

const (
	ProgressStatus   ProgressType = "status"
	ProgressFile     ProgressType = "progress"
	ProgressComplete ProgressType = "complete"
)

// ProgressUpdate is delivered on the goroutine that called Run, in commit order.
type ProgressUpdate struct {
	Type     ProgressType
	Message  string
	Current  int
	Total    int
	Filename string
	Outcome  Outcome
	Summary  *types.RunSummary
}
