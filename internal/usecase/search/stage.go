package search

// Stage is the position of a request in the pipeline.
type Stage int

// Pipeline stages in order. Failed is reachable from any stage.
const (
	StageReceived Stage = iota
	StageFused
	StageRetrieved
	StageRanked
	StageReturned
	StageFailed
)

var stageNames = [...]string{"received", "fused", "retrieved", "ranked", "returned", "failed"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// step names the work that moves a request from one stage to the next.
// Used as the metrics label.
func (s Stage) step() string {
	switch s {
	case StageReceived:
		return "fuse"
	case StageFused:
		return "retrieve"
	case StageRetrieved:
		return "rank"
	default:
		return "return"
	}
}
