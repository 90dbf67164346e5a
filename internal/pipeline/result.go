package pipeline

// Status classifies a stage outcome.
type Status int

const (
	// StatusOK means the stage produced its value normally.
	StatusOK Status = iota
	// StatusDegraded means the stage failed but substituted a usable
	// fallback value; Cause explains why.
	StatusDegraded
	// StatusFatal means the stage produced nothing usable. Only fatal
	// outcomes propagate out of the pipeline.
	StatusFatal
)

// Result is a tagged stage outcome. Degradation is explicit in the control
// flow: a degraded result carries both a usable fallback value and its cause.
type Result[T any] struct {
	Value  T
	Status Status
	Cause  error
}

func ok[T any](v T) Result[T] {
	return Result[T]{Value: v, Status: StatusOK}
}

func degraded[T any](v T, cause error) Result[T] {
	return Result[T]{Value: v, Status: StatusDegraded, Cause: cause}
}
