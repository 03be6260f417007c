package pipeline

// Outcome classifies a step result. Best-effort steps report NonFatal on
// failure; carrying the three cases in one type keeps call sites from
// accidentally upgrading a warning into an abort.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNonFatal
	OutcomeFatal
)

// StepResult is the result of one named pipeline step.
type StepResult struct {
	Step    string
	Outcome Outcome
	Err     error
}

func okStep(step string) StepResult {
	return StepResult{Step: step, Outcome: OutcomeOK}
}

func nonFatalStep(step string, err error) StepResult {
	return StepResult{Step: step, Outcome: OutcomeNonFatal, Err: err}
}

func (r StepResult) Failed() bool {
	return r.Outcome != OutcomeOK
}
