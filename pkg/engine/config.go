package engine

const defaultMaxIterations = 10

// Config carries the loop settings applied to every run.
type Config struct {
	// Model is the backend model identifier used when a run does not
	// override it.
	Model string

	// MaxIterations bounds the number of provider turns in one run. Zero
	// selects the default of 10; a negative value fails the run with a
	// terminal error event.
	MaxIterations int

	// SystemPrompt, when non-empty, is prepended to the conversation as a
	// system message.
	SystemPrompt string
}

func (c Config) maxIterations() int {
	if c.MaxIterations == 0 {
		return defaultMaxIterations
	}
	return c.MaxIterations
}

// RunOptions overrides selected Config fields for a single run. Zero
// fields keep the configured value.
type RunOptions struct {
	Model         string
	SystemPrompt  string
	MaxIterations int
}
