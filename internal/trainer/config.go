package trainer

// Config holds the trainer's tunables.
type Config struct {
	// CheckpointEvery is how many accepted samples generation collects before
	// the cache is rewritten. The checkpoint fires on the sample after that.
	CheckpointEvery int

	// LineBatch is the sample count at which line training flushes the
	// gradient.
	LineBatch int

	// ConsumeBatch is the sample count at which consumption flushes the
	// gradient; ConsumeFloor is the working-set size at which it stops.
	ConsumeBatch int
	ConsumeFloor int

	// Themes are the tags a puzzle must carry to be drawn.
	Themes []string

	// MaxLines stops generation and line training after that many puzzle
	// lines. Zero runs until the context ends.
	MaxLines int

	// MaxLineDepth caps the recursion of line training. Zero means no cap.
	MaxLineDepth int

	// DatasetPath is where checkpoints write the cache. Empty disables
	// saving.
	DatasetPath string

	Policy AcceptPolicy
}

// DefaultConfig returns the production settings. DatasetPath is left empty
// for the caller to fill in.
func DefaultConfig() Config {
	return Config{
		CheckpointEvery: 64,
		LineBatch:       64,
		ConsumeBatch:    64,
		ConsumeFloor:    10,
		Themes:          []string{"equality"},
		Policy:          DefaultPolicy(),
	}
}
