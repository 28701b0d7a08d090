package runtime

var (
	// Version, GitCommit and Timestamp are set at build time via ldflags.
	Version   = "dev"
	GitCommit = "unknown"
	Timestamp = "unknown"
)
