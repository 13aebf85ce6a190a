package errors

// Sentinel errors for the lifecycle's failure contract.
var (
	// ErrGeneration marks a failed narrative-generation call. Callers recover
	// with a fallback value instead of surfacing it.
	ErrGeneration = NewSentinel("text generation failed")
	// ErrNoActiveIdea is returned when a chat has no bound investment idea.
	ErrNoActiveIdea = NewSentinel("no active investment idea")
	// ErrIdeaNotFound is returned when an idea lookup misses.
	ErrIdeaNotFound = NewSentinel("investment idea not found")
	// ErrAlreadyFinalized guards finalize against re-awarding bonuses for an
	// idea that already reached a terminal status.
	ErrAlreadyFinalized = NewSentinel("investment idea already finalized")
	// ErrUnauthorized marks a privileged command invoked by a non-privileged
	// identity or context.
	ErrUnauthorized = NewSentinel("not authorized")
)
