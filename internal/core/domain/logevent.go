package domain

import "time"

// EventKind identifies one structured build-log event.
type EventKind string

const (
	// EventEngineInfo is a general informational engine message.
	EventEngineInfo EventKind = "engine/info"
	// EventEngineWarn is a non-fatal engine warning.
	EventEngineWarn EventKind = "engine/warn"
	// EventEngineError is an engine-level error report.
	EventEngineError EventKind = "engine/error"
	// EventBuildStarted marks the start of a build operation.
	EventBuildStarted EventKind = "build/started"
	// EventBuildFinished marks the end of a build operation.
	EventBuildFinished EventKind = "build/finished"
	// EventCleanStarted marks the start of a clean operation.
	EventCleanStarted EventKind = "clean/started"
	// EventCleanFinished marks the end of a clean operation.
	EventCleanFinished EventKind = "clean/finished"
	// EventItemStarted marks the start of one item's pipeline.
	EventItemStarted EventKind = "item/started"
	// EventItemSkipped marks an up-to-date cache hit.
	EventItemSkipped EventKind = "item/skipped"
	// EventItemFinished marks a successful rebuild.
	EventItemFinished EventKind = "item/finished"
	// EventItemFailed marks an item-level failure.
	EventItemFailed EventKind = "item/failed"
	// EventItemWarning is a non-fatal per-item warning.
	EventItemWarning EventKind = "item/warn"
	// EventItemPacked marks an item's copy into a pack archive.
	EventItemPacked EventKind = "item/packed"
)

// LogLevel represents the severity of a log event, mirroring the standard
// slog levels.
type LogLevel int

const (
	// LogLevelDebug represents debug-level verbosity.
	LogLevelDebug LogLevel = -4
	// LogLevelInfo represents informational verbosity.
	LogLevelInfo LogLevel = 0
	// LogLevelWarn represents warning verbosity.
	LogLevelWarn LogLevel = 4
	// LogLevelError represents error verbosity.
	LogLevelError LogLevel = 8
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// LogEvent is one structured event emitted by the build core. Delivery to
// the sink is asynchronous; the sink owns all presentation.
type LogEvent struct {
	Kind    EventKind
	Level   LogLevel
	Message string

	// Item and Index identify the content item for item-scoped events.
	Item  string
	Index int

	// Stage names the pipeline stage for item failures and warnings.
	Stage string

	Elapsed   time.Duration
	Size      int64
	Succeeded bool
	Cancelled bool
	Err       error
}
