package ports

// ParameterField describes one declared processor parameter.
type ParameterField struct {
	Name    string
	Type    string
	Default string
}

// StageSet is a resolved importer/processor/writer triple for one content
// type. Instances are freshly constructed per Resolve call; workers cache
// them per content type.
type StageSet struct {
	Importer  Importer
	Processor Processor
	Writer    Writer

	// ImporterName and ProcessorName are the stable stage identifiers
	// recorded in cache entries.
	ImporterName  string
	ProcessorName string
	// LoaderName identifies the runtime deserializer for items written by
	// this set. The packer embeds its 32-bit hash instead of the string.
	LoaderName string
}

// StageRegistry resolves a content-type name to its pipeline stages and
// exposes processor parameter metadata. The core consumes this interface
// and never enumerates or loads stage implementations itself.
type StageRegistry interface {
	// Resolve returns a fresh stage set for the content type.
	Resolve(contentType string) (*StageSet, error)
	// Fields returns the processor parameter schema for the content type.
	Fields(contentType string) ([]ParameterField, error)
	// Types returns the registered content-type names, sorted.
	Types() []string
}
