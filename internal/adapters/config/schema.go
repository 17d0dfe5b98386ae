package config

// ProjectFile represents the structure of the kiln.yaml project file.
type ProjectFile struct {
	Name string `yaml:"name"`
	// Root is the directory item sources are relative to; defaults to the
	// project file's directory.
	Root            string `yaml:"root"`
	IntermediateDir string `yaml:"intermediateDir"`
	OutputDir       string `yaml:"outputDir"`

	Pack  PackDTO   `yaml:"pack"`
	Items []ItemDTO `yaml:"items"`
}

// PackDTO holds the packing configuration.
type PackDTO struct {
	// Mode is "packed" (default) or "loose".
	Mode string `yaml:"mode"`
	// Compress enables per-item compression in release builds.
	Compress bool `yaml:"compress"`
	// High selects the denser, slower compression variant.
	High bool `yaml:"high"`
	// SizeLimit caps each archive's payload in bytes.
	SizeLimit int64 `yaml:"sizeLimit"`
}

// ItemDTO represents one content item declaration.
type ItemDTO struct {
	Source string `yaml:"source"`
	// Name is the logical item path; defaults to the source path without
	// its extension.
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	// Params are ordered processor parameters.
	Params []ParamDTO `yaml:"params"`
}

// ParamDTO is a single key/value processor parameter.
type ParamDTO struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}
