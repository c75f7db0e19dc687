package models

// Artifact is a located compiler output file.
type Artifact struct {
	Location string `json:"location"`
	Source   string `json:"source"`    // open file name, e.g. "Foo.sol"
	BuildDir string `json:"build_dir"` // candidate directory it was found under
}

// ArtifactSummary is a display view of a compiled contract artifact.
type ArtifactSummary struct {
	Location         string   `json:"location"`
	Contract         string   `json:"contract"`
	Functions        []string `json:"functions"`
	Events           []string `json:"events"`
	Errors           []string `json:"errors,omitempty"`
	HasConstructor   bool     `json:"has_constructor"`
	BytecodeSize     int      `json:"bytecode_size"`
	DeployedCodeSize int      `json:"deployed_code_size"`
	CompilerVersion  string   `json:"compiler_version,omitempty"`
}
