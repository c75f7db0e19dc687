package artifact

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"scope/pkg/models"
)

type abiEntry struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// rawArtifact covers both forge output (bytecode as {"object": "0x.."},
// metadata as an object) and hardhat output (bytecode as a string,
// contractName set).
type rawArtifact struct {
	ContractName     string          `json:"contractName"`
	ABI              []abiEntry      `json:"abi"`
	Bytecode         json.RawMessage `json:"bytecode"`
	DeployedBytecode json.RawMessage `json:"deployedBytecode"`
	Metadata         json.RawMessage `json:"metadata"`
}

type compilerMetadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
}

// Summarize decodes artifact JSON into a display summary. location is only
// used for the summary's Location and, when the artifact does not name its
// contract, to derive the name from the file name.
func Summarize(location string, data []byte) (*models.ArtifactSummary, error) {
	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", location, err)
	}

	s := &models.ArtifactSummary{
		Location:  location,
		Contract:  raw.ContractName,
		Functions: []string{},
		Events:    []string{},
	}
	if s.Contract == "" {
		s.Contract = strings.TrimSuffix(filepath.Base(Path(location)), Ext)
	}

	for _, e := range raw.ABI {
		switch e.Type {
		case "function":
			s.Functions = append(s.Functions, e.Name)
		case "event":
			s.Events = append(s.Events, e.Name)
		case "error":
			s.Errors = append(s.Errors, e.Name)
		case "constructor":
			s.HasConstructor = true
		}
	}

	var err error
	if s.BytecodeSize, err = codeSize(raw.Bytecode); err != nil {
		return nil, fmt.Errorf("failed to decode bytecode of %s: %w", location, err)
	}
	if s.DeployedCodeSize, err = codeSize(raw.DeployedBytecode); err != nil {
		return nil, fmt.Errorf("failed to decode deployed bytecode of %s: %w", location, err)
	}
	s.CompilerVersion = compilerVersion(raw.Metadata)

	return s, nil
}

// codeSize returns the byte length of a hex bytecode value given either as
// a string or as an object with an "object" field.
func codeSize(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	var hex string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &hex); err != nil {
			return 0, err
		}
	} else {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0, err
		}
		hex = obj.Object
	}
	return len(strings.TrimPrefix(hex, "0x")) / 2, nil
}

// compilerVersion reads metadata.compiler.version. Older forge versions
// store metadata as a JSON string.
func compilerVersion(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		raw = json.RawMessage(s)
	}
	var md compilerMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return ""
	}
	return md.Compiler.Version
}
