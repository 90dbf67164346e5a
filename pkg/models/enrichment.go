package models

// EnrichmentKind selects which variant of an Enrichment holds.
type EnrichmentKind string

const (
	// EnrichmentVerified means publicly verified source code is available.
	EnrichmentVerified EnrichmentKind = "verified"
	// EnrichmentBytecode means only deployed bytecode is available.
	EnrichmentBytecode EnrichmentKind = "bytecode"
	// EnrichmentUnavailable means no metadata could be fetched.
	EnrichmentUnavailable EnrichmentKind = "unavailable"
)

// Enrichment is contract metadata fetched for a deployment. Exactly one
// variant holds: Verified carries ContractName/Compiler/Source, Bytecode
// carries Bytecode, Unavailable carries nothing.
type Enrichment struct {
	Kind         EnrichmentKind `json:"kind"`
	ContractName string         `json:"contract_name,omitempty"`
	Compiler     string         `json:"compiler,omitempty"`
	Source       string         `json:"source,omitempty"`
	Bytecode     string         `json:"bytecode,omitempty"`
}

// Unavailable returns the empty enrichment variant.
func Unavailable() Enrichment {
	return Enrichment{Kind: EnrichmentUnavailable}
}

// Verified reports whether verified source code is present.
func (e Enrichment) Verified() bool {
	return e.Kind == EnrichmentVerified
}
