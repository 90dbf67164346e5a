package models

// Deployment is a detected contract-creation transaction on the watched chain.
// It is immutable once observed; identity is EventID (the transaction hash).
type Deployment struct {
	BlockHeight     uint64 `json:"block_height"`
	EventID         string `json:"event_id"`
	ContractAddress string `json:"contract_address"`
	Deployer        string `json:"deployer"`
}
