package relaychain

import (
	"github.com/anchorlabs/anchor-edge/types"
)

// ValidatorID identifies a validator in the active set
type ValidatorID string

// ValidatorIndex is a position in the active validator set
type ValidatorIndex uint64

// AuthorityID is a discovery identifier of a validator, resolvable to
// network addresses by the authority discovery service
type AuthorityID string

// SessionIndex identifies a session of the relay chain
type SessionIndex uint64

// CoreAssumption is the occupied-core assumption under which runtime
// queries about a secondary chain are evaluated
type CoreAssumption string

const (
	CoreAssumptionIncluded CoreAssumption = "included"
	CoreAssumptionTimedOut CoreAssumption = "timedout"
	CoreAssumptionFree     CoreAssumption = "free"
)

// GroupRotationInfo describes how validator groups rotate over availability cores
type GroupRotationInfo struct {
	SessionStartBlock      uint64 `json:"sessionStartBlock"`
	GroupRotationFrequency uint64 `json:"groupRotationFrequency"`
	Now                    uint64 `json:"now"`
}

// ValidatorGroups is the validator group assignment at a given block
type ValidatorGroups struct {
	Groups   [][]ValidatorIndex `json:"groups"`
	Rotation GroupRotationInfo  `json:"rotation"`
}

// CoreState describes the occupancy of a single availability core
type CoreState struct {
	Kind   string `json:"kind"`
	ParaID uint64 `json:"paraId,omitempty"`
}

// SessionInfo is the validator metadata of a single session
type SessionInfo struct {
	Validators      []ValidatorID      `json:"validators"`
	DiscoveryKeys   []AuthorityID      `json:"discoveryKeys"`
	ValidatorGroups [][]ValidatorIndex `json:"validatorGroups"`
}

// PersistedValidationData is the minimal relay chain context a
// secondary chain block is validated against
type PersistedValidationData struct {
	ParentHead             []byte     `json:"parentHead"`
	RelayParentNumber      uint64     `json:"relayParentNumber"`
	RelayParentStorageRoot types.Hash `json:"relayParentStorageRoot"`
	MaxPovSize             uint64     `json:"maxPovSize"`
}

// CommittedCandidate is the receipt of a secondary chain candidate
// committed to the relay chain
type CommittedCandidate struct {
	ParaID        uint64     `json:"paraId"`
	RelayParent   types.Hash `json:"relayParent"`
	CandidateHash types.Hash `json:"candidateHash"`
}

// CandidateEvent is a candidate inclusion event recorded in a relay chain block
type CandidateEvent struct {
	Kind          string     `json:"kind"`
	ParaID        uint64     `json:"paraId"`
	CandidateHash types.Hash `json:"candidateHash"`
}

// RuntimeVersion identifies the runtime active at a given block,
// including the versions of the runtime APIs it exposes
type RuntimeVersion struct {
	SpecName    string            `json:"specName"`
	SpecVersion uint64            `json:"specVersion"`
	APIs        map[string]uint64 `json:"apis"`
}
