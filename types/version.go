package types

// Version is the canonical project version.
// The CLI and the run-completed notification payload share this version.
const Version = "0.3.0"

// ContractVersion is the version stamped on run notifications.
// It moves in lockstep with Version.
const ContractVersion = Version
