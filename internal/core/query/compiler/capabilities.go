package compiler

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// DefaultEngineVersion is assumed when the engine version is not known.
const DefaultEngineVersion = "3.45.0"

var (
	upsertSince       = version.Must(version.NewVersion("3.24.0"))
	renameColumnSince = version.Must(version.NewVersion("3.25.0"))
	returningSince    = version.Must(version.NewVersion("3.35.0"))
	strictSince       = version.Must(version.NewVersion("3.37.0"))
	rightJoinSince    = version.Must(version.NewVersion("3.39.0"))
)

// Capabilities records which dialect features the target engine build supports.
type Capabilities struct {
	Version *version.Version

	Upsert              bool
	UpsertWithoutTarget bool
	RenameColumn        bool
	Returning           bool
	DropColumn          bool
	StrictTables        bool
	RightFullJoin       bool
}

// CapabilitiesFor derives capabilities from an engine version string such as "3.46.1".
func CapabilitiesFor(engineVersion string) (Capabilities, error) {
	v, err := version.NewVersion(engineVersion)
	if err != nil {
		return Capabilities{}, fmt.Errorf("invalid engine version %q: %w", engineVersion, err)
	}
	return Capabilities{
		Version:             v,
		Upsert:              v.GreaterThanOrEqual(upsertSince),
		UpsertWithoutTarget: v.GreaterThanOrEqual(returningSince),
		RenameColumn:        v.GreaterThanOrEqual(renameColumnSince),
		Returning:           v.GreaterThanOrEqual(returningSince),
		DropColumn:          v.GreaterThanOrEqual(returningSince),
		StrictTables:        v.GreaterThanOrEqual(strictSince),
		RightFullJoin:       v.GreaterThanOrEqual(rightJoinSince),
	}, nil
}

// DefaultCapabilities returns the capabilities of DefaultEngineVersion.
func DefaultCapabilities() Capabilities {
	caps, _ := CapabilitiesFor(DefaultEngineVersion)
	return caps
}
