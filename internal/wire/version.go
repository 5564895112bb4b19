package wire

import "fmt"

// Version is the three-component protocol version carried in every frame
// header, mirroring the upstream Version{major:u8,minor:u16,patch:u16}.
type Version struct {
	Major uint8
	Minor uint16
	Patch uint16
}

// CurrentVersion is the version this build of the engine speaks.
var CurrentVersion = Version{Major: 0, Minor: 1, Patch: 0}

// IsCompatible reports whether two versions can interoperate. Only the
// major component is compared; minor/patch differences never break wire
// compatibility.
func (v Version) IsCompatible(other Version) bool {
	return v.Major == other.Major
}

// String renders the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
