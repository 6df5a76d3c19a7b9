package asdustat

import (
	"fmt"

	"github.com/bft-labs/asdustat/pkg/log"
)

// Version information for the asdustat module.
const (
	// Version is the current version of the asdustat module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"
)

// ModuleVersions returns the versions of the public sub-modules.
func ModuleVersions() map[string]string {
	return map[string]string{
		"asdustat": Version,
		"log":      log.Version,
	}
}

// CompatibilityMatrix returns the minimum compatible version of each sub-module.
func CompatibilityMatrix() map[string]string {
	return map[string]string{
		"asdustat": MinCompatibleVersion,
		"log":      log.MinCompatibleVersion,
	}
}

// validateModuleVersions checks that all module versions are compatible.
func validateModuleVersions() error {
	versions := ModuleVersions()
	for name, minVersion := range CompatibilityMatrix() {
		if !isVersionCompatible(versions[name], minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, versions[name], minVersion)
		}
	}
	return nil
}

// isVersionCompatible reports whether version >= minVersion.
// Versions are "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
