package gitops

import (
	"fmt"

	"github.com/releasekit/releasekit/pkg/types"
)

// FormatTag returns the canonical release tag for a package version,
// "{pkg}-v{version}". The scheme is injective across versions for a fixed
// package and across packages for a fixed version. Package names that
// themselves end in "-v" followed by digits can produce a tag another
// package/version pair would also produce; that ambiguity is a known
// limitation of the naming scheme.
func FormatTag(pkg string, version types.Version) string {
	return fmt.Sprintf("%s-v%s", pkg, version.String())
}
