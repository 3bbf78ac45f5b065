package publish

import (
	"regexp"
	"strings"

	"github.com/releasekit/releasekit/pkg/types"
)

// Markers that registries and CLIs emit when credentials are missing or
// expired. Matching is case-insensitive over combined stdout+stderr.
var authMarkers = []string{
	"unauthorized",
	"authentication",
	"not logged in",
}

var httpAuthCode = regexp.MustCompile(`\b(401|403)\b`)

// Classify maps a failed external operation's output onto a failure class.
// Auth failures are distinguished so the operator gets a login hint instead
// of a raw registry error.
func Classify(output string) types.FailureClass {
	lower := strings.ToLower(output)
	for _, marker := range authMarkers {
		if strings.Contains(lower, marker) {
			return types.FailureAuthRequired
		}
	}
	if httpAuthCode.MatchString(output) {
		return types.FailureAuthRequired
	}
	return types.FailureGeneric
}

// RemediationHint returns the login command that resolves an auth failure
// against the named tool, or "" when none applies
func RemediationHint(tool string) string {
	switch tool {
	case "npm":
		return "npm login"
	case "docker":
		return "docker login"
	case "vscode":
		return "vsce login"
	case "github":
		return "gh auth login"
	}
	return ""
}
