package manifest

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ExtractChangelog returns the body of the changelog section for a version.
// It recognizes keep-a-changelog style headings, "## [1.2.3]" with or
// without a trailing date, plus the bare "## 1.2.3" form. A missing file or
// missing section yields an empty excerpt, not an error.
func ExtractChangelog(path, version string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to open changelog: %w", err)
	}
	defer file.Close()

	var (
		lines     []string
		inSection bool
	)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "## ") {
			if inSection {
				break
			}
			if headingMatchesVersion(line, version) {
				inSection = true
			}
			continue
		}

		if inSection {
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read changelog: %w", err)
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func headingMatchesVersion(line, version string) bool {
	heading := strings.TrimSpace(strings.TrimPrefix(line, "## "))
	heading = strings.TrimPrefix(heading, "[")

	return strings.HasPrefix(heading, version+"]") ||
		heading == version ||
		strings.HasPrefix(heading, version+" ")
}
