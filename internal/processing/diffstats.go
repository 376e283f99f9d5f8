package processing

import (
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// DiffStats summarizes code-change volume from the working repo, attached to
// the processor context as auxiliary data.
type DiffStats struct {
	FilesChanged int
	Insertions   int
	Deletions    int
}

// DiffSource fetches auxiliary diff data for a processing pass. Always
// best-effort: failures are swallowed and processing proceeds without it.
type DiffSource interface {
	DiffStats(cwd, commitRange string) (*DiffStats, error)
}

// GitDiffSource shells out to git for diff stats.
type GitDiffSource struct{}

var shortstatRe = regexp.MustCompile(`(\d+) files? changed(?:, (\d+) insertions?\(\+\))?(?:, (\d+) deletions?\(-\))?`)

// DiffStats runs `git diff --shortstat` in cwd. An empty commitRange diffs
// the working tree against HEAD.
func (GitDiffSource) DiffStats(cwd, commitRange string) (*DiffStats, error) {
	args := []string{"diff", "--shortstat"}
	if commitRange != "" {
		args = append(args, commitRange)
	}
	cmd := exec.Command("git", args...)
	cmd.Dir = cwd
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("processing: git diff --shortstat: %w", err)
	}
	return parseShortstat(string(out)), nil
}

// parseShortstat extracts counts from git's shortstat line. An empty diff
// produces zero stats, not an error.
func parseShortstat(out string) *DiffStats {
	stats := &DiffStats{}
	m := shortstatRe.FindStringSubmatch(strings.TrimSpace(out))
	if m == nil {
		return stats
	}
	stats.FilesChanged, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		stats.Insertions, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		stats.Deletions, _ = strconv.Atoi(m[3])
	}
	return stats
}
