package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

// Wire format for code-bearing replies: a start marker carrying the
// relative path, a fenced code block, and an end marker.
//
//	--- File: path/to/file ---
//	```lang
//	content
//	```
//	--- End File ---
var (
	fileBlockRe   = regexp.MustCompile("(?ms)^--- File: (\\S+) ---\\s*\\n```[\\w.+-]*\\n(.*?)\\n```\\s*\\n--- End File ---")
	startMarkerRe = regexp.MustCompile(`(?m)^--- File: (\S+) ---`)
	fenceOnlyRe   = regexp.MustCompile("(?ms)^```[\\w.+-]*\\n(.*?)\\n```")
)

// ExtractFiles parses every file block out of a raw reply. Well-formed
// blocks map path to content. A start marker without a complete block
// degrades to a placeholder entry plus a warning rather than a
// failure.
func ExtractFiles(raw string) (map[string]string, []string) {
	files := make(map[string]string)
	var warnings []string

	matched := fileBlockRe.FindAllStringSubmatchIndex(raw, -1)
	for _, m := range matched {
		path := raw[m[2]:m[3]]
		content := raw[m[4]:m[5]]
		files[path] = content
	}

	// Start markers not consumed by a well-formed block
	starts := startMarkerRe.FindAllStringSubmatchIndex(raw, -1)
	placeholder := 0
	for _, s := range starts {
		if coveredBy(matched, s[0]) {
			continue
		}
		placeholder++
		path := fmt.Sprintf("unparsed_block_%d.txt", placeholder)
		declared := raw[s[2]:s[3]]

		segment := raw[s[1]:]
		if next := startMarkerRe.FindStringIndex(segment); next != nil {
			segment = segment[:next[0]]
		}
		segment = strings.TrimSuffix(strings.TrimSpace(segment), "--- End File ---")
		files[path] = strings.TrimSpace(stripFence(segment))
		warnings = append(warnings, fmt.Sprintf("file block %q missing end marker, stored as %s", declared, path))
	}

	// A markerless reply that still carries a fenced block
	if len(starts) == 0 {
		if m := fenceOnlyRe.FindStringSubmatch(raw); m != nil {
			files["unparsed_block_1.txt"] = m[1]
			warnings = append(warnings, "reply carried a code block without file markers, stored as unparsed_block_1.txt")
		}
	}

	return files, warnings
}

func coveredBy(matches [][]int, pos int) bool {
	for _, m := range matches {
		if pos >= m[0] && pos < m[1] {
			return true
		}
	}
	return false
}

// stripFence removes a single surrounding fenced code block when the
// text is nothing but that block, and drops any leading language tag
func stripFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// StripFence is the exported form used for sub-injection code replies
func StripFence(s string) string {
	return stripFence(s)
}
