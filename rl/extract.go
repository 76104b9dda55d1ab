package rl

import (
	"regexp"
	"strings"
)

// fenceRe matches a fenced code block with an optional language tag.
var fenceRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)[ \t]*\r?\n(.*?)```")

// knownLanguages are fence tags that mark a block as an actual code
// submission rather than, say, quoted output or prose.
var knownLanguages = map[string]struct{}{
	"python": {}, "py": {}, "go": {}, "golang": {}, "rust": {},
	"c": {}, "cpp": {}, "c++": {}, "java": {}, "javascript": {},
	"js": {}, "typescript": {}, "ts": {},
}

// Extract locates a candidate code block inside free-form model text.
//
// Blocks tagged with a known language take precedence over untagged ones;
// among equals the earliest block wins. A response with no usable block is
// a normal outcome, not an error: WellFormed is false and Code is empty.
// Extract is deterministic and side-effect free.
func Extract(response string) Extraction {
	matches := fenceRe.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return Extraction{}
	}

	var fallback string
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		code := strings.TrimRight(m[2], "\n")
		if strings.TrimSpace(code) == "" {
			continue
		}
		if _, ok := knownLanguages[tag]; ok {
			return Extraction{Code: code, WellFormed: true}
		}
		if fallback == "" {
			fallback = code
		}
	}

	if fallback == "" {
		return Extraction{}
	}
	return Extraction{Code: fallback, WellFormed: true}
}
