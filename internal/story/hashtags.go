package story

import (
	"regexp"
	"strings"
)

var hashtagRe = regexp.MustCompile(`#(\w+)`)

// ExtractHashtags returns the lower-cased, de-duplicated tags of text in order
// of first appearance. The result is never nil.
func ExtractHashtags(text string) []string {
	tags := []string{}
	seen := make(map[string]struct{})
	for _, m := range hashtagRe.FindAllStringSubmatch(text, -1) {
		tag := strings.ToLower(m[1])
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
