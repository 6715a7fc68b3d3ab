package posts

import "strings"

// ParseTags derives a tag set from a comma-separated string, stripping all
// whitespace. An absent string yields an empty set.
func ParseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}

	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.Join(strings.Fields(part), "")
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}
