package channel

import "strings"

// Allowed reports whether sender may talk to the agent. An empty list allows
// everyone. Composite sender IDs of the form "id|username" match when any
// non-empty part is listed.
func Allowed(allowFrom []string, sender string) bool {
	if len(allowFrom) == 0 {
		return true
	}
	for _, a := range allowFrom {
		if a == sender {
			return true
		}
	}
	if !strings.Contains(sender, "|") {
		return false
	}
	for _, part := range strings.Split(sender, "|") {
		if part == "" {
			continue
		}
		for _, a := range allowFrom {
			if a == part {
				return true
			}
		}
	}
	return false
}
