package bot

import "strings"

// IsQualifyingReply reports whether ev is a direct reply worth processing:
// it must not come from the bot itself and must contain exactly one
// @-mention. A second @ means the tweet drags in another party (a quote or
// a nested thread reply), so it is skipped. This is a text heuristic, not
// a structural parent-id check; the parent-id filter only applies on the
// historical-search path.
func IsQualifyingReply(ev ReplyEvent, self Identity) bool {
	return ev.AuthorID != self.ID && strings.Count(ev.Text, "@") == 1
}
