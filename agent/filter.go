package agent

import (
	"regexp"
	"strings"

	"agentworld/core"
	"agentworld/internal/util"
)

// mentionPattern matches @tokens at a word start, so addresses inside words
// ("me@example.com") are not mentions.
var mentionPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}@])@([\p{L}\p{N}_-]+)`)

// Mentions returns the @tokens found in content, without the @ prefix.
func Mentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// Mentioned reports whether content @-mentions the agent. A token matches
// the agent's id, its name, or its name slug, case-insensitively, so
// "@Research-Bot" and "@research-bot" both address an agent named
// "Research Bot".
func Mentioned(a *core.Agent, content string) bool {
	slug := util.Slugify(a.Name)
	for _, token := range Mentions(content) {
		token = strings.ToLower(token)
		if token == strings.ToLower(a.ID) || token == strings.ToLower(a.Name) || token == slug {
			return true
		}
	}
	return false
}

// ShouldRespond decides whether the agent answers msg. The checks run in
// strict priority order:
//
//  1. own messages are never answered
//  2. system messages always are
//  3. directed messages are answered by their recipient only
//  4. human messages are answered without a mention
//  5. peer agent messages need an explicit @mention of this agent,
//     unless the agent has AutoReply set
func ShouldRespond(a *core.Agent, msg core.Message) bool {
	if isSelf(a, msg) {
		return false
	}
	if msg.FromSystem() {
		return true
	}
	if msg.Recipient != "" {
		return addressed(a, msg.Recipient)
	}
	if msg.FromHuman() {
		return true
	}
	return a.AutoReply || Mentioned(a, msg.Content)
}

// addressed reports whether the recipient field names this agent, by id,
// name or name slug.
func addressed(a *core.Agent, recipient string) bool {
	return strings.EqualFold(recipient, a.ID) ||
		strings.EqualFold(recipient, a.Name) ||
		strings.EqualFold(recipient, util.Slugify(a.Name))
}

func isSelf(a *core.Agent, msg core.Message) bool {
	if msg.FromAgentID != "" {
		return msg.FromAgentID == a.ID
	}
	return strings.EqualFold(msg.Sender, a.ID) || strings.EqualFold(msg.Sender, a.Name)
}
