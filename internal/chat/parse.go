package chat

import (
	"regexp"
	"strconv"
	"strings"
)

// fallbackBotNames are addressing prefixes stripped even when no bot name
// is configured, covering the common aliases people type at the bot.
var fallbackBotNames = []string{"task_master", "taskmanager", "task manager", "bot"}

var fieldSelectionRe = regexp.MustCompile(`^(\d+)(?:[).:\-]\s*|\s+)?(.*)$`)

var updateNumberRe = regexp.MustCompile(`^(\d+)\b`)

// fixCategoryAliases maps the token after "fix:" to a canonical category.
var fixCategoryAliases = map[string]string{
	"person":   "people",
	"people":   "people",
	"project":  "projects",
	"projects": "projects",
	"idea":     "ideas",
	"ideas":    "ideas",
	"admin":    "admin",
}

// StripBotPrefix removes a leading mention of the bot ("@jot ...",
// "jot: ...") so the rest parses the same whether or not the user
// addressed the bot explicitly.
func StripBotPrefix(text, botName string) string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return cleaned
	}
	names := make([]string, 0, len(fallbackBotNames)+1)
	if name := strings.ToLower(strings.TrimSpace(botName)); name != "" {
		names = append(names, name)
	}
	names = append(names, fallbackBotNames...)

	lower := strings.ToLower(cleaned)
	for _, name := range names {
		for _, variant := range []string{name, "@" + name} {
			for _, sep := range []string{" ", ":"} {
				prefix := variant + sep
				if strings.HasPrefix(lower, prefix) {
					return cleaned[len(prefix):]
				}
			}
		}
	}
	return cleaned
}

// parseCommand recognizes the digest and help keywords. Returns "" when
// the text is not a command.
func parseCommand(text, botName string) string {
	cleaned := strings.ToLower(strings.TrimSpace(StripBotPrefix(text, botName)))
	if cleaned == "" {
		return ""
	}
	cleaned = strings.ReplaceAll(cleaned, "?", "")
	cleaned = strings.ReplaceAll(cleaned, "!", "")
	tokens := strings.Fields(cleaned)
	switch {
	case len(tokens) == 0:
		return ""
	case len(tokens) == 1:
		switch tokens[0] {
		case "help", "commands":
			return "help"
		case "next":
			return "next"
		case "today", "daily":
			return "today"
		case "week", "weekly":
			return "week"
		}
	case len(tokens) == 2 && tokens[0] == "this" && tokens[1] == "week":
		return "week"
	}
	return ""
}

// parseUpdateRequest extracts N from "update N" / "update: N". The bool
// is false when the text is not an update request; a parsed 0 is
// reported so the range check can reject it.
func parseUpdateRequest(text, botName string) (int, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(StripBotPrefix(text, botName)))
	if !strings.HasPrefix(cleaned, "update") {
		return 0, false
	}
	remainder := strings.TrimSpace(strings.TrimPrefix(cleaned, "update"))
	remainder = strings.TrimSpace(strings.TrimPrefix(remainder, ":"))
	m := updateNumberRe.FindStringSubmatch(remainder)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseFieldSelection splits "2", "2) New Value", "2: New Value" into the
// 1-based selection and the optional inline value. The bool is false when
// the text does not start with a number; a leading 0 still parses so the
// range check can reject it.
func parseFieldSelection(text, botName string) (int, string, bool) {
	cleaned := strings.TrimSpace(StripBotPrefix(text, botName))
	m := fieldSelectionRe.FindStringSubmatch(cleaned)
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return n, strings.TrimSpace(m[2]), true
}

// parseFixCategory resolves "fix: project" style replies to a category.
// Returns "" when the text is not a fix reply or the category is unknown.
func parseFixCategory(text string) string {
	lower := strings.ToLower(text)
	if !strings.HasPrefix(lower, "fix:") {
		return ""
	}
	remainder := strings.TrimSpace(lower[len("fix:"):])
	if remainder == "" {
		return ""
	}
	token := strings.Fields(remainder)[0]
	return fixCategoryAliases[token]
}

// isCancel reports whether the text cancels a pending update.
func isCancel(text, botName string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(StripBotPrefix(text, botName)))
	return cleaned == "cancel" || cleaned == "update cancel"
}
