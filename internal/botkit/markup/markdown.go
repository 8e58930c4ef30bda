package markup

import "strings"

// Characters MarkdownV2 reserves outside of entities.
const reserved = "_*[]()~`>#+-=|{}.!\\"

var replacer = func() *strings.Replacer {
	pairs := make([]string, 0, 2*len(reserved))
	for _, r := range reserved {
		pairs = append(pairs, string(r), "\\"+string(r))
	}
	return strings.NewReplacer(pairs...)
}()

// EscapeForMarkdown escapes src for Telegram MarkdownV2 text.
func EscapeForMarkdown(src string) string {
	return replacer.Replace(src)
}

// Bold escapes src and wraps it in bold markers.
func Bold(src string) string {
	return "*" + EscapeForMarkdown(src) + "*"
}
