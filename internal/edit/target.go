package edit

import (
	"strings"
)

// definitionKeywords open a function or class definition across the
// languages the indexer recognizes.
var definitionKeywords = []string{"def ", "class ", "func ", "function "}

// locateDefinition finds the source section defining name. The section runs
// from the defining line to the line before the next definition at equal or
// lesser indentation. Blank lines do not terminate the section.
func locateDefinition(source, name string) (string, bool) {
	lines := strings.Split(source, "\n")

	start := -1
	for i, line := range lines {
		if isDefinitionOf(line, name) {
			start = i
			break
		}
	}
	if start == -1 {
		return "", false
	}

	baseIndent := indentOf(lines[start])
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if indentOf(lines[i]) <= baseIndent && isDefinition(lines[i]) {
			end = i
			break
		}
	}
	return strings.Join(lines[start:end], "\n"), true
}

func isDefinitionOf(line, name string) bool {
	trimmed := strings.TrimSpace(line)
	for _, kw := range definitionKeywords {
		idx := strings.Index(trimmed, kw)
		if idx == -1 {
			continue
		}
		rest := trimmed[idx+len(kw):]
		// Go methods carry a receiver between "func" and the name.
		if kw == "func " && strings.HasPrefix(rest, "(") {
			if close := strings.Index(rest, ")"); close != -1 {
				rest = strings.TrimSpace(rest[close+1:])
			}
		}
		if strings.HasPrefix(rest, name) {
			tail := rest[len(name):]
			if tail == "" || !isIdentChar(tail[0]) {
				return true
			}
		}
	}
	return false
}

func isDefinition(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, kw := range definitionKeywords {
		if strings.HasPrefix(trimmed, kw) {
			return true
		}
	}
	return false
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
