package agent

import (
	"path"
	"regexp"
	"strings"
)

var (
	fullURLPattern  = regexp.MustCompile(`https?://\S+`)
	hostPathPattern = regexp.MustCompile(`github\.com/([\w.-]+)/([\w.-]+)`)
	shorthandRe     = regexp.MustCompile(`\b([A-Za-z][\w.-]*)/([A-Za-z][\w.-]*)\b`)
)

// shorthandStopWords are common words that make a slash pair look like a
// repo reference when it isn't ("download the/latest release").
var shorthandStopWords = map[string]bool{
	"the": true, "and": true, "or": true, "for": true, "with": true, "from": true,
}

// extractRepoTarget pulls a cloneable URL and destination directory out of a
// query. Accepts full URLs, bare github.com paths, and owner/repo shorthand.
// Returns "", "" when nothing looks like a repository.
func extractRepoTarget(query string) (url, dest string) {
	if m := fullURLPattern.FindString(query); m != "" {
		url = strings.TrimRight(m, ".,;:!?)")
		return url, repoName(url)
	}
	if m := hostPathPattern.FindStringSubmatch(query); m != nil {
		url = "https://github.com/" + m[1] + "/" + m[2]
		return url, repoName(url)
	}
	if m := shorthandRe.FindStringSubmatch(query); m != nil {
		owner, repo := strings.ToLower(m[1]), strings.ToLower(m[2])
		if !shorthandStopWords[owner] && !shorthandStopWords[repo] && !strings.Contains(m[2], ".") {
			url = "https://github.com/" + m[1] + "/" + m[2]
			return url, m[2]
		}
	}
	return "", ""
}

func repoName(url string) string {
	name := path.Base(strings.TrimRight(url, "/"))
	return strings.TrimSuffix(name, ".git")
}
