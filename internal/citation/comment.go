package citation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danielolaszy/codefair/pkg/models"
)

// ErrNoPendingCitation is returned when no bot comment carries a pending
// citation block.
var ErrNoPendingCitation = errors.New("citation: no pending citation found")

const (
	pendingTag = "<!-- codefair:citation v1 -->"
	yamlFence  = "```yaml"
	fence      = "```"
)

// PendingComment formats a rendered citation for review. The block is
// tagged so that it can be found again regardless of the surrounding text.
func PendingComment(yamlText, mention string) string {
	if !strings.HasSuffix(yamlText, "\n") {
		yamlText += "\n"
	}
	return pendingTag + "\n" +
		yamlFence + "\n" + yamlText + fence + "\n\n" +
		"Here is the information I was able to gather from this repo. " +
		fmt.Sprintf("If you would like to add more please copy the context and update accordingly and reply with \"%s UPDATE\". ", mention) +
		fmt.Sprintf("If you would like me to create a PR as is please reply with \"%s CONTINUE\".", mention)
}

// ExtractPending returns the YAML inside a tagged pending block.
func ExtractPending(body string) (string, bool) {
	idx := strings.Index(body, pendingTag)
	if idx < 0 {
		return "", false
	}
	return extractFence(body[idx+len(pendingTag):])
}

// LatestPending finds the newest pending block posted by botLogin.
func LatestPending(comments []models.Comment, botLogin string) (string, error) {
	for i := len(comments) - 1; i >= 0; i-- {
		c := comments[i]
		if c.Author != botLogin {
			continue
		}
		if text, ok := ExtractPending(c.Body); ok {
			return text, nil
		}
	}
	return "", ErrNoPendingCitation
}

// ExtractFragment returns the YAML a maintainer supplied with an UPDATE
// directive: the first fenced block if there is one, otherwise the text that
// precedes the directive.
func ExtractFragment(body, directive string) (string, bool) {
	if text, ok := extractFence(body); ok {
		return text, true
	}

	end := strings.Index(body, directive)
	if end < 0 {
		end = len(body)
	}
	text := strings.TrimSpace(body[:end])
	if text == "" {
		return "", false
	}
	return text + "\n", true
}

// extractFence returns the interior of the first ```yaml (or bare ```) block.
func extractFence(s string) (string, bool) {
	start := strings.Index(s, fence)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(fence):]

	// Skip the info string.
	nl := strings.Index(rest, "\n")
	if nl < 0 {
		return "", false
	}
	info := strings.TrimSpace(rest[:nl])
	if info != "" && info != "yaml" && info != "yml" {
		return "", false
	}
	rest = rest[nl+1:]

	end := strings.Index(rest, fence)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
