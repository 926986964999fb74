package poller

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	gomail "github.com/emersion/go-message/mail"
)

var (
	tagRe           = regexp.MustCompile(`(?s)<[^>]*>`)
	styleOrScriptRe = regexp.MustCompile(`(?s)<(style|script)[^>]*>.*?</(style|script)>`)
	brRe            = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>`)
)

// extractText pulls the plain-text body out of a full RFC 5322 message.
// text/plain wins; when a client sends HTML only, the markup is stripped so
// the command extractor still has lines to scan.
func extractText(r io.Reader) (string, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("reading message: %w", err)
	}

	var html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading message part: %w", err)
		}

		header, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		ctype, _, err := header.ContentType()
		if err != nil {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return "", fmt.Errorf("reading part body: %w", err)
		}

		switch {
		case strings.EqualFold(ctype, "text/plain"):
			return string(body), nil
		case strings.EqualFold(ctype, "text/html") && html == "":
			html = string(body)
		}
	}

	if html != "" {
		return stripHTML(html), nil
	}
	return "", nil
}

// stripHTML reduces an HTML body to scannable text lines.
func stripHTML(html string) string {
	text := styleOrScriptRe.ReplaceAllString(html, "")
	text = brRe.ReplaceAllString(text, "\n")
	text = tagRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}
