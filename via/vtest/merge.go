package vtest

import (
	"regexp"
	"strings"
)

var (
	rootTagPattern = regexp.MustCompile(`^\s*<([a-zA-Z][a-zA-Z0-9]*)\b([^>]*)>`)
	idAttrPattern  = regexp.MustCompile(`\sid="([^"]+)"`)
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "source": true, "wbr": true,
}

// mergeElements replaces the element of doc whose id matches the root element
// of fragment. Fragments without a root id, or whose id is not in doc, leave
// doc untouched.
func mergeElements(doc, fragment string) string {
	root := rootTagPattern.FindStringSubmatch(fragment)
	if root == nil {
		return doc
	}
	id := idAttrPattern.FindStringSubmatch(root[2])
	if id == nil {
		return doc
	}
	start, end, ok := elementSpan(doc, id[1])
	if !ok {
		return doc
	}
	return doc[:start] + strings.TrimSpace(fragment) + doc[end:]
}

// elementSpan finds the byte range of the element carrying id in doc.
func elementSpan(doc, id string) (start, end int, ok bool) {
	at := strings.Index(doc, ` id="`+id+`"`)
	if at < 0 {
		return 0, 0, false
	}
	start = strings.LastIndex(doc[:at], "<")
	if start < 0 {
		return 0, 0, false
	}
	m := rootTagPattern.FindStringSubmatch(doc[start:])
	if m == nil {
		return 0, 0, false
	}
	name := strings.ToLower(m[1])
	pos := start + len(m[0])
	if voidElements[name] || strings.HasSuffix(m[0], "/>") {
		return start, pos, true
	}

	open, closing := "<"+name, "</"+name+">"
	depth := 1
	for depth > 0 {
		nextClose := strings.Index(doc[pos:], closing)
		if nextClose < 0 {
			return 0, 0, false
		}
		nextOpen := indexOpenTag(doc[pos:], open)
		if nextOpen >= 0 && nextOpen < nextClose {
			depth++
			pos += nextOpen + len(open)
			continue
		}
		depth--
		pos += nextClose + len(closing)
	}
	return start, pos, true
}

// indexOpenTag finds open followed by a tag boundary, so "<p" skips "<pre".
func indexOpenTag(s, open string) int {
	offset := 0
	for {
		i := strings.Index(s[offset:], open)
		if i < 0 {
			return -1
		}
		j := offset + i + len(open)
		if j < len(s) && (s[j] == '>' || s[j] == ' ' || s[j] == '/' || s[j] == '\n' || s[j] == '\t') {
			return offset + i
		}
		offset = j
	}
}
