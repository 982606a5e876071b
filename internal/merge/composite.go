package merge

import (
	"strings"
)

const (
	beginMarker = "<!-- agpm:begin "
	endMarker   = "<!-- agpm:end "
	markerClose = " -->"
)

// Section wraps content in begin/end markers naming the bundle, so that a
// later composite merge replaces the bundle's own section instead of
// appending a second copy.
func Section(bundle, content string) string {
	var b strings.Builder
	b.WriteString(beginMarker + bundle + markerClose + "\n")
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(endMarker + bundle + markerClose + "\n")
	return b.String()
}

type section struct {
	name       string
	start, end int // byte span including both markers and the trailing newline
}

// sections finds every well-formed marked section in s, in order.
func sections(s string) []section {
	var out []section
	off := 0
	for {
		i := strings.Index(s[off:], beginMarker)
		if i < 0 {
			return out
		}
		start := off + i
		rest := s[start+len(beginMarker):]
		j := strings.Index(rest, markerClose)
		if j < 0 || strings.Contains(rest[:j], "\n") {
			off = start + len(beginMarker)
			continue
		}
		name := rest[:j]
		end := strings.Index(s[start:], endMarker+name+markerClose)
		if end < 0 {
			off = start + len(beginMarker)
			continue
		}
		end = start + end + len(endMarker+name+markerClose)
		if end < len(s) && s[end] == '\n' {
			end++
		}
		out = append(out, section{name: name, start: start, end: end})
		off = end
	}
}

// composite merges incoming text into existing. Each marked section of
// incoming replaces the existing section of the same name or is appended.
// Unmarked incoming text is appended unless existing already contains it.
func composite(existing, incoming string) string {
	if strings.TrimSpace(existing) == "" {
		return incoming
	}

	secs := sections(incoming)
	if len(secs) == 0 {
		if strings.Contains(existing, incoming) {
			return existing
		}
		return appendBlock(existing, incoming)
	}

	out := existing
	for _, in := range secs {
		body := incoming[in.start:in.end]
		replaced := false
		for _, ex := range sections(out) {
			if ex.name == in.name {
				out = out[:ex.start] + body + out[ex.end:]
				replaced = true
				break
			}
		}
		if !replaced {
			out = appendBlock(out, body)
		}
	}
	return out
}

func appendBlock(existing, block string) string {
	if !strings.HasSuffix(existing, "\n") {
		existing += "\n"
	}
	if !strings.HasSuffix(existing, "\n\n") {
		existing += "\n"
	}
	return existing + block
}

// Strip removes the named bundle's section from content. The boolean
// reports whether a section was found.
func Strip(content, bundle string) (string, bool) {
	for _, s := range sections(content) {
		if s.name == bundle {
			out := strings.TrimRight(content[:s.start]+content[s.end:], "\n")
			if out == "" {
				return "", true
			}
			return out + "\n", true
		}
	}
	return content, false
}
