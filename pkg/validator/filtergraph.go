package validator

import "strings"

const whitespace = " \n\t\r"

// filterSpec is one filter instance of a filtergraph
type filterSpec struct {
	name string
	args []filterArg
}

// filterArg is one filter option. key is empty for positional values and
// starts with "/" when ffmpeg loads the value from a file.
type filterArg struct {
	key   string
	value string
}

// getToken reads s up to the first byte in term that is neither escaped nor
// quoted. Backslash escapes one byte, single quotes group literally, leading
// and unescaped trailing whitespace is dropped. It returns the unescaped
// token and the unread remainder, which starts with the terminator.
func getToken(s, term string) (string, string) {
	s = strings.TrimLeft(s, whitespace)

	var b strings.Builder
	keep := 0
	i := 0
	for i < len(s) && strings.IndexByte(term, s[i]) < 0 {
		c := s[i]
		i++
		switch {
		case c == '\\' && i < len(s):
			b.WriteByte(s[i])
			i++
			keep = b.Len()
		case c == '\'':
			for i < len(s) && s[i] != '\'' {
				b.WriteByte(s[i])
				i++
			}
			if i < len(s) {
				i++
				keep = b.Len()
			}
		default:
			b.WriteByte(c)
		}
	}

	tok := b.String()
	for len(tok) > keep && strings.IndexByte(whitespace, tok[len(tok)-1]) >= 0 {
		tok = tok[:len(tok)-1]
	}
	return tok, s[i:]
}

// parseFiltergraph splits a filtergraph into filters with their options
// unescaped. Malformed input is skipped one byte at a time so every filter
// ffmpeg could still find is reported.
func parseFiltergraph(graph string) []filterSpec {
	var filters []filterSpec

	s := graph
	for {
		s = skipLinkLabels(s)
		if s == "" {
			return filters
		}

		name, rest := getToken(s, "=,;[")
		args := ""
		if strings.HasPrefix(rest, "=") {
			args, rest = getToken(rest[1:], "[],;")
		}

		if name = normalizeFilterName(name); name != "" {
			filters = append(filters, filterSpec{name: name, args: parseFilterArgs(args)})
		}

		// separator, or a stray byte such as "]"
		if rest = skipLinkLabels(rest); rest != "" {
			rest = rest[1:]
		}
		s = rest
	}
}

func skipLinkLabels(s string) string {
	for {
		s = strings.TrimLeft(s, whitespace)
		if !strings.HasPrefix(s, "[") {
			return s
		}
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return ""
		}
		s = s[end+1:]
	}
}

// normalizeFilterName drops the "@instance" suffix
func normalizeFilterName(name string) string {
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// parseFilterArgs splits "key=value:positional:..." into options, resolving
// one more level of escaping for each value.
func parseFilterArgs(args string) []filterArg {
	var out []filterArg

	s := args
	for s != "" {
		s = strings.TrimLeft(s, whitespace)

		k := 0
		for k < len(s) && isOptionKeyChar(s[k]) {
			k++
		}
		after := strings.TrimLeft(s[k:], whitespace)

		var arg filterArg
		if k > 0 && strings.HasPrefix(after, "=") {
			arg.key = s[:k]
			arg.value, s = getToken(after[1:], ":")
		} else {
			arg.value, s = getToken(s, ":")
		}
		if arg.key != "" || arg.value != "" {
			out = append(out, arg)
		}

		s = strings.TrimPrefix(s, ":")
	}

	return out
}

func isOptionKeyChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return c == '-' || c == '_' || c == '/' || c == '.'
}
