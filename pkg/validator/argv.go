package validator

import (
	"regexp"
	"strings"

	"github.com/harun/ffmpeg-mcp/pkg/policy"
)

type tokenKind int

const (
	kindFlag tokenKind = iota
	kindValue
	kindPositional
)

// token is one argv element annotated with the role ffmpeg will give it
type token struct {
	index int
	raw   string
	kind  tokenKind
	// flag is the normalized option a value belongs to (or the flag itself)
	flag string
	// format is the most recent -f value when this token was read
	format string
}

// Options that never consume the following argument.
var booleanFlags = map[string]struct{}{
	"-y": {}, "-n": {}, "-version": {}, "-h": {}, "-help": {}, "-?": {}, "-L": {},
	"-buildconf": {}, "-formats": {}, "-demuxers": {}, "-muxers": {}, "-devices": {},
	"-codecs": {}, "-decoders": {}, "-encoders": {}, "-bsfs": {}, "-protocols": {},
	"-filters": {}, "-pix_fmts": {}, "-layouts": {}, "-sample_fmts": {}, "-colors": {},
	"-hwaccels": {}, "-dispositions": {},
	"-hide_banner": {}, "-nostdin": {}, "-stdin": {}, "-an": {}, "-vn": {}, "-sn": {},
	"-dn": {}, "-shortest": {}, "-stats": {}, "-nostats": {}, "-benchmark": {},
	"-benchmark_all": {}, "-report": {}, "-copyts": {}, "-start_at_zero": {},
	"-re": {}, "-ignore_unknown": {}, "-copy_unknown": {}, "-noautorotate": {},
	"-autorotate": {}, "-accurate_seek": {}, "-noaccurate_seek": {}, "-xerror": {},
	"-dump": {}, "-hex": {}, "-debug_ts": {}, "-vstats": {}, "-psnr": {},
	"-autoscale": {}, "-noautoscale": {}, "-fix_sub_duration": {}, "-intra": {},
	"-seek_timestamp": {}, "-nostdin_interaction": {}, "-copyinkf": {},
	"-bitexact": {}, "-recast_media": {}, "-ignore_chapters": {}, "-qphist": {},
	"-find_stream_info": {}, "-print_graphs": {}, "-fix_sub_duration_heartbeat": {},
}

// Options whose value names a file or URL. Values of every other option are
// still confined as opaque strings, so a missing entry here never opens a
// path outside the root.
var pathFlags = map[string]struct{}{
	"-i":                      {},
	"-progress":               {},
	"-passlogfile":            {},
	"-vstats_file":            {},
	"-attach":                 {},
	"-sdp_file":               {},
	"-segment_list":           {},
	"-hls_segment_filename":   {},
	"-hls_key_info_file":      {},
	"-hls_fmp4_init_filename": {},
	"-fpre":                   {},
	"-vpre":                   {},
	"-apre":                   {},
	"-spre":                   {},
	"-stats_enc_pre":          {},
	"-stats_enc_post":         {},
	"-stats_mux_pre":          {},
	"-ca_file":                {},
	"-cert_file":              {},
	"-key_file":               {},
	"-print_graphs_file":      {},
}

// Options whose value is a filtergraph.
var filterFlags = map[string]struct{}{
	"-vf":             {},
	"-af":             {},
	"-filter":         {},
	"-filter_complex": {},
	"-lavfi":          {},
}

// Elements made only of these runes are shell syntax, not ffmpeg arguments.
const shellRunes = ";|&<>`$(){}!*?~#\\"

var shellOperators = map[string]struct{}{
	"&&": {}, "||": {}, ";": {}, "|": {}, ">": {}, ">>": {}, "<": {}, "<<": {},
	"&": {}, "`": {}, "$": {}, "$(": {}, "${": {}, "2>": {}, "2>&1": {}, "&>": {},
}

var schemePattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.\-]*):(.*)$`)

// tokenize assigns ffmpeg roles to argv elements. Anything starting with a
// dash (other than "-" itself) is an option; options not known to be boolean
// consume the next element as their value.
func tokenize(args []string) []token {
	tokens := make([]token, 0, len(args))
	format := ""

	for i := 0; i < len(args); i++ {
		raw := args[i]
		if !isFlag(raw) {
			tokens = append(tokens, token{index: i, raw: raw, kind: kindPositional, format: format})
			format = ""
			continue
		}

		name := policy.NormalizeFlag(raw)
		tokens = append(tokens, token{index: i, raw: raw, kind: kindFlag, flag: name, format: format})

		if _, ok := booleanFlags[name]; ok {
			continue
		}
		if i+1 >= len(args) {
			continue
		}

		i++
		tokens = append(tokens, token{index: i, raw: args[i], kind: kindValue, flag: name, format: format})

		switch name {
		case "-f":
			format = strings.ToLower(args[i])
		case "-i":
			// -f applies to the next input or output only
			format = ""
		}
	}

	return tokens
}

func isFlag(arg string) bool {
	return len(arg) > 1 && arg[0] == '-'
}

// pathBearing reports whether the token names a file or URL ffmpeg will open
func (t token) pathBearing() bool {
	switch t.kind {
	case kindPositional:
		return true
	case kindValue:
		_, ok := pathFlags[t.flag]
		return ok
	}
	return false
}

// filterBearing reports whether the token is a filtergraph description
func (t token) filterBearing() bool {
	if t.kind != kindValue {
		return false
	}
	if _, ok := filterFlags[t.flag]; ok {
		return true
	}
	return t.flag == "-i" && t.format == "lavfi"
}

// target is one string ffmpeg may open. Strict targets are URLs or paths
// given to an option that opens them; the rest are opaque option values.
type target struct {
	value  string
	strict bool
}

// targets lists what the token could make ffmpeg open. Filtergraphs yield
// every filter option value and tee outputs yield each slave.
func (t token) targets() []target {
	if t.kind == kindFlag || t.raw == "-" {
		return nil
	}

	if t.filterBearing() {
		var out []target
		for _, f := range parseFiltergraph(t.raw) {
			for _, a := range f.args {
				out = append(out, target{value: a.value})
			}
		}
		return out
	}

	if !t.pathBearing() {
		return []target{{value: t.raw}}
	}

	if t.kind == kindPositional && t.format == "tee" {
		var out []target
		for _, slave := range teeSlaves(t.raw) {
			out = append(out, target{value: slave, strict: true})
		}
		return out
	}

	return []target{{value: t.raw, strict: true}}
}

// localPath returns the filesystem path a target names. A strict target with
// a non-file scheme is a URL left to the protocol check. Opaque values keep
// whatever follows a scheme prefix.
func (tg target) localPath() (string, bool) {
	scheme, rest, ok := splitScheme(tg.value)
	switch {
	case !ok:
		return tg.value, true
	case scheme == "file":
		return strings.TrimPrefix(rest, "//"), true
	case tg.strict:
		return "", false
	default:
		return rest, true
	}
}

// teeSlaves splits a tee muxer output into its slave targets, dropping the
// "[options]" prefix of each.
func teeSlaves(s string) []string {
	var slaves []string
	for s != "" {
		slave, rest := getToken(s, "|")
		if strings.HasPrefix(slave, "[") {
			end := strings.IndexByte(slave, ']')
			if end < 0 {
				// unterminated options swallow the whole slave
				slave = ""
			} else {
				slave = strings.TrimSpace(slave[end+1:])
			}
		}
		if slave != "" {
			slaves = append(slaves, slave)
		}
		s = strings.TrimPrefix(rest, "|")
	}
	return slaves
}

// splitScheme splits "scheme:rest". Single-letter schemes are treated as
// drive letters and not matched. The subfile protocol carries its options
// before the colon.
func splitScheme(s string) (scheme, rest string, ok bool) {
	if len(s) > 8 && strings.EqualFold(s[:8], "subfile,") {
		if colon := strings.IndexByte(s, ':'); colon >= 0 {
			return "subfile", s[colon+1:], true
		}
	}

	m := schemePattern.FindStringSubmatch(s)
	if m == nil || len(m[1]) < 2 {
		return "", s, false
	}
	return strings.ToLower(m[1]), m[2], true
}

func shellOnly(arg string) bool {
	if _, ok := shellOperators[arg]; ok {
		return true
	}
	trimmed := strings.TrimSpace(arg)
	if trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		if !strings.ContainsRune(shellRunes, r) {
			return false
		}
	}
	return true
}

// filterNames extracts the filter names referenced by a filtergraph
// description such as "[0:v]scale=640:-1,movie=x.mp4[out]".
func filterNames(graph string) []string {
	var names []string
	for _, f := range parseFiltergraph(graph) {
		names = append(names, f.name)
	}
	return names
}
