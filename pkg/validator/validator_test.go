package validator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harun/ffmpeg-mcp/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T, mutate ...func(*policy.Config)) (*Validator, string) {
	t.Helper()

	cfg := policy.DefaultConfig()
	cfg.BinaryPath = "sh"
	cfg.WorkDirRoot = t.TempDir()
	for _, m := range mutate {
		m(&cfg)
	}

	p, err := policy.New(cfg)
	require.NoError(t, err)

	return New(p), p.Root()
}

func requireReason(t *testing.T, err error, reason Reason) *ValidationError {
	t.Helper()

	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	assert.Equal(t, reason, verr.Reason, verr.Error())
	return verr
}

func TestValidateAcceptsTypicalCommands(t *testing.T) {
	v, root := newTestValidator(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "media"), 0755))

	tests := []struct {
		name string
		args []string
	}{
		{"version", []string{"-version"}},
		{"transcode", []string{"-y", "-i", "in.mp4", "-c:v", "libx264", "-crf", "23", "out.mp4"}},
		{"absolute inside root", []string{"-i", filepath.Join(root, "media", "in.wav"), "out.mp3"}},
		{"file scheme", []string{"-i", "file:in.mp4", "file:out.mkv"}},
		{"pipe output", []string{"-i", "in.mp4", "-f", "null", "pipe:1"}},
		{"stdout", []string{"-i", "in.mp4", "-f", "mp4", "-"}},
		{"scale filter", []string{"-i", "in.mp4", "-vf", "scale=640:-1,format=yuv420p", "out.mp4"}},
		{"lavfi source", []string{"-f", "lavfi", "-i", "testsrc=duration=1:size=320x240", "-f", "null", "-"}},
		{"map and seek", []string{"-ss", "00:00:05", "-i", "in.mp4", "-map", "0:v", "-t", "2", "clip.mp4"}},
		{"metadata value", []string{"-i", "in.mp4", "-metadata", "title=My clip", "out.mp4"}},
		{"nested new dir", []string{"-i", "in.mp4", "renders/2024/out.mp4"}},
		{"boolean before output", []string{"-i", "in.mp4", "-copyinkf", "-bitexact", "out.mp4"}},
		{"drawtext inside root", []string{"-i", "in.mp4", "-vf", "drawtext=textfile=caption.txt:fontfile=media/font.ttf:text='Time\\: 1'", "out.mp4"}},
		{"subtitles inside root", []string{"-i", "in.mp4", "-vf", "subtitles=media/subs.srt", "out.mp4"}},
		{"segment list inside root", []string{"-i", "in.mp4", "-f", "segment", "-segment_list", "list.csv", "out%03d.ts"}},
		{"tee inside root", []string{"-i", "in.mp4", "-map", "0", "-f", "tee", "[f=mp4]a.mp4|[f=nut:onfail=ignore]media/b.nut"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			safe, err := v.Validate(Request{Args: tt.args})
			require.NoError(t, err)
			assert.True(t, safe.Checked())
			assert.Equal(t, tt.args, safe.Argv())
			assert.Equal(t, root, safe.Dir())
		})
	}
}

func TestValidateSizeLimits(t *testing.T) {
	v, _ := newTestValidator(t, func(c *policy.Config) {
		c.MaxArgs = 4
		c.MaxArgBytes = 16
	})

	_, err := v.Validate(Request{})
	requireReason(t, err, ReasonSizeLimit)

	_, err = v.Validate(Request{Args: []string{"-y", "-i", "a", "b", "c"}})
	requireReason(t, err, ReasonSizeLimit)

	_, err = v.Validate(Request{Args: []string{"-i", strings.Repeat("a", 15)}})
	verr := requireReason(t, err, ReasonSizeLimit)
	assert.Equal(t, -1, verr.Index)

	_, err = v.Validate(Request{Args: []string{"-i", "a.mp4", "b.mp4"}})
	assert.NoError(t, err)
}

func TestValidateHygiene(t *testing.T) {
	v, _ := newTestValidator(t)

	tests := []struct {
		name   string
		args   []string
		reason Reason
		index  int
	}{
		{"empty", []string{"-i", "", "out.mp4"}, ReasonEmptyArgument, 1},
		{"blank", []string{"-i", "in.mp4", "  "}, ReasonEmptyArgument, 2},
		{"and", []string{"-i", "in.mp4", "&&", "out.mp4"}, ReasonShellOperator, 2},
		{"pipe", []string{"-version", "|"}, ReasonShellOperator, 1},
		{"redirect", []string{"-version", ">"}, ReasonShellOperator, 1},
		{"substitution", []string{"-version", "$("}, ReasonShellOperator, 1},
		{"semicolon", []string{";", "-version"}, ReasonShellOperator, 0},
		{"newline", []string{"-i", "in.mp4\nrm -rf /", "out.mp4"}, ReasonInvalidCharacter, 1},
		{"nul", []string{"-i", "in\x00.mp4", "out.mp4"}, ReasonInvalidCharacter, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(Request{Args: tt.args})
			verr := requireReason(t, err, tt.reason)
			assert.Equal(t, tt.index, verr.Index)
		})
	}
}

func TestValidatePathEscape(t *testing.T) {
	v, root := newTestValidator(t)

	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link-out")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "missing"), filepath.Join(root, "dangling")))
	require.NoError(t, os.Mkdir(filepath.Join(root, "inside"), 0755))
	require.NoError(t, os.Symlink(filepath.Join(root, "inside"), filepath.Join(root, "link-in")))

	tests := []struct {
		name  string
		args  []string
		index int
	}{
		{"parent traversal input", []string{"-i", "../../etc/passwd", "out.mp4"}, 1},
		{"absolute input", []string{"-i", "/etc/passwd", "out.mp4"}, 1},
		{"traversal output", []string{"-i", "in.mp4", "a/../../out.mp4"}, 2},
		{"file scheme", []string{"-i", "file:../secret.wav", "out.mp4"}, 1},
		{"file url", []string{"-i", "file:///etc/passwd", "out.mp4"}, 1},
		{"progress file", []string{"-progress", "/tmp/progress.txt", "-i", "in.mp4", "out.mp4"}, 1},
		{"passlogfile", []string{"-i", "in.mp4", "-passlogfile", "../log", "out.mp4"}, 3},
		{"symlink out of root", []string{"-i", "link-out/in.mp4", "out.mp4"}, 1},
		{"dangling symlink", []string{"-i", "in.mp4", "dangling"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(Request{Args: tt.args})
			verr := requireReason(t, err, ReasonPathEscape)
			assert.Equal(t, tt.index, verr.Index)
		})
	}

	t.Run("symlink within root", func(t *testing.T) {
		_, err := v.Validate(Request{Args: []string{"-i", "link-in/in.mp4", "link-in/out.mp4"}})
		assert.NoError(t, err)
	})
}

func TestValidateConfinesOptionValues(t *testing.T) {
	v, _ := newTestValidator(t)

	tests := []struct {
		name  string
		args  []string
		index int
	}{
		{"copyinkf output", []string{"-i", "in.mp4", "-copyinkf", "/tmp/escape.mp4"}, 3},
		{"bitexact output", []string{"-i", "in.mp4", "-bitexact", "../../../tmp/escape.mp4"}, 3},
		{"recast_media output", []string{"-recast_media", "-i", "in.mp4", "/tmp/escape.mp4"}, 3},
		{"ignore_chapters output", []string{"-ignore_chapters", "-i", "in.mp4", "/tmp/escape.mp4"}, 3},
		{"unknown option swallowing output", []string{"-i", "in.mp4", "-made_up_switch", "/tmp/escape.mp4"}, 3},
		{"opaque value with scheme", []string{"-i", "in.mp4", "-metadata", "concat:/etc/passwd", "out.mp4"}, 3},
		{"segment list", []string{"-i", "in.mp4", "-f", "segment", "-segment_list", "/tmp/list.csv", "out%03d.ts"}, 5},
		{"hls segment filename", []string{"-i", "in.mp4", "-hls_segment_filename", "/tmp/seg%03d.ts", "out.m3u8"}, 3},
		{"hls key info", []string{"-i", "in.mp4", "-hls_key_info_file", "../../../etc/keyinfo", "out.m3u8"}, 3},
		{"preset file", []string{"-i", "in.mp4", "-fpre", "/etc/passwd", "out.mp4"}, 3},
		{"video preset", []string{"-i", "in.mp4", "-vpre", "/etc/passwd", "out.mp4"}, 3},
		{"encoder stats", []string{"-i", "in.mp4", "-stats_enc_pre:v", "/tmp/stats.log", "out.mp4"}, 3},
		{"muxer stats", []string{"-i", "in.mp4", "-stats_mux_pre", "/tmp/stats.log", "out.mp4"}, 3},
		{"tee slave options", []string{"-i", "in.mp4", "-f", "tee", "[f=mp4]/tmp/escape.mp4"}, 4},
		{"second tee slave", []string{"-i", "in.mp4", "-f", "tee", "a.mp4|[f=nut]../../../tmp/escape.nut"}, 4},
		{"quoted tee slave", []string{"-i", "in.mp4", "-f", "tee", "a.mp4|'/tmp/escape.mp4'"}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(Request{Args: tt.args})
			verr := requireReason(t, err, ReasonPathEscape)
			assert.Equal(t, tt.index, verr.Index)
		})
	}
}

func TestValidateConfinesFilterOptions(t *testing.T) {
	v, _ := newTestValidator(t)

	tests := []struct {
		name  string
		args  []string
		index int
	}{
		{"drawtext textfile in lavfi", []string{"-f", "lavfi", "-i", "color=c=black:s=320x240,drawtext=textfile=/etc/passwd", "-frames:v", "1", "out.png"}, 3},
		{"drawtext fontfile", []string{"-i", "in.mp4", "-vf", "drawtext=fontfile=/usr/share/fonts/x.ttf:text=hi", "out.mp4"}, 3},
		{"quoted textfile", []string{"-i", "in.mp4", "-vf", "drawtext=textfile='/etc/passwd'", "out.mp4"}, 3},
		{"file loaded option", []string{"-i", "in.mp4", "-vf", "drawtext=/text=/etc/passwd", "out.mp4"}, 3},
		{"subtitles positional", []string{"-i", "in.mp4", "-vf", "subtitles=/etc/passwd", "out.mp4"}, 3},
		{"subtitles escaped", []string{"-i", "in.mp4", "-vf", `subtitles=\/etc\/passwd`, "out.mp4"}, 3},
		{"subtitles filename", []string{"-i", "in.mp4", "-vf", "subtitles=filename=../../../etc/passwd", "out.mp4"}, 3},
		{"ass", []string{"-i", "in.mp4", "-vf", "ass=/tmp/subs.ass", "out.mp4"}, 3},
		{"lut3d file", []string{"-i", "in.mp4", "-vf", "lut3d=file=/etc/lut.cube", "out.mp4"}, 3},
		{"curves psfile", []string{"-i", "in.mp4", "-vf", "curves=psfile=/etc/curves.acv", "out.mp4"}, 3},
		{"complex graph", []string{"-i", "in.mp4", "-filter_complex", "[0:v]scale=320:240[s];[s]drawtext=textfile=/etc/hosts[out]", "-map", "[out]", "out.mp4"}, 3},
		{"protocol in value", []string{"-i", "in.mp4", "-vf", `subtitles=concat\\:/etc/passwd`, "out.mp4"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(Request{Args: tt.args})
			verr := requireReason(t, err, ReasonPathEscape)
			assert.Equal(t, tt.index, verr.Index)
		})
	}
}

// Whatever the option, a following outside path is never accepted: known
// booleans leave it as an output, everything else has it confined as a value.
func TestValidateEveryOptionValueIsConfined(t *testing.T) {
	v, _ := newTestValidator(t)

	options := map[string]struct{}{}
	for name := range booleanFlags {
		options[name] = struct{}{}
	}
	for name := range pathFlags {
		options[name] = struct{}{}
	}
	for _, name := range policy.DefaultConfig().DeniedFlags {
		options[name] = struct{}{}
	}
	for _, name := range []string{
		"-f", "-c", "-c:v", "-codec:a", "-map", "-map_metadata", "-metadata", "-metadata:s:a:0",
		"-ss", "-t", "-to", "-b:v", "-crf", "-preset", "-r", "-s", "-pix_fmt", "-ar", "-ac",
		"-frames:v", "-vframes", "-threads", "-loglevel", "-movflags", "-hls_time",
		"-segment_time", "-tag:v", "-disposition", "-hwaccel", "-init_hw_device",
		"-dump_attachment:t", "-timestamp", "-target", "-bsf:v", "-copyinkf:v",
		"-made_up_switch", "-another_unknown_flag",
	} {
		options[name] = struct{}{}
	}

	for name := range options {
		for _, outside := range []string{"/tmp/escape.mp4", "../../../tmp/escape.mp4", "file:/tmp/escape.mp4"} {
			args := []string{"-i", "in.mp4", name, outside}
			_, err := v.Validate(Request{Args: args})
			verr := requireReason(t, err, ReasonPathEscape)
			assert.Equal(t, 3, verr.Index, "%v", args)
		}
	}
}

func TestValidateRejectsPasswdTraversal(t *testing.T) {
	v, _ := newTestValidator(t)

	safe, err := v.Validate(Request{Args: []string{"-i", "../../etc/passwd", "out.mp4"}})
	verr := requireReason(t, err, ReasonPathEscape)

	assert.Equal(t, 1, verr.Index)
	assert.Equal(t, "../../etc/passwd", verr.Arg)
	assert.False(t, safe.Checked())
	assert.Nil(t, safe.Argv())
}

func TestValidateWorkingDir(t *testing.T) {
	v, root := newTestValidator(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "jobs", "a"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("x"), 0644))

	t.Run("relative dir", func(t *testing.T) {
		safe, err := v.Validate(Request{Args: []string{"-i", "in.mp4", "out.mp4"}, WorkingDir: "jobs/a"})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "jobs", "a"), safe.Dir())
	})

	t.Run("paths resolve against dir", func(t *testing.T) {
		_, err := v.Validate(Request{Args: []string{"-i", "../../in.mp4", "out.mp4"}, WorkingDir: "jobs/a"})
		assert.NoError(t, err)

		_, err = v.Validate(Request{Args: []string{"-i", "../../../in.mp4", "out.mp4"}, WorkingDir: "jobs/a"})
		requireReason(t, err, ReasonPathEscape)
	})

	t.Run("outside root", func(t *testing.T) {
		_, err := v.Validate(Request{Args: []string{"-version"}, WorkingDir: "/"})
		verr := requireReason(t, err, ReasonPathEscape)
		assert.Equal(t, -1, verr.Index)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := v.Validate(Request{Args: []string{"-version"}, WorkingDir: "nope"})
		requireReason(t, err, ReasonInvalidWorkingDir)
	})

	t.Run("not a directory", func(t *testing.T) {
		_, err := v.Validate(Request{Args: []string{"-version"}, WorkingDir: "file.txt"})
		requireReason(t, err, ReasonInvalidWorkingDir)
	})
}

func TestValidateReferences(t *testing.T) {
	v, _ := newTestValidator(t)

	tests := []struct {
		name   string
		args   []string
		reason Reason
	}{
		{"filter script", []string{"-i", "in.mp4", "-filter_script", "f.txt", "out.mp4"}, ReasonDisallowedFlag},
		{"filter script stream spec", []string{"-i", "in.mp4", "-filter_script:v", "f.txt", "out.mp4"}, ReasonDisallowedFlag},
		{"file loaded option", []string{"-i", "in.mp4", "-/vf", "f.txt", "out.mp4"}, ReasonDisallowedFlag},
		{"protocol whitelist", []string{"-protocol_whitelist", "file,http", "-i", "in.mp4", "out.mp4"}, ReasonDisallowedFlag},
		{"http input", []string{"-i", "http://example.com/a.mp4", "out.mp4"}, ReasonDisallowedProtocol},
		{"rtmp output", []string{"-i", "in.mp4", "-f", "flv", "rtmp://live.example.com/app"}, ReasonDisallowedProtocol},
		{"concat protocol", []string{"-i", "concat:a.mp4|b.mp4", "out.mp4"}, ReasonDisallowedProtocol},
		{"tee target", []string{"-i", "in.mp4", "-f", "tee", "a.mp4|udp://10.0.0.1:1234"}, ReasonDisallowedProtocol},
		{"movie filter", []string{"-i", "in.mp4", "-vf", "movie=logo.png", "out.mp4"}, ReasonDisallowedFilter},
		{"escaped filter name", []string{"-i", "in.mp4", "-vf", `mov\ie=logo.png`, "out.mp4"}, ReasonDisallowedFilter},
		{"quoted filter name", []string{"-i", "in.mp4", "-vf", "'movie'=logo.png", "out.mp4"}, ReasonDisallowedFilter},
		{"plugin filter", []string{"-i", "in.mp4", "-af", "ladspa=f=amp", "out.mp4"}, ReasonDisallowedFilter},
		{"subfile protocol", []string{"-i", "subfile,,start,0,end,0,,:in.mp4", "out.mp4"}, ReasonDisallowedProtocol},
		{"tee slave protocol", []string{"-i", "in.mp4", "-f", "tee", "a.mp4|[f=mpegts]concat:b.ts"}, ReasonDisallowedProtocol},
		{"labelled sendcmd", []string{"-i", "in.mp4", "-filter_complex", "[0:v]scale=320:240[s];[s]sendcmd=f=cmds.txt[out]", "-map", "[out]", "out.mp4"}, ReasonDisallowedFilter},
		{"named instance", []string{"-i", "in.mp4", "-af", "amovie@x=a.wav", "out.mp4"}, ReasonDisallowedFilter},
		{"lavfi input", []string{"-f", "lavfi", "-i", "movie=x.mp4", "out.mp4"}, ReasonDisallowedFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(Request{Args: tt.args})
			requireReason(t, err, tt.reason)
		})
	}
}

func TestValidateAllowList(t *testing.T) {
	v, _ := newTestValidator(t, func(c *policy.Config) {
		c.AllowedFlags = []string{"-i", "-c", "-y"}
	})

	_, err := v.Validate(Request{Args: []string{"-y", "-i", "in.mp4", "-c:a", "aac", "out.m4a"}})
	require.NoError(t, err)

	_, err = v.Validate(Request{Args: []string{"-i", "in.mp4", "-vf", "hflip", "out.mp4"}})
	verr := requireReason(t, err, ReasonDisallowedFlag)
	assert.Equal(t, 2, verr.Index)
}

func TestValidateCheckOrder(t *testing.T) {
	v, _ := newTestValidator(t)

	// hygiene runs before paths
	_, err := v.Validate(Request{Args: []string{"-i", "../../x", ""}})
	requireReason(t, err, ReasonEmptyArgument)

	// paths run before references
	_, err = v.Validate(Request{Args: []string{"-filter_script", "f.txt", "-i", "../../x", "out.mp4"}})
	requireReason(t, err, ReasonPathEscape)
}

func TestValidateTimeout(t *testing.T) {
	v, _ := newTestValidator(t, func(c *policy.Config) {
		c.DefaultTimeout = 30 * time.Second
		c.MaxTimeout = time.Minute
	})

	safe, err := v.Validate(Request{Args: []string{"-version"}})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, safe.Timeout())
	assert.False(t, safe.Clamped())

	safe, err = v.Validate(Request{Args: []string{"-version"}, Timeout: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, safe.Timeout())
	assert.False(t, safe.Clamped())

	safe, err = v.Validate(Request{Args: []string{"-version"}, Timeout: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, safe.Timeout())
	assert.Equal(t, time.Hour, safe.Requested())
	assert.True(t, safe.Clamped())
}

func TestSafeArgsIsolation(t *testing.T) {
	v, _ := newTestValidator(t)
	args := []string{"-i", "in.mp4", "out.mp4"}

	safe, err := v.Validate(Request{Args: args})
	require.NoError(t, err)

	args[1] = "../../etc/passwd"
	assert.Equal(t, "in.mp4", safe.Argv()[1])

	argv := safe.Argv()
	argv[2] = "changed"
	assert.Equal(t, "out.mp4", safe.Argv()[2])
}

func TestTokenize(t *testing.T) {
	tokens := tokenize([]string{"-y", "-f", "lavfi", "-i", "sine", "-c:a", "aac", "-i", "b.wav", "out.m4a"})

	kinds := make([]tokenKind, len(tokens))
	for i, tok := range tokens {
		kinds[i] = tok.kind
	}
	assert.Equal(t, []tokenKind{
		kindFlag, kindFlag, kindValue, kindFlag, kindValue, kindFlag, kindValue, kindFlag, kindValue, kindPositional,
	}, kinds)

	assert.Equal(t, "lavfi", tokens[4].format)
	assert.True(t, tokens[4].filterBearing())
	assert.Equal(t, "", tokens[8].format)
	assert.True(t, tokens[8].pathBearing())
	assert.Equal(t, "-c", tokens[6].flag)
}

func TestFilterNames(t *testing.T) {
	assert.Equal(t, []string{"scale", "hflip"}, filterNames("scale=640:-1,hflip"))
	assert.Equal(t, []string{"overlay", "movie"}, filterNames("[0:v][1:v]overlay[o];movie=logo.png[l]"))
	assert.Equal(t, []string{"volume"}, filterNames(" [in] Volume@v1=0.5 [out]"))
	assert.Empty(t, filterNames("[a][b]"))
}

func TestParseFiltergraph(t *testing.T) {
	filters := parseFiltergraph("[0:v]scale=w=640:h=-1[s];[s]drawtext=textfile=t.txt:fontsize=12,hflip")
	assert.Equal(t, []filterSpec{
		{name: "scale", args: []filterArg{{key: "w", value: "640"}, {key: "h", value: "-1"}}},
		{name: "drawtext", args: []filterArg{{key: "textfile", value: "t.txt"}, {key: "fontsize", value: "12"}}},
		{name: "hflip"},
	}, filters)

	assert.Equal(t, []filterSpec{
		{name: "subtitles", args: []filterArg{{value: "subs.srt"}}},
	}, parseFiltergraph("subtitles=subs.srt"))

	assert.Equal(t, []filterSpec{
		{name: "drawtext", args: []filterArg{{key: "/textfile", value: "a.txt"}, {key: "text", value: "a:b"}}},
	}, parseFiltergraph(`drawtext=/textfile=a.txt:text='a\:b'`))

	assert.Equal(t, []string{"movie"}, filterNames(`mov\ie=x.mp4`))
	assert.Equal(t, []string{"movie"}, filterNames("'movie'@m=x.mp4"))
}

func TestGetToken(t *testing.T) {
	tests := []struct {
		in, term  string
		tok, rest string
	}{
		{"  scale=1 ,hflip", "=,", "scale", "=1 ,hflip"},
		{`a\,b ,c`, ",", "a,b", ",c"},
		{"'x, y' ,z", ",", "x, y", ",z"},
		{`a\ `, ",", "a ", ""},
		{"'open", ",", "open", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			tok, rest := getToken(tt.in, tt.term)
			assert.Equal(t, tt.tok, tok)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestTeeSlaves(t *testing.T) {
	assert.Equal(t, []string{"a.mp4", "b.nut", "c|d.ts"}, teeSlaves(`[f=mp4]a.mp4|[f=nut:onfail=ignore] b.nut|c\|d.ts`))
	assert.Empty(t, teeSlaves("[f=mp4"))
}

func TestSplitScheme(t *testing.T) {
	scheme, rest, ok := splitScheme("HTTPS://host/x")
	assert.True(t, ok)
	assert.Equal(t, "https", scheme)
	assert.Equal(t, "//host/x", rest)

	_, _, ok = splitScheme("C:/media/in.mp4")
	assert.False(t, ok)

	_, _, ok = splitScheme("out.mp4")
	assert.False(t, ok)

	scheme, rest, ok = splitScheme("subfile,,start,0,end,10,,:/etc/passwd")
	assert.True(t, ok)
	assert.Equal(t, "subfile", scheme)
	assert.Equal(t, "/etc/passwd", rest)
}
