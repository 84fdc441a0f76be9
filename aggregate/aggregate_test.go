package aggregate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"m3u-live-events/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ua = "Mozilla/5.0 Test"

func writeBase(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "base.m3u8")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBase(t *testing.T) {
	path := writeBase(t, "#EXTM3U\n"+
		"#EXTINF:-1 tvg-chno=\"7\" tvg-id=\"a\",A\nhttp://a\n"+
		"#EXTINF:-1 tvg-chno=\"100\" tvg-id=\"b\",B\nhttp://b\n"+
		"#EXTINF:-1 tvg-chno=\"42\" tvg-id=\"c\",C\nhttp://c\n")

	lines, last, err := LoadBase(path)
	require.NoError(t, err)
	assert.Equal(t, 100, last)
	assert.Len(t, lines, 7)
	assert.Equal(t, "http://c", lines[len(lines)-1])
}

func TestLoadBaseWithoutNumbers(t *testing.T) {
	_, last, err := LoadBase(writeBase(t, "#EXTM3U\n"))
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestLoadBaseMissing(t *testing.T) {
	_, _, err := LoadBase(filepath.Join(t.TempDir(), "nope.m3u8"))
	assert.ErrorIs(t, err, ErrNoBase)
}

func sampleEntries() model.ResultMap {
	return model.ResultMap{
		"[NHL] C vs D (ROXIE)":    {URL: "https://x/c.m3u8", Base: "https://roxiestreams.info", ID: "NHL.Hockey.Dummy.us", Logo: "https://l/nhl.png"},
		"[NBA] A vs B (PIXEL)":    {URL: "https://x/a.m3u8", Base: "https://pixelsport.tv", ID: "NBA.Basketball.Dummy.us", Logo: "https://l/nba.png"},
		"[Soccer] E vs F (ROXIE)": {URL: "https://x/e.m3u8", Base: "https://roxiestreams.info", ID: model.DefaultTvgID, Logo: "https://l/live.png"},
		"[NFL] failed (ROXIE)":    {URL: "", Base: "https://roxiestreams.info"},
	}
}

func TestOrderedSkipsFailuresAndSorts(t *testing.T) {
	got, err := Ordered(sampleEntries())
	require.NoError(t, err)

	var keys []string
	for _, k := range got {
		keys = append(keys, k.Key)
	}
	assert.Equal(t, []string{
		"[NBA] A vs B (PIXEL)",
		"[NHL] C vs D (ROXIE)",
		"[Soccer] E vs F (ROXIE)",
	}, keys)
}

func TestNumbering(t *testing.T) {
	p, err := Render([]string{"#EXTM3U"}, 100, sampleEntries(), ua, "https://epg/TV.xml")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Channels)

	for _, n := range []string{`tvg-chno="101"`, `tvg-chno="102"`, `tvg-chno="103"`} {
		assert.Contains(t, p.Combined, n)
	}
	assert.NotContains(t, p.Combined, `tvg-chno="104"`)

	for _, n := range []string{`tvg-chno="1"`, `tvg-chno="2"`, `tvg-chno="3"`} {
		assert.Contains(t, p.Live, n)
	}
	assert.NotContains(t, p.Live, `tvg-chno="4"`)
}

func TestRenderExactFormat(t *testing.T) {
	entries := model.ResultMap{
		"[NBA] A vs B (PIXEL)": {URL: "https://x/a.m3u8", Base: "https://pixelsport.tv", ID: "NBA.Basketball.Dummy.us", Logo: "https://l/nba.png"},
	}
	p, err := Render([]string{"#EXTM3U", "#EXTINF:-1 tvg-chno=\"5\",Base", "http://base"}, 5, entries, ua, "https://epg/TV.xml")
	require.NoError(t, err)

	wantCombined := strings.Join([]string{
		"#EXTM3U",
		"#EXTINF:-1 tvg-chno=\"5\",Base",
		"http://base",
		"",
		`#EXTINF:-1 tvg-chno="6" tvg-id="NBA.Basketball.Dummy.us" tvg-name="[NBA] A vs B (PIXEL)" tvg-logo="https://l/nba.png" group-title="Live Events",[NBA] A vs B (PIXEL)`,
		"#EXTVLCOPT:http-referrer=https://pixelsport.tv",
		"#EXTVLCOPT:http-origin=https://pixelsport.tv",
		"#EXTVLCOPT:http-user-agent=" + ua,
		"https://x/a.m3u8",
	}, "\n")
	assert.Equal(t, wantCombined, p.Combined)

	wantLive := `#EXTM3U url-tvg="https://epg/TV.xml"` + "\n" + strings.Join([]string{
		"",
		`#EXTINF:-1 tvg-chno="1" tvg-id="NBA.Basketball.Dummy.us" tvg-name="[NBA] A vs B (PIXEL)" tvg-logo="https://l/nba.png" group-title="Live Events",[NBA] A vs B (PIXEL)`,
		"#EXTVLCOPT:http-referrer=https://pixelsport.tv",
		"#EXTVLCOPT:http-origin=https://pixelsport.tv",
		"#EXTVLCOPT:http-user-agent=" + ua,
		"https://x/a.m3u8",
	}, "\n")
	assert.Equal(t, wantLive, p.Live)
}

func TestRenderEmpty(t *testing.T) {
	p, err := Render([]string{"#EXTM3U"}, 9, nil, ua, "https://epg/TV.xml")
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U", p.Combined)
	assert.Equal(t, `#EXTM3U url-tvg="https://epg/TV.xml"`+"\n", p.Live)
}

func TestRenderIsIdempotent(t *testing.T) {
	base := []string{"#EXTM3U"}
	first, err := Render(base, 100, sampleEntries(), ua, "https://epg")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := Render(base, 100, sampleEntries(), ua, "https://epg")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMergeLaterWins(t *testing.T) {
	a := model.ResultMap{"k": {URL: "https://a"}, "only-a": {URL: "https://a2"}}
	b := model.ResultMap{"k": {URL: "https://b"}}

	got := Merge(nil, a, b)
	assert.Len(t, got, 2)
	assert.Equal(t, "https://b", got["k"].URL)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.m3u8")
	require.NoError(t, WriteFile(path, "#EXTM3U\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", string(data))
}
