package aggregate

import (
	"fmt"
	"strings"

	"m3u-live-events/model"
	"m3u-live-events/store"
)

const GroupTitle = "Live Events"

type Hint struct {
	Name  string
	Value string
}

// Channel is one rendered playlist entry.
type Channel struct {
	Number int
	ID     string
	Name   string
	Logo   string
	Group  string
	URL    string
	Hints  []Hint
}

func newChannel(n int, k Keyed, userAgent string) Channel {
	return Channel{
		Number: n,
		ID:     k.Entry.ID,
		Name:   k.Key,
		Logo:   k.Entry.Logo,
		Group:  GroupTitle,
		URL:    k.Entry.URL,
		Hints: []Hint{
			{Name: "http-referrer", Value: k.Entry.Base},
			{Name: "http-origin", Value: k.Entry.Base},
			{Name: "http-user-agent", Value: userAgent},
		},
	}
}

// Number assigns offset+1, offset+2, ... in the given order.
func Number(entries []Keyed, offset int, userAgent string) []Channel {
	out := make([]Channel, len(entries))
	for i, k := range entries {
		out[i] = newChannel(offset+i+1, k, userAgent)
	}
	return out
}

func (c Channel) ExtInf() string {
	return fmt.Sprintf(`#EXTINF:-1 tvg-chno="%d" tvg-id="%s" tvg-name="%s" tvg-logo="%s" group-title="%s",%s`,
		c.Number, c.ID, c.Name, c.Logo, c.Group, c.Name)
}

// Block is the channel's lines; the EXTINF line carries a leading newline so
// consecutive blocks are separated by a blank line.
func (c Channel) Block() []string {
	lines := make([]string, 0, 2+len(c.Hints))
	lines = append(lines, "\n"+c.ExtInf())
	for _, h := range c.Hints {
		lines = append(lines, "#EXTVLCOPT:"+h.Name+"="+h.Value)
	}
	return append(lines, c.URL)
}

type Playlists struct {
	Combined string
	Live     string
	Channels int
}

// Render builds both outputs from the base playlist and the merged entries.
// The combined list continues numbering after lastChno; the live list starts
// at 1.
func Render(base []string, lastChno int, entries model.ResultMap, userAgent, epgURL string) (Playlists, error) {
	ordered, err := Ordered(entries)
	if err != nil {
		return Playlists{}, err
	}

	combined := append([]string(nil), base...)
	for _, c := range Number(ordered, lastChno, userAgent) {
		combined = append(combined, c.Block()...)
	}

	var live []string
	for _, c := range Number(ordered, 0, userAgent) {
		live = append(live, c.Block()...)
	}

	return Playlists{
		Combined: strings.Join(combined, "\n"),
		Live:     `#EXTM3U url-tvg="` + epgURL + "\"\n" + strings.Join(live, "\n"),
		Channels: len(ordered),
	}, nil
}

// WriteFile replaces path with content atomically.
func WriteFile(path, content string) error {
	if err := store.WriteAtomic(path, []byte(content)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
