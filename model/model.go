package model

import (
	"m3u-live-events/eventtime"
)

// DefaultTvgID is used when no league metadata matches an event.
const DefaultTvgID = "Live.Event.us"

// Entry is one acquired event. An empty URL records a failed attempt. A zero
// Timestamp is left out when encoded so caches fall back to 08:00 for it.
type Entry struct {
	URL       string  `json:"url"`
	Logo      string  `json:"logo"`
	Base      string  `json:"base"`
	Timestamp float64 `json:"timestamp,omitempty"`
	ID        string  `json:"id"`
	Link      string  `json:"link,omitempty"`
}

func (e Entry) Acquired() bool {
	return e.URL != ""
}

// ResultMap is keyed by "[sport] name (TAG)".
type ResultMap map[string]Entry

// Acquired returns only the entries carrying a URL.
func (m ResultMap) Acquired() ResultMap {
	out := make(ResultMap, len(m))
	for k, v := range m {
		if v.Acquired() {
			out[k] = v
		}
	}
	return out
}

// Listing is a discovered event before acquisition.
type Listing struct {
	Sport     string  `json:"sport"`
	Event     string  `json:"event"`
	Link      string  `json:"link"`
	EventTS   float64 `json:"event_ts"`
	Timestamp float64 `json:"timestamp,omitempty"`
}

func (l Listing) Start() eventtime.Stamp {
	return eventtime.At(l.EventTS, eventtime.DefaultZone)
}

func Key(sport, name, tag string) string {
	return "[" + sport + "] " + name + " (" + tag + ")"
}
