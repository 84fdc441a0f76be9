package eventtime

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var layouts = []string{
	"Jan 2, 2006 15:04 MST",
	"January 2, 2006 15:04",
	"January 2, 2006 3:04 PM",
	"January 2, 2006 3:04:05 PM",
	"January 2, 2006 15:04:05",
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 3:04 PM",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999Z",
	"2006/01/02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02T15:04:05.999999999Z",
	"1/2/2006 15:04",
	"1/2/2006 3:04 PM",
	"1/2/2006 15:04:05",
	time.RFC1123Z,
}

// Parse reads s in the given zone. An empty layout tries the known layouts
// and then a format-guessing parser. Unparseable input yields Default8 of now.
// The result is expressed in the reference zone.
func Parse(s, layout, zone string, now Stamp) Stamp {
	s = strings.TrimSpace(s)
	loc := Location(zone)

	if layout != "" {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return FromTime(t, DefaultZone)
		}
		return Default8(now)
	}

	for _, l := range layouts {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return FromTime(t, DefaultZone)
		}
	}

	if t, err := dateparse.ParseIn(s, loc); err == nil {
		return FromTime(t, DefaultZone)
	}
	return Default8(now)
}
