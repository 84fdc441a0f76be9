// Package eventtime holds the timestamp value used by caches and sources.
// A Stamp is epoch seconds plus a zone tag; every conversion returns a new
// value.
package eventtime

import (
	"strings"
	"time"
	_ "time/tzdata"
)

// DefaultZone is the reference zone for "today" and for naive timestamps.
const DefaultZone = "ET"

var zones = map[string]*time.Location{
	"CET": mustLoad("Europe/Berlin"),
	"ET":  mustLoad("America/New_York"),
	"EDT": mustLoad("America/New_York"),
	"EST": mustLoad("America/New_York"),
	"PST": mustLoad("America/Los_Angeles"),
	"UTC": time.UTC,
}

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Location maps a zone tag to its location. Unknown tags resolve to the
// reference zone.
func Location(zone string) *time.Location {
	if loc, ok := zones[strings.ToUpper(zone)]; ok {
		return loc
	}
	return zones[DefaultZone]
}

type Stamp struct {
	unix float64
	zone string
}

// ProcessStart is captured once; freshness checks compare against it so a run
// sees a single consistent "now".
var ProcessStart = Now()

func Now() Stamp {
	return FromTime(time.Now(), DefaultZone)
}

func At(unix float64, zone string) Stamp {
	return Stamp{unix: unix, zone: normalize(zone)}
}

func FromTime(t time.Time, zone string) Stamp {
	return Stamp{
		unix: float64(t.UnixNano()) / float64(time.Second),
		zone: normalize(zone),
	}
}

func normalize(zone string) string {
	zone = strings.ToUpper(zone)
	if _, ok := zones[zone]; !ok {
		return DefaultZone
	}
	return zone
}

func (s Stamp) Unix() float64 { return s.unix }
func (s Stamp) Zone() string  { return s.zone }
func (s Stamp) IsZero() bool  { return s.unix == 0 && s.zone == "" }

func (s Stamp) Time() time.Time {
	sec := int64(s.unix)
	nsec := int64((s.unix - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).In(Location(s.zone))
}

func (s Stamp) In(zone string) Stamp {
	return Stamp{unix: s.unix, zone: normalize(zone)}
}

func (s Stamp) Add(d time.Duration) Stamp {
	return Stamp{unix: s.unix + d.Seconds(), zone: s.zone}
}

func (s Stamp) Sub(o Stamp) time.Duration {
	return time.Duration((s.unix - o.unix) * float64(time.Second))
}

func (s Stamp) Before(o Stamp) bool { return s.unix < o.unix }
func (s Stamp) After(o Stamp) bool  { return s.unix > o.unix }

// Clean drops seconds and sub-seconds.
func (s Stamp) Clean() Stamp {
	return FromTime(s.Time().Truncate(time.Minute), s.zone)
}

// SameDay reports whether both stamps fall on the same calendar day in s's
// zone.
func (s Stamp) SameDay(o Stamp) bool {
	a := s.Time()
	b := o.Time().In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func (s Stamp) Format(layout string) string {
	return s.Time().Format(layout)
}

// Default8 is today at 08:00 in the reference zone, relative to now.
func Default8(now Stamp) Stamp {
	t := now.Time().In(Location(DefaultZone))
	return FromTime(time.Date(t.Year(), t.Month(), t.Day(), 8, 0, 0, 0, t.Location()), DefaultZone)
}
