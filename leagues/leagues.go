// Package leagues maps sports and event names to EPG ids and logos.
package leagues

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"

	"m3u-live-events/logger"

	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
)

// LiveImage is the logo used when no league matches.
const LiveImage = "https://i.gyazo.com/4a5e9fa2525808ee4b65002b56d3450e.png"

var versusRe = regexp.MustCompile(`(?i)\s+(?:-|vs\.?|at|@)\s+`)

var specialEvents = map[string]struct{}{
	"nfl redzone":     {},
	"redzone":         {},
	"red zone":        {},
	"college gameday": {},
	"nfl honors":      {},
}

type league struct {
	Logo  string   `json:"logo"`
	Names []string `json:"names"`
}

// document mirrors leagues.json:
//
//	{"teams": {"NBA": ["Lakers", ...]},
//	 "leagues": {"NBA.Basketball.Dummy.us": [{"NBA": {"logo": "...", "names": [...]}}]}}
type document struct {
	Teams   map[string][]string            `json:"teams"`
	Leagues map[string][]map[string]league `json:"leagues"`
}

type Info struct {
	ID   string
	Logo string
}

type DB struct {
	doc  document
	ids  []string
	memo *cache.Cache
}

func Parse(data []byte) (*DB, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return newDB(doc), nil
}

// Load reads path. A missing or malformed file yields an empty DB, so every
// lookup falls back to the defaults.
func Load(path string) *DB {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Default.Warnf("Reading leagues file %s: %v", path, err)
		} else {
			logger.Default.Debugf("No leagues file at %s", path)
		}
		return newDB(document{})
	}

	db, err := Parse(data)
	if err != nil {
		logger.Default.Warnf("Parsing leagues file %s: %v", path, err)
		return newDB(document{})
	}
	return db
}

// Empty is a DB with no leagues; every lookup returns the defaults.
func Empty() *DB {
	return newDB(document{})
}

func newDB(doc document) *DB {
	ids := make([]string, 0, len(doc.Leagues))
	for id := range doc.Leagues {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &DB{
		doc:  doc,
		ids:  ids,
		memo: cache.New(cache.NoExpiration, 0),
	}
}

func (db *DB) Teams(league string) []string {
	return db.doc.Teams[league]
}

// Lookup finds the league whose name, or one of its aliases, equals name
// (case-insensitive). ID is empty when nothing matches.
func (db *DB) Lookup(name string) Info {
	name = strings.ToUpper(name)
	if v, ok := db.memo.Get("info:" + name); ok {
		return v.(Info)
	}

	info := Info{Logo: LiveImage}
search:
	for _, id := range db.ids {
		for _, entry := range db.doc.Leagues[id] {
			names := make([]string, 0, len(entry))
			for n := range entry {
				names = append(names, n)
			}
			sort.Strings(names)

			for _, leagueName := range names {
				data := entry[leagueName]
				if name == leagueName || contains(data.Names, name) {
					info = Info{ID: id, Logo: data.Logo}
					if info.Logo == "" {
						info.Logo = LiveImage
					}
					break search
				}
			}
		}
	}

	db.memo.Set("info:"+name, info, cache.NoExpiration)
	return info
}

// IsValid reports whether event names a team of league on either side of a
// separator such as "vs", "@" or "-". Events without a separator are only
// valid if they are a known special broadcast.
func (db *DB) IsValid(event, league string) bool {
	if versusRe.MatchString(event) {
		parts := versusRe.Split(event, 2)
		teams := db.Teams(league)
		return contains(teams, strings.TrimSpace(parts[0])) || contains(teams, strings.TrimSpace(parts[1]))
	}
	_, ok := specialEvents[strings.ToLower(event)]
	return ok
}

// TvgInfo picks the EPG id and logo for an event. ID is empty when unknown.
func (db *DB) TvgInfo(sport, event string) Info {
	key := "tvg:" + sport + "\x00" + event
	if v, ok := db.memo.Get(key); ok {
		return v.(Info)
	}

	var info Info
	switch sport {
	case "American Football", "NFL":
		if db.IsValid(event, "NFL") {
			info = db.Lookup("NFL")
		} else {
			info = db.Lookup("NCAA")
		}
	case "Basketball", "NBA":
		switch {
		case db.IsValid(event, "NBA"):
			info = db.Lookup("NBA")
		case db.IsValid(event, "WNBA"):
			info = db.Lookup("WNBA")
		default:
			info = db.Lookup("Basketball")
		}
	case "Ice Hockey", "Hockey":
		if db.IsValid(event, "NHL") {
			info = db.Lookup("NHL")
		} else {
			info = db.Lookup("Hockey")
		}
	default:
		info = db.Lookup(sport)
	}

	db.memo.Set(key, info, cache.NoExpiration)
	return info
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
