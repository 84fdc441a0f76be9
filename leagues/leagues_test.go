package leagues

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `{
  "teams": {
    "NBA": ["Los Angeles Lakers", "Boston Celtics"],
    "WNBA": ["Las Vegas Aces"],
    "NFL": ["Kansas City Chiefs", "Buffalo Bills"],
    "NHL": ["Toronto Maple Leafs"]
  },
  "leagues": {
    "NBA.Basketball.Dummy.us": [{"NBA": {"logo": "https://logo/nba.png", "names": ["NATIONAL BASKETBALL ASSOCIATION"]}}],
    "WNBA.dummy.us": [{"WNBA": {"logo": "https://logo/wnba.png", "names": []}}],
    "Basketball.Dummy.us": [{"BASKETBALL": {"logo": "", "names": ["HOOPS"]}}],
    "NFL.Dummy.us": [{"NFL": {"logo": "https://logo/nfl.png", "names": []}}],
    "NCAA.Sports.Dummy.us": [{"NCAA": {"logo": "https://logo/ncaa.png", "names": ["COLLEGE"]}}],
    "NHL.Hockey.Dummy.us": [{"NHL": {"logo": "https://logo/nhl.png", "names": []}}],
    "Soccer.Dummy.us": [{"SOCCER": {"logo": "https://logo/soccer.png", "names": ["FOOTBALL"]}}]
  }
}`

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Parse([]byte(fixture))
	require.NoError(t, err)
	return db
}

func TestLookup(t *testing.T) {
	db := testDB(t)

	assert.Equal(t, Info{ID: "NBA.Basketball.Dummy.us", Logo: "https://logo/nba.png"}, db.Lookup("nba"))
	assert.Equal(t, "NBA.Basketball.Dummy.us", db.Lookup("National Basketball Association").ID)
	assert.Equal(t, Info{ID: "Basketball.Dummy.us", Logo: LiveImage}, db.Lookup("hoops"))
	assert.Equal(t, Info{Logo: LiveImage}, db.Lookup("Curling"))
}

func TestIsValid(t *testing.T) {
	db := testDB(t)

	assert.True(t, db.IsValid("Los Angeles Lakers vs Boston Celtics", "NBA"))
	assert.True(t, db.IsValid("Boston Celtics @ Miami Heat", "NBA"))
	assert.True(t, db.IsValid("Someone VS. Los Angeles Lakers", "NBA"))
	assert.False(t, db.IsValid("Duke vs UNC", "NBA"))
	assert.True(t, db.IsValid("NFL RedZone", "NFL"))
	assert.False(t, db.IsValid("Random Show", "NFL"))
}

func TestTvgInfo(t *testing.T) {
	db := testDB(t)

	cases := []struct {
		sport, event, id string
	}{
		{"American Football", "Kansas City Chiefs vs Buffalo Bills", "NFL.Dummy.us"},
		{"NFL", "Alabama vs Auburn", "NCAA.Sports.Dummy.us"},
		{"Basketball", "Las Vegas Aces vs Seattle Storm", "WNBA.dummy.us"},
		{"NBA", "Los Angeles Lakers - Denver Nuggets", "NBA.Basketball.Dummy.us"},
		{"Basketball", "Duke vs UNC", "Basketball.Dummy.us"},
		{"Ice Hockey", "Toronto Maple Leafs at Ottawa Senators", "NHL.Hockey.Dummy.us"},
		{"Soccer", "Arsenal vs Spurs", "Soccer.Dummy.us"},
		{"Racing", "Grand Prix", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.id, db.TvgInfo(tc.sport, tc.event).ID, tc.sport+"/"+tc.event)
	}

	// memoised answers are stable
	assert.Equal(t, db.TvgInfo("Soccer", "Arsenal vs Spurs"), db.TvgInfo("Soccer", "Arsenal vs Spurs"))
}

func TestLoadMissingOrCorrupt(t *testing.T) {
	db := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, Info{Logo: LiveImage}, db.TvgInfo("NBA", "A vs B"))

	bad := filepath.Join(t.TempDir(), "leagues.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	db = Load(bad)
	assert.Empty(t, db.Lookup("NBA").ID)
}
