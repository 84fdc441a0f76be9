package sources

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"m3u-live-events/eventtime"
	"m3u-live-events/logger"
	"m3u-live-events/model"
	"m3u-live-events/store"
	"m3u-live-events/utils"
	"m3u-live-events/utils/safemap"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

const (
	roxieTag     = "ROXIE"
	roxieBase    = "https://roxiestreams.info"
	roxieTrigger = "//button[contains(., 'Stream 1')]"
)

type endpoint struct {
	Path  string
	Sport string
}

// Roxie scrapes the per-sport event tables and resolves events that are
// live now or about to start.
type Roxie struct {
	BaseURL   string
	TTL       time.Duration
	ListTTL   time.Duration
	Endpoints []endpoint
	// Wait bounds the capture after the stream button is clicked.
	Wait time.Duration
	Kind Kind

	// Mirrors, when set, are probed in random order and the first that
	// answers replaces BaseURL for the run.
	Mirrors []string
}

func NewRoxie(base string) *Roxie {
	if base == "" {
		base = roxieBase
	}
	return &Roxie{
		BaseURL: base,
		TTL:     10800 * time.Second,
		ListTTL: 19800 * time.Second,
		Endpoints: []endpoint{
			{"fighting", "Fighting"},
			{"motorsports", "Racing"},
			{"nba", "NBA"},
			{"nhl", "NHL"},
			{"soccer", "Soccer"},
		},
		Wait: 6 * time.Second,
		Kind: Headless,
	}
}

func (r *Roxie) Tag() string   { return roxieTag }
func (r *Roxie) Browser() Kind { return r.Kind }

func (r *Roxie) Scrape(ctx context.Context, env *Env) (model.ResultMap, error) {
	log := logger.New("roxie")
	cache := store.New[model.Entry](env.CacheDir, roxieTag, r.TTL, store.WithClock(env.Clock), store.WithLogger(log))

	cached := model.ResultMap(cache.Load())
	valid := cached.Acquired()
	log.Logf("Loaded %d event(s) from cache", len(valid))

	base, ok := env.BaseURL(ctx, r.BaseURL, r.Mirrors, log)
	if !ok {
		return valid, nil
	}
	log.Logf("Scraping from %q", base)

	events := r.liveEvents(ctx, env, log, base, cached)
	log.Logf("Processing %d new URL(s)", len(events))

	machine := env.Machine(log, roxieTrigger, r.Wait)
	lg := env.leagues()
	results := safemap.New[string, model.Entry]()

	var g errgroup.Group
	for i, ev := range events {
		key := model.Key(ev.Sport, ev.Event, roxieTag)
		g.Go(func() error {
			url := env.Resolve(ctx, Job{
				Tag:     roxieTag,
				Kind:    r.Kind,
				Machine: machine,
				Key:     key,
				Link:    ev.Link,
				Label:   fmt.Sprintf("URL %d", i+1),
			})

			info := lg.TvgInfo(ev.Sport, ev.Event)
			id := info.ID
			if id == "" {
				id = model.DefaultTvgID
			}
			results.Set(key, model.Entry{
				URL:       url,
				Logo:      info.Logo,
				Base:      base,
				Timestamp: ev.EventTS,
				ID:        id,
				Link:      ev.Link,
			})
			return nil
		})
	}
	_ = g.Wait()

	fresh := results.Snapshot()
	for k, v := range fresh {
		cached[k] = v
	}

	if n := len(model.ResultMap(fresh).Acquired()); n > 0 {
		log.Logf("Collected and cached %d new event(s)", n)
	} else {
		log.Log("No new events found")
	}

	if err := cache.Write(cached); err != nil {
		log.Errorf("%v", err)
	}
	return cached.Acquired(), nil
}

// liveEvents returns listings that started within the last hour or start in
// the next five minutes, minus those already cached. Result order is by key.
func (r *Roxie) liveEvents(ctx context.Context, env *Env, log logger.Logger, base string, cached model.ResultMap) []model.Listing {
	now := env.Clock().Clean()

	listCache := store.New[model.Listing](env.CacheDir, roxieTag+"-html", r.ListTTL, store.WithClock(env.Clock), store.WithLogger(log))
	listings := listCache.Load()
	if len(listings) == 0 {
		log.Log("Refreshing HTML cache")
		listings = r.refreshListings(ctx, env, log, base, now)
		if err := listCache.Write(listings); err != nil {
			log.Errorf("%v", err)
		}
	}

	start := now.Add(-time.Hour).Unix()
	end := now.Add(5 * time.Minute).Unix()

	keys := make([]string, 0, len(listings))
	for k := range listings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var live []model.Listing
	for _, k := range keys {
		if _, ok := cached[k]; ok {
			continue
		}
		ev := listings[k]
		if ev.EventTS < start || ev.EventTS > end {
			continue
		}
		live = append(live, ev)
	}
	return live
}

func (r *Roxie) refreshListings(ctx context.Context, env *Env, log logger.Logger, base string, now eventtime.Stamp) map[string]model.Listing {
	pages := make([]map[string]model.Listing, len(r.Endpoints))

	var g errgroup.Group
	for i, ep := range r.Endpoints {
		g.Go(func() error {
			url := utils.JoinURL(base, ep.Path)
			body, ok := env.Fetch(ctx, url, ep.Path, log)
			if !ok {
				return nil
			}
			parsed, err := parseRoxieTable(body, url, ep.Sport, now)
			if err != nil {
				log.Errorf("Failed to parse %q: %v", url, err)
				return nil
			}
			pages[i] = parsed
			return nil
		})
	}
	_ = g.Wait()

	out := map[string]model.Listing{}
	for _, p := range pages {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}

// parseRoxieTable reads one sport's event table. Start times are given in
// Pacific time with a trailing seconds field that is ignored.
func parseRoxieTable(body []byte, pageURL, sport string, now eventtime.Stamp) (map[string]model.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := map[string]model.Listing{}
	doc.Find("table#eventsTable tbody tr").Each(func(_ int, row *goquery.Selection) {
		a := row.Find("td a").First()
		if a.Length() == 0 {
			return
		}
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		start, ok := row.Find("span.countdown-timer").First().Attr("data-start")
		if !ok {
			return
		}
		if i := strings.LastIndex(start, ":"); i >= 0 {
			start = start[:i]
		}

		name := strings.TrimSpace(a.Text())
		at := eventtime.Parse(start, "", "PST", now)
		out[model.Key(sport, name, roxieTag)] = model.Listing{
			Sport:     sport,
			Event:     name,
			Link:      utils.JoinURL(pageURL, href),
			EventTS:   at.Unix(),
			Timestamp: now.Unix(),
		}
	})
	return out, nil
}
