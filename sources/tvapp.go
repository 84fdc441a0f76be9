package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"m3u-live-events/logger"
	"m3u-live-events/model"
	"m3u-live-events/store"
	"m3u-live-events/utils"
	"m3u-live-events/utils/safemap"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

const (
	tvappTag  = "TVAPP"
	tvappBase = "https://thetvapp.to"
)

// TVApp lists events from the home page, one row per sport, and keeps only
// those it could resolve.
type TVApp struct {
	BaseURL string
	TTL     time.Duration
	Kind    Kind

	// Mirrors, when set, are probed in random order and the first that
	// answers replaces BaseURL for the run.
	Mirrors []string
}

func NewTVApp(base string) *TVApp {
	if base == "" {
		base = tvappBase
	}
	return &TVApp{BaseURL: base, TTL: 86400 * time.Second, Kind: Headless}
}

func (t *TVApp) Tag() string   { return tvappTag }
func (t *TVApp) Browser() Kind { return t.Kind }

func (t *TVApp) Scrape(ctx context.Context, env *Env) (model.ResultMap, error) {
	log := logger.New("tvapp")
	cache := store.New[model.Entry](env.CacheDir, tvappTag, t.TTL, store.WithClock(env.Clock), store.WithLogger(log))

	if cached := cache.Load(); len(cached) > 0 {
		log.Logf("Loaded %d event(s) from cache", len(cached))
		return cached, nil
	}

	base, ok := env.BaseURL(ctx, t.BaseURL, t.Mirrors, log)
	if !ok {
		return model.ResultMap{}, nil
	}
	log.Logf("Scraping from %q", base)

	var events []model.Listing
	if body, ok := env.Fetch(ctx, base, "home", log); ok {
		var err error
		events, err = parseTVAppHome(body, base)
		if err != nil {
			log.Errorf("Failed to parse %q: %v", base, err)
		}
	}
	log.Logf("Processing %d new URL(s)", len(events))

	now := env.Clock().Clean()
	machine := env.Machine(log, "", 0)
	lg := env.leagues()
	results := safemap.New[string, model.Entry]()

	var g errgroup.Group
	for i, ev := range events {
		key := model.Key(ev.Sport, ev.Event, tvappTag)
		g.Go(func() error {
			link := env.Resolve(ctx, Job{
				Tag:     tvappTag,
				Kind:    t.Kind,
				Machine: machine,
				Key:     key,
				Link:    ev.Link,
				Label:   fmt.Sprintf("URL %d", i+1),
			})
			if link == "" {
				return nil
			}

			info := lg.TvgInfo(ev.Sport, ev.Event)
			id := info.ID
			if id == "" {
				id = model.DefaultTvgID
			}
			results.Set(key, model.Entry{
				URL:       originURL(link),
				Logo:      info.Logo,
				Base:      base,
				Timestamp: now.Unix(),
				ID:        id,
				Link:      ev.Link,
			})
			return nil
		})
	}
	_ = g.Wait()

	out := model.ResultMap(results.Snapshot())
	log.Logf("Collected and cached %d new event(s)", len(out))
	if err := cache.Write(out); err != nil {
		log.Errorf("%v", err)
	}
	return out, nil
}

// parseTVAppHome returns one listing per event link, skipping the channel
// row. Duplicate keys keep the first link seen.
func parseTVAppHome(body []byte, base string) ([]model.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []model.Listing
	doc.Find(".row").Each(func(_ int, row *goquery.Selection) {
		h3 := row.Find("h3").First()
		if h3.Length() == 0 {
			return
		}
		sport := strings.TrimSpace(h3.Text())
		if strings.EqualFold(sport, "live tv channels") {
			return
		}

		row.Find("a.list-group-item[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if href == "" {
				return
			}
			name, _, _ := strings.Cut(strings.TrimSpace(a.Text()), ":")
			key := model.Key(sport, name, tvappTag)
			if seen[key] {
				return
			}
			seen[key] = true
			out = append(out, model.Listing{
				Sport: sport,
				Event: name,
				Link:  utils.JoinURL(base, href),
			})
		})
	})
	return out, nil
}

// originURL points a captured playlist at the origin host over plain http.
// The query is dropped.
func originURL(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	host := u.Host
	if _, rest, ok := strings.Cut(host, "."); ok {
		host = rest
	}
	return (&url.URL{
		Scheme: "http",
		Host:   "origin." + host,
		Path:   strings.ReplaceAll(u.Path, "tracks-v1a1/", ""),
	}).String()
}
