package sources

import (
	"context"
	"fmt"
	"time"

	"m3u-live-events/browser"
	"m3u-live-events/eventtime"
	"m3u-live-events/governor"
	"m3u-live-events/leagues"
	"m3u-live-events/logger"
	"m3u-live-events/model"
	"m3u-live-events/store"
	"m3u-live-events/utils"

	"github.com/goccy/go-json"
)

const (
	pixelTag  = "PIXEL"
	pixelBase = "https://pixelsport.tv"
	pixelAPI  = "backend/livetv/events"
)

// Pixel reads the site's event API. The endpoint sits behind a browser
// check, so it is loaded in a page and the JSON is read from the rendered
// <pre> element.
type Pixel struct {
	BaseURL string
	TTL     time.Duration
	Kind    Kind

	// Mirrors, when set, are probed in random order and the first that
	// answers replaces BaseURL for the run.
	Mirrors []string
}

func NewPixel(base string) *Pixel {
	if base == "" {
		base = pixelBase
	}
	return &Pixel{BaseURL: base, TTL: 19800 * time.Second, Kind: Headless}
}

func (p *Pixel) Tag() string   { return pixelTag }
func (p *Pixel) Browser() Kind { return p.Kind }

type pixelFeed struct {
	Events []pixelEvent `json:"events"`
}

type pixelEvent struct {
	Date      string       `json:"date"`
	MatchName string       `json:"match_name"`
	Channel   pixelChannel `json:"channel"`
}

type pixelChannel struct {
	TVCategory struct {
		Name string `json:"name"`
	} `json:"TVCategory"`
	Server1URL string `json:"server1URL"`
	Server2URL string `json:"server2URL"`
	Server3URL string `json:"server3URL"`
}

func (c pixelChannel) servers() []string {
	return []string{c.Server1URL, c.Server2URL, c.Server3URL}
}

func (p *Pixel) Scrape(ctx context.Context, env *Env) (model.ResultMap, error) {
	log := logger.New("pixel")
	cache := store.New[model.Entry](env.CacheDir, pixelTag, p.TTL, store.WithClock(env.Clock), store.WithLogger(log))

	if cached := cache.Load(); len(cached) > 0 {
		log.Logf("Loaded %d event(s) from cache", len(cached))
		return cached, nil
	}

	base, ok := env.BaseURL(ctx, p.BaseURL, p.Mirrors, log)
	if !ok {
		return model.ResultMap{}, nil
	}
	log.Logf("Scraping from %q", base)

	apiURL := utils.JoinURL(base, pixelAPI)
	events, outcome := governor.Run(ctx, env.Pools.Browser, governor.Task{Label: "URL 1", Timeout: env.Timeouts.Fetch, Log: log},
		func(ctx context.Context) (model.ResultMap, error) {
			var raw string
			err := browser.WithSession(ctx, env.Sessions(p.Kind), browser.SessionOptions{Stealth: true}, func(s browser.Session) error {
				return browser.WithPage(ctx, s, func(pg browser.Page) error {
					if err := pg.Navigate(ctx, apiURL, 10*time.Second); err != nil {
						return err
					}
					var err error
					raw, err = pg.Text(ctx, "pre", 5*time.Second)
					return err
				})
			})
			if err != nil {
				log.Errorf("Failed to fetch %q: %v", apiURL, err)
				return model.ResultMap{}, nil
			}
			return parsePixelEvents([]byte(raw), base, env.Clock(), env.leagues())
		})
	if !outcome.OK() {
		events = model.ResultMap{}
	}

	if err := cache.Write(events); err != nil {
		log.Errorf("%v", err)
	}
	log.Logf("Collected and cached %d new event(s)", len(events))
	return events, nil
}

// parsePixelEvents keeps today's events and emits one entry per listed
// server.
func parsePixelEvents(data []byte, base string, now eventtime.Stamp, lg *leagues.DB) (model.ResultMap, error) {
	var feed pixelFeed
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	now = now.Clean()
	out := model.ResultMap{}
	for _, ev := range feed.Events {
		at := eventtime.Parse(ev.Date, "", "UTC", now)
		if !now.SameDay(at) {
			continue
		}

		sport := ev.Channel.TVCategory.Name
		for i, link := range ev.Channel.servers() {
			if link == "" || link == "null" {
				continue
			}

			info := lg.TvgInfo(sport, ev.MatchName)
			id := info.ID
			if id == "" {
				id = model.DefaultTvgID
			}

			out[model.Key(sport, fmt.Sprintf("%s %d", ev.MatchName, i+1), pixelTag)] = model.Entry{
				URL:       link,
				Logo:      info.Logo,
				Base:      base,
				Timestamp: now.Unix(),
				ID:        id,
			}
		}
	}
	return out, nil
}
