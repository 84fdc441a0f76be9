package browser

import (
	"context"
	_ "embed"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/security"
	"github.com/chromedp/chromedp"
)

//go:embed stealth.js
var stealthScript string

// StealthVersion identifies the embedded init script.
const StealthVersion = "v1"

// Profile is the fingerprint every page of a session presents. It is fixed
// when the session opens.
type Profile struct {
	UserAgent      string
	AcceptLanguage string
	Width          int64
	Height         int64
	Scale          float64
	Locale         string
	Timezone       string
	ColorScheme    string
	Headers        map[string]any
	InitScript     string
	IgnoreHTTPS    bool
}

func NewProfile(userAgent string, opts SessionOptions) Profile {
	p := Profile{
		UserAgent:      userAgent,
		AcceptLanguage: "en-US,en;q=0.9",
		Width:          1366,
		Height:         768,
		Scale:          1,
		Locale:         "en-US",
		Timezone:       "America/New_York",
		ColorScheme:    "dark",
		IgnoreHTTPS:    opts.IgnoreHTTPSErrors,
	}
	if opts.Stealth {
		p.Headers = map[string]any{
			"Accept-Language":           "en-US,en;q=0.9",
			"Upgrade-Insecure-Requests": "1",
		}
		p.InitScript = stealthScript
	}
	return p
}

// Actions installs the profile on a tab. They must run before the first
// navigation.
func (p Profile) Actions() []chromedp.Action {
	acts := []chromedp.Action{
		network.Enable(),
		emulation.SetDeviceMetricsOverride(p.Width, p.Height, p.Scale, false),
		emulation.SetTimezoneOverride(p.Timezone),
		emulation.SetLocaleOverride().WithLocale(p.Locale),
		emulation.SetEmulatedMedia().WithFeatures([]*emulation.MediaFeature{
			{Name: "prefers-color-scheme", Value: p.ColorScheme},
		}),
	}
	if p.UserAgent != "" {
		acts = append(acts, emulation.SetUserAgentOverride(p.UserAgent).WithAcceptLanguage(p.AcceptLanguage))
	}
	if len(p.Headers) > 0 {
		acts = append(acts, network.SetExtraHTTPHeaders(network.Headers(p.Headers)))
	}
	if p.IgnoreHTTPS {
		acts = append(acts, security.SetIgnoreCertificateErrors(true))
	}
	if p.InitScript != "" {
		script := p.InitScript
		acts = append(acts, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}))
	}
	return acts
}
