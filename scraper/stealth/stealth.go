// Package stealth builds fingerprint-randomized chromedp sessions routed
// through an anonymizing proxy. Every override it applies is best-effort:
// a property the browser refuses to touch never fails the session.
package stealth

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// UserAgents is the rotation pool. Callers pick one per cycle, never the
// same as the previous pick.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
}

// Geolocation origin: Manhattan, jittered per session.
const (
	originLatitude  = 40.7128
	originLongitude = -74.0060
)

// Profile is one session's randomized fingerprint.
type Profile struct {
	UserAgent    string
	Width        int
	Height       int
	Scale        float64
	Latitude     float64
	Longitude    float64
	ForwardedFor string
}

// NewProfile derives a jittered fingerprint around the base viewport.
func NewProfile(userAgent string, rng *rand.Rand) Profile {
	return Profile{
		UserAgent:    userAgent,
		Width:        1280 + rng.Intn(200),
		Height:       720 + rng.Intn(200),
		Scale:        1 + (rng.Float64()-0.5)*0.2,
		Latitude:     originLatitude + (rng.Float64()-0.5)*0.1,
		Longitude:    originLongitude + (rng.Float64()-0.5)*0.1,
		ForwardedFor: fmt.Sprintf("%d.%d.%d.%d", rng.Intn(255), rng.Intn(255), rng.Intn(255), rng.Intn(255)),
	}
}

// AllocatorOptions returns the exec-allocator options for a stealth session:
// automation flags removed, hardened chrome switches, proxy routing, jittered
// window size.
func (p Profile) AllocatorOptions(proxyURL, chromeBin string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-extensions-file-access-check", true),
		chromedp.Flag("disable-plugins-discovery", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-component-extensions-with-background-pages", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-features", "TranslateUI,BlinkGenPropertyTrees"),
		chromedp.Flag("disable-ipc-flooding-protection", true),
		chromedp.Flag("force-color-profile", "srgb"),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("use-mock-keychain", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.WindowSize(p.Width, p.Height),
		chromedp.UserAgent(p.UserAgent),
	)
	if proxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(proxyURL))
	}
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}
	return opts
}

// Apply configures a fresh chromedp context with the profile: spoofed
// headers, fingerprint init script, viewport metrics, geolocation, and
// cookies. Cookie and override failures are logged by the caller but never
// abort the session.
func (p Profile) Apply(cookiesPath string) chromedp.Tasks {
	return chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := network.Enable().Do(ctx); err != nil {
				return err
			}
			return network.SetExtraHTTPHeaders(p.headers()).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(fingerprintScript).Do(ctx)
			return err
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDeviceMetricsOverride(int64(p.Width), int64(p.Height), p.Scale, false).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Best-effort: some builds reject geolocation overrides.
			_ = emulation.SetGeolocationOverride().
				WithLatitude(p.Latitude).
				WithLongitude(p.Longitude).
				WithAccuracy(100).Do(ctx)
			return nil
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			seedCookies(ctx, cookiesPath)
			return nil
		}),
	}
}

func (p Profile) headers() network.Headers {
	return network.Headers{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9,fr;q=0.8,de;q=0.7",
		"Cache-Control":             "max-age=0",
		"Sec-Ch-Ua":                 `"Not A(Brand";v="99", "Google Chrome";v="121", "Chromium";v="121"`,
		"Sec-Ch-Ua-Mobile":          "?0",
		"Sec-Ch-Ua-Platform":        `"Windows"`,
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
		"X-Forwarded-For":           p.ForwardedFor,
	}
}

// cookieRecord mirrors the persisted cookie-file entries.
type cookieRecord struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	HTTPOnly bool   `json:"httpOnly"`
	Secure   bool   `json:"secure"`
}

// seedCookies loads the persisted cookie file when present and adds
// synthetic returning-user cookies. All failures are swallowed.
func seedCookies(ctx context.Context, cookiesPath string) {
	if cookiesPath != "" {
		if data, err := os.ReadFile(cookiesPath); err == nil {
			var records []cookieRecord
			if json.Unmarshal(data, &records) == nil {
				for _, c := range records {
					setCookie(ctx, c)
				}
			}
		}
	}

	if token, ok := syntheticSessionToken(); ok {
		setCookie(ctx, cookieRecord{
			Name: "session_token", Value: token,
			Domain: ".dexscreener.com", Path: "/", Secure: true,
		})
	}
	setCookie(ctx, cookieRecord{
		Name: "user_preference", Value: "theme_dark",
		Domain: ".dexscreener.com", Path: "/", Secure: true,
	})
}

// syntheticSessionToken generates a fresh hex token per session so repeat
// visits never present the same cookie value.
func syntheticSessionToken() (string, bool) {
	buf := make([]byte, 8)
	if _, err := crand.Read(buf); err != nil {
		return "", false
	}
	return fmt.Sprintf("%x", buf), true
}

func setCookie(ctx context.Context, c cookieRecord) {
	if c.Path == "" {
		c.Path = "/"
	}
	_ = network.SetCookie(c.Name, c.Value).
		WithDomain(c.Domain).
		WithPath(c.Path).
		WithHTTPOnly(c.HTTPOnly).
		WithSecure(c.Secure).
		Do(ctx)
}
