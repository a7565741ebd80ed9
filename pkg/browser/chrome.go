package browser

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	errs "igfetch/pkg/errors"
	"igfetch/pkg/instagram"
	"igfetch/pkg/logger"
)

// DefaultNavigationTimeout bounds the wait for DOMContentLoaded
const DefaultNavigationTimeout = 30 * time.Second

// maxBodyText caps the visible text returned for failure diagnostics
const maxBodyText = 2000

// ChromeRenderer renders pages in tabs of a shared Session
type ChromeRenderer struct {
	session           *Session
	navigationTimeout time.Duration
	logger            logger.Logger
}

// NewChromeRenderer creates a renderer backed by session
func NewChromeRenderer(session *Session, navigationTimeout time.Duration, log logger.Logger) *ChromeRenderer {
	if log == nil {
		log = logger.GetLogger()
	}
	if navigationTimeout <= 0 {
		navigationTimeout = DefaultNavigationTimeout
	}
	return &ChromeRenderer{
		session:           session,
		navigationTimeout: navigationTimeout,
		logger:            log.WithField("component", "chrome_renderer"),
	}
}

// Render opens a fresh tab, loads req.URL and collects media signals. The
// tab is always closed before returning.
func (r *ChromeRenderer) Render(ctx context.Context, req RenderRequest) (*Snapshot, error) {
	browserCtx, err := r.session.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer func() {
		if cerr := chromedp.Cancel(tabCtx); cerr != nil {
			r.logger.WithError(cerr).Debug("tab cleanup reported an error")
		}
		closeTab()
	}()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	var (
		mu        sync.Mutex
		resources []NetworkResource
	)
	domReady := make(chan struct{})
	var readyOnce sync.Once

	// registered before navigation so no early response is missed
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if e.Response == nil {
				return
			}
			mu.Lock()
			resources = append(resources, NetworkResource{
				URL:          e.Response.URL,
				MIMEType:     e.Response.MimeType,
				ResourceType: string(e.Type),
			})
			mu.Unlock()
		case *page.EventDomContentEventFired:
			readyOnce.Do(func() { close(domReady) })
		}
	})

	actions := []chromedp.Action{network.Enable()}
	if req.SessionID != "" && req.ContentType == instagram.ContentTypeStory {
		actions = append(actions, network.SetCookie(instagram.SessionCookieName, req.SessionID).
			WithDomain(instagram.CookieDomain).
			WithPath("/").
			WithSecure(true).
			WithHTTPOnly(true))
	}
	actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, err := page.Navigate(req.URL).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return errs.Newf(errs.ErrorTypeNetwork, "navigation failed: %s", errorText)
		}
		return nil
	}))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return nil, r.renderError(ctx, err, "failed to navigate")
	}

	select {
	case <-domReady:
	case <-time.After(r.navigationTimeout):
		return nil, errs.Newf(errs.ErrorTypeNetwork, "timed out after %s waiting for DOMContentLoaded", r.navigationTimeout)
	case <-tabCtx.Done():
		return nil, r.renderError(ctx, tabCtx.Err(), "tab closed during navigation")
	}

	script, err := scanScript(req.Patterns)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeParsing, "failed to encode pattern table")
	}

	var scan pageScan
	if err := chromedp.Run(tabCtx,
		chromedp.Sleep(req.Settle),
		chromedp.Evaluate(script, &scan),
	); err != nil {
		return nil, r.renderError(ctx, err, "failed to evaluate page")
	}

	mu.Lock()
	observed := append([]NetworkResource(nil), resources...)
	mu.Unlock()

	r.logger.DebugWithFields("page rendered", map[string]interface{}{
		"url":       req.URL,
		"final_url": scan.FinalURL,
		"responses": len(observed),
		"videos":    len(scan.Videos),
		"captures":  len(scan.Captures),
	})

	return &Snapshot{
		OpenGraph: instagram.OpenGraphFromMap(scan.OG),
		Network:   observed,
		DOMVideos: scan.Videos,
		Preloads:  scan.Preloads,
		Captures:  scan.Captures,
		FinalURL:  scan.FinalURL,
		BodyText:  scan.BodyText,
	}, nil
}

func (r *ChromeRenderer) renderError(ctx context.Context, err error, msg string) error {
	if ctx.Err() != nil {
		return errs.Wrap(ctx.Err(), errs.ErrorTypeNetwork, msg)
	}
	if errs.TypeOf(err) != errs.ErrorTypeUnknown {
		return err
	}
	return errs.Wrap(err, errs.ErrorTypeBrowser, msg)
}

// pageScan is the value returned by the in-page scan script
type pageScan struct {
	OG       map[string]string   `json:"og"`
	Videos   []string            `json:"videos"`
	Preloads []Preload           `json:"preloads"`
	Captures map[string][]string `json:"captures"`
	FinalURL string              `json:"finalURL"`
	BodyText string              `json:"bodyText"`
}

const patternPlaceholder = "__PATTERNS__"

// scanJS runs in the page. The pattern table arrives as JSON data and the
// raw group-1 captures are returned for CollectMatches.
const scanJS = `(() => {
  const patterns = __PATTERNS__;
  const out = {og: {}, videos: [], preloads: [], captures: {}, finalURL: location.href, bodyText: ""};

  document.querySelectorAll('meta[property^="og:"], meta[name^="og:"]').forEach((m) => {
    const key = m.getAttribute("property") || m.getAttribute("name");
    if (key && !(key in out.og)) out.og[key] = m.getAttribute("content") || "";
  });

  document.querySelectorAll("video, video source").forEach((v) => {
    const src = v.currentSrc || v.src || v.getAttribute("src");
    if (src && out.videos.indexOf(src) < 0) out.videos.push(src);
  });

  document.querySelectorAll('link[rel="preload"]').forEach((l) => {
    if (l.href) out.preloads.push({url: l.href, as: l.getAttribute("as") || ""});
  });

  const text = Array.from(document.scripts)
    .filter((s) => !s.src)
    .map((s) => s.textContent || "")
    .join("\n");

  for (const p of patterns) {
    const flags = p.flags.indexOf("g") >= 0 ? p.flags : p.flags + "g";
    let re;
    try { re = new RegExp(p.source, flags); } catch (e) { continue; }
    const found = [];
    let m;
    while ((m = re.exec(text)) !== null) {
      if (m[1]) found.push(m[1]);
      if (m[0] === "") re.lastIndex++;
    }
    if (found.length) out.captures[p.name] = found;
  }

  out.bodyText = (document.body ? document.body.innerText : "").slice(0, ` + "MAX_BODY" + `);
  return out;
})()`

// scanScript renders scanJS with the pattern table embedded as JSON
func scanScript(patterns []instagram.Pattern) (string, error) {
	if patterns == nil {
		patterns = instagram.DefaultPatterns
	}
	table, err := json.Marshal(patterns)
	if err != nil {
		return "", err
	}
	script := strings.Replace(scanJS, patternPlaceholder, string(table), 1)
	return strings.Replace(script, "MAX_BODY", strconv.Itoa(maxBodyText), 1), nil
}
