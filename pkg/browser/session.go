package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	errs "igfetch/pkg/errors"
	"igfetch/pkg/logger"
)

// healthCheckTimeout bounds the liveness check run before reusing a browser
const healthCheckTimeout = 5 * time.Second

// SessionOptions configures the shared headless browser process
type SessionOptions struct {
	ExecPath  string
	Headless  bool
	NoSandbox bool
	UserAgent string
}

// launchFunc starts a browser and returns its root context
type launchFunc func() (context.Context, context.CancelFunc, error)

// pingFunc reports whether the browser behind ctx still responds
type pingFunc func(ctx context.Context) error

// Session owns one long-lived browser process shared by every extraction.
// The process is started on first use, checked before each reuse and
// relaunched when the check fails. It is only torn down by Close.
type Session struct {
	mu sync.Mutex

	browserCtx context.Context
	cancel     context.CancelFunc
	launches   int
	closed     bool

	launch launchFunc
	ping   pingFunc
	logger logger.Logger
}

// NewSession creates a session; no browser is started until Acquire
func NewSession(opts SessionOptions, log logger.Logger) *Session {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &Session{
		ping:   pingBrowser,
		logger: log.WithField("component", "browser_session"),
	}
	s.launch = func() (context.Context, context.CancelFunc, error) {
		return launchChrome(opts)
	}
	return s
}

// Acquire returns the root browser context, launching or relaunching the
// process as needed. Concurrent callers are serialized so at most one
// launch happens at a time.
func (s *Session) Acquire(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errs.New(errs.ErrorTypeBrowser, "browser session is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.browserCtx != nil {
		if s.healthy(ctx) {
			return s.browserCtx, nil
		}
		s.logger.Warn("browser disconnected, relaunching")
		s.discard()
	}

	browserCtx, cancel, err := s.launch()
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeBrowser, "failed to launch browser")
	}
	s.browserCtx = browserCtx
	s.cancel = cancel
	s.launches++

	s.logger.InfoWithFields("browser launched", map[string]interface{}{
		"launches": s.launches,
	})
	return s.browserCtx, nil
}

func (s *Session) healthy(ctx context.Context) bool {
	if s.browserCtx.Err() != nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(s.browserCtx, healthCheckTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := s.ping(pingCtx); err != nil {
		s.logger.WithError(err).Debug("browser health check failed")
		return false
	}
	return true
}

// discard drops the current browser; errors are only logged
func (s *Session) discard() {
	if s.cancel != nil {
		s.cancel()
	}
	s.browserCtx = nil
	s.cancel = nil
}

// Launches reports how many browser processes this session has started
func (s *Session) Launches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launches
}

// Close shuts the browser down. Later Acquire calls fail.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.browserCtx != nil {
		s.logger.Info("closing browser")
		s.discard()
	}
	return nil
}

func launchChrome(opts SessionOptions) (context.Context, context.CancelFunc, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
		chromedp.WindowSize(414, 896),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// an empty Run starts the process
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, nil, err
	}
	return browserCtx, cancel, nil
}

func pingBrowser(ctx context.Context) error {
	_, err := chromedp.Targets(ctx)
	return err
}
