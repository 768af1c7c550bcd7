package retrieval

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"scribe/internal/config"
	"scribe/internal/services"
)

// mediaURLScript pulls a playable source out of a rendered page: the video
// element's resolved source first, then Open Graph metadata, then any
// media-looking resource the page fetched while settling.
const mediaURLScript = `(() => {
	const video = document.querySelector('video');
	if (video) {
		if (video.currentSrc) return video.currentSrc;
		if (video.src) return video.src;
		const source = video.querySelector('source');
		if (source && source.src) return source.src;
	}
	const og = document.querySelector('meta[property="og:video:secure_url"]')
		|| document.querySelector('meta[property="og:video:url"]')
		|| document.querySelector('meta[property="og:video"]');
	if (og && og.content) return og.content;
	const exts = ['.mp4', '.webm', '.m4v', '.mov'];
	const hit = performance.getEntriesByType('resource').find(entry => {
		const path = entry.name.split('?')[0].toLowerCase();
		return exts.some(ext => path.endsWith(ext));
	});
	return hit ? hit.name : '';
})()`

// BrowserStrategy renders the page in headless Chrome to find the media
// URL that scripted players only expose at runtime, then downloads it
// directly.
type BrowserStrategy struct {
	cfg     config.Browser
	direct  *DirectStrategy
	resolve func(ctx context.Context, pageURL string) (string, error)
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewBrowserStrategy builds the strategy. The direct strategy performs the
// download once the real media URL is known.
func NewBrowserStrategy(cfg config.Browser, direct *DirectStrategy) *BrowserStrategy {
	s := &BrowserStrategy{cfg: cfg, direct: direct}
	s.resolve = s.resolveWithChrome
	s.sleep = sleepContext
	return s
}

// WithResolver sets a custom page resolver (for testing).
func (s *BrowserStrategy) WithResolver(resolve func(ctx context.Context, pageURL string) (string, error)) {
	s.resolve = resolve
}

// WithSleep sets a custom settle sleeper (for testing).
func (s *BrowserStrategy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) {
	s.sleep = sleep
}

// Name identifies the strategy in logs and outcomes.
func (s *BrowserStrategy) Name() string { return "browser" }

// CanHandle skips URLs that already name a media file; those need no
// script execution to resolve.
func (s *BrowserStrategy) CanHandle(mediaURL string) bool {
	return !HasMediaExtension(mediaURL)
}

// Fetch resolves the media URL from the rendered page and downloads it.
// When the first pass finds nothing, the page gets one more render after
// the network settle interval; slow players fetch their media late.
func (s *BrowserStrategy) Fetch(ctx context.Context, mediaURL, destDir string) (string, error) {
	resolved, err := s.resolve(ctx, mediaURL)
	if err != nil {
		return "", services.Wrap(services.ErrRetryable, "downloading", "browser", "render page", err)
	}
	resolved = strings.TrimSpace(resolved)
	if resolved == "" && s.cfg.NetworkSettleSeconds > 0 {
		if err := s.sleep(ctx, time.Duration(s.cfg.NetworkSettleSeconds)*time.Second); err != nil {
			return "", services.Wrap(services.ErrTimeout, "downloading", "browser", "network settle interrupted", err)
		}
		resolved, err = s.resolve(ctx, mediaURL)
		if err != nil {
			return "", services.Wrap(services.ErrRetryable, "downloading", "browser", "render page", err)
		}
		resolved = strings.TrimSpace(resolved)
	}
	if resolved == "" {
		return "", services.Wrap(services.ErrValidation, "downloading", "browser", "no media element on page", nil)
	}
	if strings.HasPrefix(resolved, "blob:") {
		return "", services.Wrap(services.ErrValidation, "downloading", "browser", "media served as blob stream", nil)
	}
	return s.direct.Fetch(ctx, resolved, destDir)
}

func (s *BrowserStrategy) resolveWithChrome(ctx context.Context, pageURL string) (string, error) {
	if s.cfg.PageLoadTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.PageLoadTimeoutSeconds)*time.Second)
		defer cancel()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	settle := time.Duration(s.cfg.SettleSeconds) * time.Second
	if settle <= 0 {
		settle = 2 * time.Second
	}

	var resolved string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(settle),
		chromedp.Evaluate(mediaURLScript, &resolved),
	)
	if err != nil {
		return "", err
	}
	return resolved, nil
}
