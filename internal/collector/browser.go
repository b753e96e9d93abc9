package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Renderer 返回页面渲染后的 HTML，用于依赖前端脚本的列表页
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// ChromeRenderer drives a headless Chrome through chromedp. The browser is
// started lazily on first use and shared by all renders until Close.
type ChromeRenderer struct {
	mu          sync.Mutex
	timeout     time.Duration
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
}

func NewChromeRenderer(timeout time.Duration) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ChromeRenderer{timeout: timeout}
}

func (r *ChromeRenderer) start() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browserCtx != nil {
		return r.browserCtx
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), chromedp.DefaultExecAllocatorOptions[:]...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	r.allocCancel, r.browserCtx, r.cancel = allocCancel, browserCtx, cancel
	return browserCtx
}

func (r *ChromeRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	browserCtx := r.start()

	// 每个请求一个 tab，超时或调用方取消都会关闭它
	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return html, nil
}

func (r *ChromeRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	if r.allocCancel != nil {
		r.allocCancel()
	}
	r.browserCtx = nil
}
