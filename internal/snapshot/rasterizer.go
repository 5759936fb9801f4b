// Package snapshot 使用无头 Chromium 将渲染好的简历页面截成 PNG。
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ErrEmptyDocument 表示没有可截图的页面内容。
var ErrEmptyDocument = errors.New("snapshot: empty document")

const (
	readySelector  = "#cv-render-ready"
	canvasSelector = "#a4-container"

	defaultTimeout = 60 * time.Second
)

// Rasterizer 每次截图启动独立的浏览器进程，结束后回收。
type Rasterizer struct {
	logger  *slog.Logger
	timeout time.Duration
	bin     string
}

// Option 配置 Rasterizer。
type Option func(*Rasterizer)

// WithTimeout 设置单次截图的总超时。
func WithTimeout(d time.Duration) Option {
	return func(r *Rasterizer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithBrowserBin 指定 Chromium 可执行文件，未指定时自动查找。
func WithBrowserBin(path string) Option {
	return func(r *Rasterizer) { r.bin = path }
}

// New 返回 Rasterizer。
func New(logger *slog.Logger, opts ...Option) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Rasterizer{logger: logger, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Capture 加载 HTML 文档，等待渲染完成标记后截取 A4 画布区域。
func (r *Rasterizer) Capture(ctx context.Context, html string) (_ []byte, err error) {
	if html == "" {
		return nil, ErrEmptyDocument
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	launch := launcher.New().
		Headless(true).
		NoSandbox(true).
		Context(ctx)
	defer launch.Cleanup()

	if r.bin != "" {
		launch = launch.Bin(r.bin)
	} else if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
	}()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	if _, err := page.Element(readySelector); err != nil {
		return nil, fmt.Errorf("wait render marker: %w", err)
	}

	if _, evalErr := page.Timeout(5 * time.Second).Eval(`() => {
	  if (document && document.fonts && document.fonts.ready) {
	    return Promise.race([
	      document.fonts.ready.then(() => true),
	      new Promise((resolve) => setTimeout(() => resolve(true), 3000))
	    ]);
	  }
	  return true;
	}`); evalErr != nil {
		r.logger.Warn("wait for fonts failed, continue", slog.Any("error", evalErr))
	}

	canvas, err := page.Element(canvasSelector)
	if err != nil {
		return nil, fmt.Errorf("find canvas: %w", err)
	}
	data, err := canvas.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return data, nil
}
