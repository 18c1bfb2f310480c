package browser

import (
	"context"
	"fmt"
	"regexp"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab is the chat page under observation.
type Tab struct {
	Page *rod.Page
	URL  string

	shared bool // owned by the user; never closed by us
}

// OpenTab opens url in a new tab of the managed browser. Headless tabs get
// the stealth patches; resource blocking applies when configured. On a
// remote browser an already open tab whose address starts with url is
// reused as is.
func OpenTab(ctx context.Context, mgr *Manager, url string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	if mgr.cfg.RemoteURL != "" {
		if pages, err := b.Pages(); err == nil {
			if page, err := pages.FindByURL("^" + regexp.QuoteMeta(url)); err == nil {
				mgr.cfg.Logger.Info("browser: reusing open tab", "url", url)
				return &Tab{Page: page, URL: url, shared: true}, nil
			}
		}
	}

	var (
		page *rod.Page
		err  error
	)
	if mgr.cfg.Mode == ModeHeadless && mgr.cfg.RemoteURL == "" {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		applyResourceBlocking(page, mgr.cfg.ResourceBlocking)
	}

	navCtx, cancel := context.WithTimeout(ctx, mgr.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load", "url", url, "error", err)
	}

	return &Tab{Page: page, URL: url}, nil
}

// Close closes the tab unless it was reused from a remote browser.
func (t *Tab) Close() error {
	if t == nil || t.Page == nil || t.shared {
		return nil
	}
	return t.Page.Close()
}
