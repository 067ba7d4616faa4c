// Package cdp attaches to running Chromium tabs and feeds their Network
// events to the capture correlator.
package cdp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/gql_sniffer/internal/capture"
)

const bodyTimeout = 10 * time.Second

// Client manages CDP connections to browser tabs.
type Client struct {
	cdpURL         string
	tabURLFilter   string
	reloadOnAttach bool

	browser     *capture.Browser
	tabRegistry *TabRegistry
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabs        map[target.ID]*TabContext
	tabsMu      sync.RWMutex
}

type TabContext struct {
	ID     target.ID
	URL    string
	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient prepares a client for the DevTools endpoint at cdpURL. Tabs
// whose URL contains tabURLFilter (case-insensitive) are attached.
func NewClient(cdpURL, tabURLFilter string, reloadOnAttach bool, browser *capture.Browser, tabRegistry *TabRegistry) *Client {
	return &Client{
		cdpURL:         cdpURL,
		tabURLFilter:   tabURLFilter,
		reloadOnAttach: reloadOnAttach,
		browser:        browser,
		tabRegistry:    tabRegistry,
		tabs:           make(map[target.ID]*TabContext),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	slog.Info("Connecting to Chromium", "url", c.cdpURL)

	c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), c.cdpURL)

	tempCtx, tempCancel := chromedp.NewContext(c.allocCtx)
	defer tempCancel()

	if err := chromedp.Run(tempCtx); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	targets, err := chromedp.Targets(tempCtx)
	if err != nil {
		return fmt.Errorf("failed to enumerate targets: %w", err)
	}

	slog.Info("Found browser targets", "count", len(targets))

	attachedCount := 0
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if !c.matchesTabURL(t.URL) {
			slog.Debug("Skipping tab (url filter)", "url", t.URL)
			continue
		}
		if err := c.attachToTab(t.TargetID, t.URL); err != nil {
			slog.Error("Failed to attach to tab", "target_id", t.TargetID, "url", t.URL, "error", err)
			continue
		}
		attachedCount++
	}

	if attachedCount == 0 {
		return fmt.Errorf("no tabs found matching SNIFFER_TAB_URL_FILTER=%q", c.tabURLFilter)
	}

	slog.Info("Attached to tabs", "count", attachedCount, "tab_url_filter", c.tabURLFilter)
	return nil
}

func (c *Client) attachToTab(targetID target.ID, url string) error {
	if _, err := c.tabRegistry.Register(targetID, url); err != nil {
		return fmt.Errorf("failed to register tab: %w", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(c.allocCtx, chromedp.WithTargetID(targetID))
	tab := &TabContext{ID: targetID, URL: url, ctx: tabCtx, cancel: tabCancel}

	c.tabsMu.Lock()
	c.tabs[targetID] = tab
	c.tabsMu.Unlock()

	if err := chromedp.Run(tabCtx, network.Enable(), page.Enable()); err != nil {
		tabCancel()
		c.tabsMu.Lock()
		delete(c.tabs, targetID)
		c.tabsMu.Unlock()
		c.tabRegistry.Remove(targetID)
		return fmt.Errorf("failed to enable network/page domains: %w", err)
	}

	slog.Info("Attached to tab", "target_id", targetID, "url", truncateURL(url))
	chromedp.ListenTarget(tabCtx, c.createEventHandler(string(targetID)))

	if c.reloadOnAttach {
		reloadCtx, reloadCancel := context.WithTimeout(tabCtx, 30*time.Second)
		defer reloadCancel()
		if err := chromedp.Run(reloadCtx, chromedp.Reload()); err != nil {
			slog.Warn("Failed to reload tab (continuing)", "target_id", targetID, "error", err)
		} else {
			slog.Info("Reloaded tab after attach", "target_id", targetID, "url", truncateURL(url))
		}
	}

	return nil
}

func (c *Client) createEventHandler(tabID string) func(ev any) {
	return func(ev any) {
		switch e := ev.(type) {
		case *page.EventFrameNavigated:
			if e.Frame.ParentID == "" {
				if _, err := c.tabRegistry.Register(target.ID(tabID), e.Frame.URL); err == nil {
					slog.Debug("Tab navigated (full)", "tab_id", tabID, "url", truncateURL(e.Frame.URL))
				}
			}
		case *page.EventNavigatedWithinDocument:
			if _, err := c.tabRegistry.Register(target.ID(tabID), e.URL); err == nil {
				slog.Debug("Tab navigated (SPA)", "tab_id", tabID, "url", truncateURL(e.URL))
			}
		case *network.EventRequestWillBeSent:
			c.browser.OnRequestWillBeSent(tabID, e)
		case *network.EventResponseReceived:
			c.browser.OnResponseReceived(tabID, e)
		case *network.EventLoadingFinished:
			c.browser.OnLoadingFinished(tabID, e, c.bodyReader(tabID, e.RequestID))
		case *network.EventLoadingFailed:
			c.browser.OnLoadingFailed(tabID, e)
		}
	}
}

// bodyReader fetches a copy of the response body through
// Network.getResponseBody. The page's own stream is left untouched.
func (c *Client) bodyReader(tabID string, requestID network.RequestID) func() ([]byte, error) {
	c.tabsMu.RLock()
	tab, ok := c.tabs[target.ID(tabID)]
	c.tabsMu.RUnlock()
	if !ok {
		return nil
	}
	tabCtx := tab.ctx
	return func() ([]byte, error) {
		bodyCtx, bodyCancel := context.WithTimeout(tabCtx, bodyTimeout)
		defer bodyCancel()

		var body []byte
		err := chromedp.Run(bodyCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			body, err = network.GetResponseBody(requestID).Do(ctx)
			return err
		}))
		return body, err
	}
}

func (c *Client) Close() error {
	c.tabsMu.Lock()
	for id := range c.tabs {
		c.tabRegistry.Remove(id)
	}
	c.tabs = make(map[target.ID]*TabContext)
	c.tabsMu.Unlock()

	if c.allocCancel != nil {
		c.allocCancel()
	}

	slog.Info("CDP client closed")
	return nil
}

func (c *Client) GetTabCount() int {
	c.tabsMu.RLock()
	defer c.tabsMu.RUnlock()
	return len(c.tabs)
}

func (c *Client) matchesTabURL(url string) bool {
	if c.tabURLFilter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(url), strings.ToLower(c.tabURLFilter))
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
