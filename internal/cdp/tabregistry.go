package cdp

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/chromedp/cdproto/target"

	"github.com/dgnsrekt/gql_sniffer/internal/types"
)

// TabRegistry maps CDP target IDs to the page each tab currently shows.
type TabRegistry struct {
	tabs map[target.ID]*types.TabInfo
	mu   sync.RWMutex
}

func NewTabRegistry() *TabRegistry {
	return &TabRegistry{tabs: make(map[target.ID]*types.TabInfo)}
}

// Register records (or replaces, after a navigation) the page URL of a tab.
func (r *TabRegistry) Register(targetID target.ID, pageURL string) (*types.TabInfo, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse tab url: %w", err)
	}
	info := &types.TabInfo{
		TargetID: string(targetID),
		URL:      pageURL,
	}
	if u.Scheme != "" && u.Host != "" {
		info.Origin = u.Scheme + "://" + u.Host
	}

	r.mu.Lock()
	r.tabs[targetID] = info
	r.mu.Unlock()

	return info, nil
}

func (r *TabRegistry) Get(targetID target.ID) (*types.TabInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.tabs[targetID]
	return info, ok
}

func (r *TabRegistry) GetByStringID(tabID string) (*types.TabInfo, bool) {
	return r.Get(target.ID(tabID))
}

func (r *TabRegistry) Remove(targetID target.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tabs, targetID)
}

func (r *TabRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}
