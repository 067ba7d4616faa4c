package types

// TabInfo holds metadata about a browser tab whose traffic is being captured.
type TabInfo struct {
	TargetID string
	URL      string
	Origin   string // scheme://host of URL, used to resolve relative request URLs
}

// TabInfoProvider looks up tab information by CDP target ID.
// This breaks the import cycle between capture and cdp packages.
type TabInfoProvider interface {
	GetByStringID(tabID string) (*TabInfo, bool)
}
