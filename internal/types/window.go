package types

// Bounds is an on-screen window rectangle. Two windows are considered
// co-located only when all four fields are exactly equal.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ProbeWindowRecord is one OS-level window as reported by the external probe.
// Produced once per probe invocation; never persisted.
type ProbeWindowRecord struct {
	Name           string `json:"name"`
	Bounds         Bounds `json:"bounds"`
	HasCustomName  bool   `json:"hasCustomName"`
	ActiveTabTitle string `json:"activeTabTitle,omitempty"`
}

// TabRecord is a single tab inside a browser window snapshot.
type TabRecord struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

// BrowserWindowRecord is a read-only snapshot of one browser window taken at
// the start of a matching pass.
type BrowserWindowRecord struct {
	ID     int         `json:"id"`
	Bounds Bounds      `json:"bounds"`
	Tabs   []TabRecord `json:"tabs"`
}

// ActiveTabTitle returns the title of the window's active tab, or "" when the
// snapshot carries no active tab.
func (w BrowserWindowRecord) ActiveTabTitle() string {
	for _, tab := range w.Tabs {
		if tab.Active {
			return tab.Title
		}
	}
	return ""
}
