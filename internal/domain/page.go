package domain

// PageModel is what a page route returns: enough for the browser shell to
// render the screen for the current device.
type PageModel struct {
	Route       string             `json:"route"`
	User        *UserProfile       `json:"user"`
	IsAuthed    bool               `json:"isAuthed"`
	Home        string             `json:"home,omitempty"`
	Preferences PreferenceSnapshot `json:"preferences"`
}
