package library

// Style is the partial rendering override attached to a record.
// All fields are optional; on update the style merges field-wise
// instead of being replaced wholesale.
type Style struct {
	Color   *string  `json:"color,omitempty"`
	Opacity *float64 `json:"opacity,omitempty"`
	Width   *float64 `json:"width,omitempty"`
}

// Record is one library entry. The JSON shape matches the on-disk
// library.json document and the API wire format.
//
// Tags keeps insertion order and permits duplicates; category and
// imageSize are free-form strings (the store does not enforce the
// "cycling"/"running" or "small"/"medium"/"large" vocabularies).
type Record struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Filename string   `json:"filename"`
	Tags     []string `json:"tags"`
	Date     string   `json:"date"` // RFC3339, refreshed on content overwrite

	Description string `json:"description,omitempty"`
	CustomName  string `json:"customName,omitempty"`
	Category    string `json:"category,omitempty"`
	Style       *Style `json:"style,omitempty"`

	IsRace        bool   `json:"isRace,omitempty"`
	RaceStartDate string `json:"raceStartDate,omitempty"`
	RaceEndDate   string `json:"raceEndDate,omitempty"`
	RaceWebpage   string `json:"raceWebpage,omitempty"`
	RaceTips      string `json:"raceTips,omitempty"`

	Image     string `json:"image,omitempty"`
	ImageSize string `json:"imageSize,omitempty"`
}

// Update carries a partial field set for a record mutation.
// Pointer fields distinguish "leave unchanged" (nil) from
// "set to this value" (non-nil, possibly zero).
type Update struct {
	Tags        *[]string `json:"tags,omitempty"`
	Description *string   `json:"description,omitempty"`
	CustomName  *string   `json:"customName,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Style       *Style    `json:"style,omitempty"`

	IsRace        *bool   `json:"isRace,omitempty"`
	RaceStartDate *string `json:"raceStartDate,omitempty"`
	RaceEndDate   *string `json:"raceEndDate,omitempty"`
	RaceWebpage   *string `json:"raceWebpage,omitempty"`
	RaceTips      *string `json:"raceTips,omitempty"`

	ImageSize *string `json:"imageSize,omitempty"`
}

// mergeStyle overlays patch onto base, returning the merged style.
func mergeStyle(base *Style, patch *Style) *Style {
	if patch == nil {
		return base
	}
	merged := Style{}
	if base != nil {
		merged = *base
	}
	if patch.Color != nil {
		merged.Color = patch.Color
	}
	if patch.Opacity != nil {
		merged.Opacity = patch.Opacity
	}
	if patch.Width != nil {
		merged.Width = patch.Width
	}
	return &merged
}
