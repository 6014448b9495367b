package library

import (
	"net/url"
	"strings"
)

// ApplyTo overlays the update onto a record. Only supplied fields
// change; Style merges field-wise. RaceWebpage is kept when it parses
// as an absolute URL and cleared otherwise, so a bad link never
// lingers on a record.
func (u Update) ApplyTo(r *Record) {
	if u.Tags != nil {
		r.Tags = *u.Tags
	}
	if u.Description != nil {
		r.Description = *u.Description
	}
	if u.CustomName != nil {
		r.CustomName = *u.CustomName
	}
	if u.Category != nil {
		r.Category = *u.Category
	}
	if u.Style != nil {
		r.Style = mergeStyle(r.Style, u.Style)
	}
	if u.IsRace != nil {
		r.IsRace = *u.IsRace
	}
	if u.RaceStartDate != nil {
		r.RaceStartDate = *u.RaceStartDate
	}
	if u.RaceEndDate != nil {
		r.RaceEndDate = *u.RaceEndDate
	}
	if u.RaceWebpage != nil {
		r.RaceWebpage = normalizeWebpage(*u.RaceWebpage)
	}
	if u.RaceTips != nil {
		r.RaceTips = *u.RaceTips
	}
	if u.ImageSize != nil {
		r.ImageSize = *u.ImageSize
	}
}

// normalizeWebpage returns the URL when well-formed, "" otherwise.
func normalizeWebpage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return raw
}

// Clone returns a deep copy of the record so snapshot readers can
// never alias the store's backing slices.
func (r Record) Clone() Record {
	out := r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	if r.Style != nil {
		s := *r.Style
		out.Style = &s
	}
	return out
}
