// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package sonarr

import "time"

// Config holds the Sonarr connection parameters. DaysAhead bounds the
// calendar window; zero means DefaultDaysAhead.
type Config struct {
	URL       string `json:"url"`
	APIKey    string `json:"api_key"`
	DaysAhead int    `json:"days_ahead"`
}

// Episode is one calendar entry annotated with its series.
type Episode struct {
	ID            int       `json:"id"`
	SeriesID      int       `json:"seriesId"`
	SeasonNumber  int       `json:"seasonNumber"`
	EpisodeNumber int       `json:"episodeNumber"`
	Title         string    `json:"title"`
	Overview      string    `json:"overview,omitempty"`
	AirDateUTC    time.Time `json:"airDateUtc"`
	HasFile       bool      `json:"hasFile"`
	Monitored     bool      `json:"monitored"`
	Series        *Series   `json:"series,omitempty"`
}

// Label renders "Series S01E02" for display.
func (e Episode) Label() string {
	name := "Unknown series"
	if e.Series != nil && e.Series.Title != "" {
		name = e.Series.Title
	}
	return name + " " + seasonEpisode(e.SeasonNumber, e.EpisodeNumber)
}

// Series is the subset of series metadata returned with includeSeries.
type Series struct {
	ID      int     `json:"id"`
	Title   string  `json:"title"`
	Network string  `json:"network,omitempty"`
	Status  string  `json:"status,omitempty"`
	Images  []Image `json:"images,omitempty"`
}

// Image is a series artwork reference.
type Image struct {
	CoverType string `json:"coverType"`
	RemoteURL string `json:"remoteUrl,omitempty"`
}

// Snapshot is the rolling calendar window sorted by air date.
type Snapshot struct {
	Version  string    `json:"version"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Episodes []Episode `json:"episodes"`
}

type systemStatus struct {
	Version string `json:"version"`
	AppName string `json:"appName"`
}
