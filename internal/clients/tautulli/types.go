// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package tautulli

import "github.com/goccy/go-json"

// Config holds the Tautulli connection parameters.
type Config struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"`
}

// Activity is the current streaming activity.
type Activity struct {
	StreamCount          int       `json:"stream_count"`
	StreamCountTranscode int       `json:"stream_count_transcode"`
	TotalBandwidth       int       `json:"total_bandwidth"`
	WANBandwidth         int       `json:"wan_bandwidth"`
	Sessions             []Session `json:"sessions"`
}

// Session is one active stream.
type Session struct {
	SessionKey        string `json:"session_key"`
	User              string `json:"user"`
	FriendlyName      string `json:"friendly_name"`
	MediaType         string `json:"media_type"`
	Title             string `json:"title"`
	GrandparentTitle  string `json:"grandparent_title"`
	FullTitle         string `json:"full_title"`
	State             string `json:"state"`
	ProgressPercent   int    `json:"progress_percent"`
	Player            string `json:"player"`
	Platform          string `json:"platform"`
	TranscodeDecision string `json:"transcode_decision"`
	Bandwidth         int    `json:"bandwidth"`
	Thumb             string `json:"thumb"`
}

// RecentItem is one recently added library item.
type RecentItem struct {
	RatingKey        string `json:"rating_key"`
	Title            string `json:"title"`
	ParentTitle      string `json:"parent_title"`
	GrandparentTitle string `json:"grandparent_title"`
	MediaType        string `json:"media_type"`
	Year             int    `json:"year"`
	Thumb            string `json:"thumb"`
	AddedAt          int64  `json:"added_at"`
	LibraryName      string `json:"library_name"`
}

// HistoryItem is one finished play.
type HistoryItem struct {
	Date            int64   `json:"date"`
	User            string  `json:"user"`
	FriendlyName    string  `json:"friendly_name"`
	FullTitle       string  `json:"full_title"`
	MediaType       string  `json:"media_type"`
	Player          string  `json:"player"`
	Duration        int64   `json:"duration"`
	PercentComplete int     `json:"percent_complete"`
	WatchedStatus   float64 `json:"watched_status"`
}

// StatGroup is one home_stats category (top movies, top users, ...).
type StatGroup struct {
	StatID    string    `json:"stat_id"`
	StatTitle string    `json:"stat_title"`
	Rows      []StatRow `json:"rows"`
}

// StatRow is one entry in a StatGroup.
type StatRow struct {
	Title            string `json:"title,omitempty"`
	GrandparentTitle string `json:"grandparent_title,omitempty"`
	User             string `json:"user,omitempty"`
	FriendlyName     string `json:"friendly_name,omitempty"`
	TotalPlays       int    `json:"total_plays,omitempty"`
	TotalDuration    int64  `json:"total_duration,omitempty"`
	UsersWatched     int    `json:"users_watched,omitempty"`
	Thumb            string `json:"thumb,omitempty"`
}

// Snapshot is the merged Tautulli view. Errors lists sections that failed
// in the latest refresh; those sections keep their previous data.
type Snapshot struct {
	Activity      Activity          `json:"activity"`
	RecentlyAdded []RecentItem      `json:"recently_added"`
	History       []HistoryItem     `json:"history"`
	HomeStats     []StatGroup       `json:"home_stats"`
	Errors        map[string]string `json:"errors,omitempty"`
}

// envelope is Tautulli's {"response": {result, message, data}} wrapper.
type envelope struct {
	Response struct {
		Result  string          `json:"result"`
		Message *string         `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"response"`
}

type recentlyAddedData struct {
	RecentlyAdded []RecentItem `json:"recently_added"`
}

type historyData struct {
	Data []HistoryItem `json:"data"`
}
