// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package weather

import "time"

// Providers.
const (
	ProviderOpenWeatherMap = "openweathermap"
	ProviderCustom         = "custom"
)

// Config lists the locations to track.
type Config struct {
	Locations []Location `json:"locations"`
}

// Location is one configured place. Coordinates win over City; a location
// with only a City is geocoded once and the result reused.
type Location struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	APIKey      string  `json:"api_key,omitempty"`
	City        string  `json:"city,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	Lon         float64 `json:"lon,omitempty"`
	Units       string  `json:"units,omitempty"`
	URLTemplate string  `json:"url_template,omitempty"`
}

func (l Location) hasCoordinates() bool { return l.Lat != 0 || l.Lon != 0 }

// Coordinates is a resolved position.
type Coordinates struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Name    string  `json:"name,omitempty"`
	Country string  `json:"country,omitempty"`
}

// Current is the present conditions at a location.
type Current struct {
	Temp        float64   `json:"temp"`
	FeelsLike   float64   `json:"feels_like"`
	TempMin     float64   `json:"temp_min"`
	TempMax     float64   `json:"temp_max"`
	Humidity    int       `json:"humidity"`
	Pressure    int       `json:"pressure"`
	WindSpeed   float64   `json:"wind_speed"`
	WindDeg     int       `json:"wind_deg"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Sunrise     time.Time `json:"sunrise"`
	Sunset      time.Time `json:"sunset"`
	ObservedAt  time.Time `json:"observed_at"`
}

// DailyForecast is one calendar day reduced from 3-hour slots.
type DailyForecast struct {
	Date         string  `json:"date"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	Condition    string  `json:"condition"`
	Icon         string  `json:"icon"`
	PrecipChance float64 `json:"precip_chance"`
}

// LocationWeather is the per-location part of a Snapshot. Error is only set
// when the location has never been fetched successfully; otherwise a failed
// refresh keeps the old data and sets Stale.
type LocationWeather struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Coords    *Coordinates    `json:"coords,omitempty"`
	Units     string          `json:"units"`
	Current   *Current        `json:"current,omitempty"`
	Forecast  []DailyForecast `json:"forecast"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
	Stale     bool            `json:"stale,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Snapshot holds every location in configuration order.
type Snapshot struct {
	Locations []LocationWeather `json:"locations"`
}

// Location returns the entry with the given id.
func (s Snapshot) Location(id string) (LocationWeather, bool) {
	for _, l := range s.Locations {
		if l.ID == id {
			return l, true
		}
	}
	return LocationWeather{}, false
}

// OpenWeatherMap wire shapes. Custom endpoints must answer with the same
// documents.

type owmCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owmCurrent struct {
	Weather []owmCondition `json:"weather"`
	Main    struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
	Dt       int64  `json:"dt"`
	Timezone int    `json:"timezone"`
	Name     string `json:"name"`
}

type owmSlot struct {
	Dt   int64 `json:"dt"`
	Main struct {
		TempMin float64 `json:"temp_min"`
		TempMax float64 `json:"temp_max"`
	} `json:"main"`
	Weather []owmCondition `json:"weather"`
	Pop     float64        `json:"pop"`
}

type owmForecast struct {
	List []owmSlot `json:"list"`
	City struct {
		Timezone int `json:"timezone"`
	} `json:"city"`
}

type owmGeocode struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}
