// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package weather aggregates current conditions and a five-day forecast for
several independent locations.

Each location picks its provider:

  - openweathermap: the 2.5 weather and forecast endpoints plus the 1.0
    direct geocoder for locations configured by city name.
  - custom: a URL template expanded with {lat}, {lon}, {key}, {units},
    {city} and {endpoint} ("weather" or "forecast"). The endpoint must answer
    with OpenWeatherMap-compatible documents. Without {endpoint} only
    current conditions are fetched.

Locations refresh in parallel. A failing location never blocks the others:
it keeps its previous data (marked stale) or, when it has none, carries the
error itself.
*/
package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/ultrawide/internal/cache"
	"github.com/tomtom215/ultrawide/internal/integration"
)

// Name is the integration name.
const Name = "weather"

const (
	// DefaultPollInterval is the refresh period.
	DefaultPollInterval = 10 * time.Minute

	// DefaultGeocodeTTL is how long a geocoded city stays cached.
	DefaultGeocodeTTL = 24 * time.Hour

	// DefaultBaseURL is the OpenWeatherMap API root.
	DefaultBaseURL = "https://api.openweathermap.org"

	defaultUnits        = "metric"
	geocodeCacheEntries = 256
)

// ErrUnknownLocation is returned by SetCoordinates for an unconfigured id.
var ErrUnknownLocation = errors.New("unknown weather location")

// Option customizes a Client.
type Option func(*adapter)

// WithBaseURL points OpenWeatherMap requests at another root.
func WithBaseURL(base string) Option {
	return func(a *adapter) { a.baseURL = strings.TrimSuffix(base, "/") }
}

// WithGeocodeCache shares a geocode cache across clients.
func WithGeocodeCache(c *cache.LRU[Coordinates]) Option {
	return func(a *adapter) { a.geocodes = c }
}

// WithGeocodeTTL sizes the client's own geocode cache.
func WithGeocodeTTL(ttl time.Duration) Option {
	return func(a *adapter) { a.geocodes = cache.NewLRU[Coordinates](geocodeCacheEntries, ttl) }
}

// Client is the weather integration client.
type Client struct {
	*integration.Client[Config, Snapshot]
	adapter *adapter
}

// New creates a dormant client.
func New(opts integration.Options, transport integration.Transport, options ...Option) *Client {
	if opts.Name == "" {
		opts.Name = Name
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	a := &adapter{transport: transport, baseURL: DefaultBaseURL}
	for _, o := range options {
		o(a)
	}
	if a.geocodes == nil {
		a.geocodes = cache.NewLRU[Coordinates](geocodeCacheEntries, DefaultGeocodeTTL)
	}
	return &Client{Client: integration.New[Config, Snapshot](opts, a), adapter: a}
}

// SetCoordinates pins a location to a position reported by the browser's
// geolocation. It takes effect on the next refresh.
func (c *Client) SetCoordinates(id string, lat, lon float64) error {
	cfg, ok := c.Config()
	if !ok {
		return integration.ErrNotConnected
	}
	for _, loc := range cfg.Locations {
		if loc.ID == id {
			c.adapter.setResolved(id, Coordinates{Lat: lat, Lon: lon})
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownLocation, id)
}

type adapter struct {
	transport integration.Transport
	baseURL   string
	geocodes  *cache.LRU[Coordinates]

	mu       sync.Mutex
	cfg      Config
	resolved map[string]Coordinates
	last     map[string]LocationWeather
}

func (a *adapter) Validate(cfg Config) error {
	if len(cfg.Locations) == 0 {
		return integration.Configurationf("at least one weather location is required")
	}
	seen := make(map[string]bool, len(cfg.Locations))
	for i, loc := range cfg.Locations {
		label := loc.ID
		if label == "" {
			return integration.Configurationf("location %d: id is required", i)
		}
		if seen[label] {
			return integration.Configurationf("location %q is configured twice", label)
		}
		seen[label] = true

		switch loc.Provider {
		case "", ProviderOpenWeatherMap:
			if loc.APIKey == "" {
				return integration.Configurationf("location %q: OpenWeatherMap API key is required", label)
			}
		case ProviderCustom:
			if loc.URLTemplate == "" {
				return integration.Configurationf("location %q: url_template is required for a custom provider", label)
			}
		default:
			return integration.Configurationf("location %q: unknown provider %q", label, loc.Provider)
		}
		if loc.City == "" && !loc.hasCoordinates() {
			return integration.Configurationf("location %q: set a city or coordinates", label)
		}
	}
	return nil
}

func (a *adapter) Handshake(_ context.Context, cfg Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
	if a.last == nil {
		a.last = make(map[string]LocationWeather)
	}
	return nil
}

// Reset forgets resolved coordinates and the last good data per location.
func (a *adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resolved = make(map[string]Coordinates)
	a.last = make(map[string]LocationWeather)
}

func (a *adapter) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	a.mu.Lock()
	locations := a.cfg.Locations
	a.mu.Unlock()

	results := make([]LocationWeather, len(locations))
	errs := make([]error, len(locations))
	tasks := make([]integration.Task, len(locations))
	for i, loc := range locations {
		tasks[i] = integration.Task{Name: loc.ID, Run: func(ctx context.Context) error {
			results[i], errs[i] = a.fetchLocation(ctx, loc)
			return errs[i]
		}}
	}
	err := integration.RunIsolated(ctx, tasks...)

	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{Locations: make([]LocationWeather, len(locations))}
	failed := make(map[string]error)
	for i, loc := range locations {
		lw := results[i]
		if ferr := errs[i]; ferr != nil {
			failed[loc.ID] = ferr
			if prev, ok := a.last[loc.ID]; ok {
				lw = prev
				lw.Stale = true
			} else {
				lw = LocationWeather{
					ID:       loc.ID,
					Name:     displayName(loc),
					Units:    unitsOf(loc),
					Forecast: []DailyForecast{},
					Error:    ferr.Error(),
				}
			}
		} else {
			a.last[loc.ID] = lw
		}
		snap.Locations[i] = lw
	}

	switch {
	case len(failed) == 0:
		return snap, nil
	case len(failed) < len(locations):
		return snap, &integration.PartialFailure{Sections: failed}
	default:
		// Every location failed; the previous snapshot stays published.
		return Snapshot{}, err
	}
}

func (a *adapter) Close() error { return nil }

// fetchLocation resolves coordinates and fetches current conditions and the
// forecast concurrently.
func (a *adapter) fetchLocation(ctx context.Context, loc Location) (LocationWeather, error) {
	coords, err := a.coordinates(ctx, loc)
	if err != nil {
		return LocationWeather{}, fmt.Errorf("geocoding %q: %w", loc.City, err)
	}

	var (
		current  owmCurrent
		forecast owmForecast
		g        errgroup.Group
	)
	hasForecast := loc.Provider != ProviderCustom || strings.Contains(loc.URLTemplate, "{endpoint}")
	g.Go(func() error { return a.get(ctx, a.endpointURL(loc, coords, "weather"), &current) })
	if hasForecast {
		g.Go(func() error { return a.get(ctx, a.endpointURL(loc, coords, "forecast"), &forecast) })
	}
	if err := g.Wait(); err != nil {
		return LocationWeather{}, err
	}

	lw := LocationWeather{
		ID:        loc.ID,
		Name:      displayName(loc),
		Coords:    &coords,
		Units:     unitsOf(loc),
		Current:   toCurrent(current),
		Forecast:  dailyForecast(forecast.List, forecast.City.Timezone),
		UpdatedAt: time.Now(),
	}
	if lw.Name == "" {
		lw.Name = current.Name
	}
	return lw, nil
}

// coordinates returns the location's position: configured, pinned by
// SetCoordinates, resolved earlier, cached by city, or geocoded now.
func (a *adapter) coordinates(ctx context.Context, loc Location) (Coordinates, error) {
	if loc.hasCoordinates() {
		return Coordinates{Lat: loc.Lat, Lon: loc.Lon}, nil
	}
	a.mu.Lock()
	c, ok := a.resolved[loc.ID]
	a.mu.Unlock()
	if ok {
		return c, nil
	}
	if loc.Provider == ProviderCustom {
		// Custom templates address the place through {city}.
		return Coordinates{Name: loc.City}, nil
	}

	key := strings.ToLower(strings.TrimSpace(loc.City))
	if c, ok := a.geocodes.Get(key); ok {
		a.setResolved(loc.ID, c)
		return c, nil
	}

	q := url.Values{"q": {loc.City}, "limit": {"1"}, "appid": {loc.APIKey}}
	var hits []owmGeocode
	if err := a.get(ctx, a.baseURL+"/geo/1.0/direct?"+q.Encode(), &hits); err != nil {
		return Coordinates{}, err
	}
	if len(hits) == 0 {
		return Coordinates{}, &integration.MalformedResponseError{Msg: fmt.Sprintf("no match for city %q", loc.City)}
	}
	c = Coordinates{Lat: hits[0].Lat, Lon: hits[0].Lon, Name: hits[0].Name, Country: hits[0].Country}
	a.geocodes.Add(key, c)
	a.setResolved(loc.ID, c)
	return c, nil
}

func (a *adapter) setResolved(id string, c Coordinates) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.resolved == nil {
		a.resolved = make(map[string]Coordinates)
	}
	a.resolved[id] = c
}

func (a *adapter) endpointURL(loc Location, c Coordinates, endpoint string) string {
	if loc.Provider == ProviderCustom {
		return expandTemplate(loc, c, endpoint)
	}
	q := url.Values{
		"lat":   {formatCoord(c.Lat)},
		"lon":   {formatCoord(c.Lon)},
		"appid": {loc.APIKey},
		"units": {unitsOf(loc)},
	}
	return a.baseURL + "/data/2.5/" + endpoint + "?" + q.Encode()
}

func expandTemplate(loc Location, c Coordinates, endpoint string) string {
	lat, lon := "", ""
	if c.Lat != 0 || c.Lon != 0 {
		lat, lon = formatCoord(c.Lat), formatCoord(c.Lon)
	}
	return strings.NewReplacer(
		"{lat}", lat,
		"{lon}", lon,
		"{key}", url.QueryEscape(loc.APIKey),
		"{units}", unitsOf(loc),
		"{city}", url.QueryEscape(loc.City),
		"{endpoint}", endpoint,
	).Replace(loc.URLTemplate)
}

func (a *adapter) get(ctx context.Context, target string, out any) error {
	_, err := integration.DoJSON(ctx, a.transport, &integration.Request{
		Method: http.MethodGet,
		URL:    target,
		Header: map[string]string{"Accept": "application/json"},
	}, out)
	return err
}

func toCurrent(w owmCurrent) *Current {
	c := &Current{
		Temp:       w.Main.Temp,
		FeelsLike:  w.Main.FeelsLike,
		TempMin:    w.Main.TempMin,
		TempMax:    w.Main.TempMax,
		Humidity:   w.Main.Humidity,
		Pressure:   w.Main.Pressure,
		WindSpeed:  w.Wind.Speed,
		WindDeg:    w.Wind.Deg,
		ObservedAt: time.Unix(w.Dt, 0).UTC(),
	}
	if len(w.Weather) > 0 {
		c.Condition = w.Weather[0].Main
		c.Description = w.Weather[0].Description
		c.Icon = w.Weather[0].Icon
	}
	if w.Sys.Sunrise > 0 {
		c.Sunrise = time.Unix(w.Sys.Sunrise, 0).UTC()
	}
	if w.Sys.Sunset > 0 {
		c.Sunset = time.Unix(w.Sys.Sunset, 0).UTC()
	}
	return c
}

func displayName(loc Location) string {
	if loc.Name != "" {
		return loc.Name
	}
	return loc.City
}

func unitsOf(loc Location) string {
	if loc.Units == "" {
		return defaultUnits
	}
	return loc.Units
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
