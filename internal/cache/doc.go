// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package cache provides a small thread-safe LRU cache with per-entry TTL.

The weather client keeps resolved place names here so that a location is
reverse-geocoded once per TTL instead of on every refresh.

# Usage Example

	places := cache.NewLRU[string](256, 24*time.Hour)

	if name, ok := places.Get(key); ok {
	    return name
	}
	name := lookup(ctx, lat, lon)
	places.Add(key, name)

Expired entries are dropped when read. CleanupExpired removes them in bulk
and returns how many were removed.

# Thread Safety

All methods take the cache mutex; Get updates recency so it is a writer too.
*/
package cache
