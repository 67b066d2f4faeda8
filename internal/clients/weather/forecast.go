// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package weather

import (
	"math"
	"time"
)

// forecastDays bounds the daily forecast.
const forecastDays = 5

// dailyForecast groups 3-hour slots by calendar day in the location's UTC
// offset. Each day keeps the extreme temperatures, the highest precipitation
// chance and the most frequent condition and icon (earliest wins a tie).
func dailyForecast(slots []owmSlot, tzOffset int) []DailyForecast {
	zone := time.FixedZone("", tzOffset)

	type bucket struct {
		day        DailyForecast
		conditions *modeCounter
		icons      *modeCounter
	}
	var (
		order   []string
		buckets = map[string]*bucket{}
	)
	for _, slot := range slots {
		date := time.Unix(slot.Dt, 0).In(zone).Format(time.DateOnly)
		b, ok := buckets[date]
		if !ok {
			if len(order) == forecastDays {
				continue
			}
			b = &bucket{
				day:        DailyForecast{Date: date, High: math.Inf(-1), Low: math.Inf(1)},
				conditions: newModeCounter(),
				icons:      newModeCounter(),
			}
			buckets[date] = b
			order = append(order, date)
		}
		b.day.High = math.Max(b.day.High, slot.Main.TempMax)
		b.day.Low = math.Min(b.day.Low, slot.Main.TempMin)
		b.day.PrecipChance = math.Max(b.day.PrecipChance, slot.Pop)
		if len(slot.Weather) > 0 {
			b.conditions.add(slot.Weather[0].Main)
			b.icons.add(slot.Weather[0].Icon)
		}
	}

	out := make([]DailyForecast, 0, len(order))
	for _, date := range order {
		b := buckets[date]
		b.day.Condition = b.conditions.mode()
		b.day.Icon = b.icons.mode()
		out = append(out, b.day)
	}
	return out
}

// modeCounter finds the most frequent string, preferring the first seen.
type modeCounter struct {
	counts map[string]int
	order  []string
}

func newModeCounter() *modeCounter {
	return &modeCounter{counts: map[string]int{}}
}

func (m *modeCounter) add(v string) {
	if v == "" {
		return
	}
	if _, ok := m.counts[v]; !ok {
		m.order = append(m.order, v)
	}
	m.counts[v]++
}

func (m *modeCounter) mode() string {
	best, bestN := "", 0
	for _, v := range m.order {
		if n := m.counts[v]; n > bestN {
			best, bestN = v, n
		}
	}
	return best
}
