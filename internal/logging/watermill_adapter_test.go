// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

func TestWatermillAdapter_Levels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	a := NewWatermillAdapterWithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	a.Trace("trace message", nil)
	if buf.Len() != 0 {
		t.Fatalf("trace should be filtered at debug level, got %q", buf.String())
	}

	a.Debug("debug message", watermill.LogFields{"topic": "snapshots"})
	out := buf.String()
	if !strings.Contains(out, `"level":"debug"`) || !strings.Contains(out, `"topic":"snapshots"`) {
		t.Errorf("unexpected debug output: %s", out)
	}

	buf.Reset()
	a.Error("publish failed", errors.New("closed"), nil)
	out = buf.String()
	if !strings.Contains(out, `"error":"closed"`) || !strings.Contains(out, "publish failed") {
		t.Errorf("unexpected error output: %s", out)
	}
}

func TestWatermillAdapter_WithMergesFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := NewWatermillAdapterWithLogger(zerolog.New(&buf))
	child := base.With(watermill.LogFields{"subscriber": "bridge"})

	child.Info("subscribed", watermill.LogFields{"topic": "status"})
	out := buf.String()
	if !strings.Contains(out, `"subscriber":"bridge"`) || !strings.Contains(out, `"topic":"status"`) {
		t.Errorf("fields not merged: %s", out)
	}

	buf.Reset()
	base.Info("plain", nil)
	if strings.Contains(buf.String(), "subscriber") {
		t.Errorf("With must not mutate the parent: %s", buf.String())
	}
}
