// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()
	if v1 == nil {
		t.Fatal("GetValidator() returned nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same instance")
	}
}

type serviceCall struct {
	EntityID string `validate:"required,entityid"`
	Slug     string `validate:"omitempty,slug"`
	URL      string `validate:"omitempty,baseurl"`
	Mode     string `validate:"omitempty,oneof=cookie apikey"`
	Limit    int    `validate:"min=0,max=100"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		input   serviceCall
		wantTag string
	}{
		{"valid", serviceCall{EntityID: "light.kitchen", Slug: "home-lab", URL: "https://ha.local:8123"}, ""},
		{"missing entity", serviceCall{}, "required"},
		{"bad entity", serviceCall{EntityID: "kitchen"}, "entityid"},
		{"bad slug", serviceCall{EntityID: "light.a", Slug: "Home Lab"}, "slug"},
		{"url with query", serviceCall{EntityID: "light.a", URL: "http://x/?a=1"}, "baseurl"},
		{"url scheme", serviceCall{EntityID: "light.a", URL: "ftp://x"}, "baseurl"},
		{"bad mode", serviceCall{EntityID: "light.a", Mode: "basic"}, "oneof"},
		{"limit", serviceCall{EntityID: "light.a", Limit: 101}, "max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if tt.wantTag == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected %s failure", tt.wantTag)
			}
			if got := err.Errors()[0].Tag(); got != tt.wantTag {
				t.Errorf("tag = %q, want %q", got, tt.wantTag)
			}
		})
	}
}

func TestIsBaseURL(t *testing.T) {
	tests := map[string]bool{
		"http://192.168.1.10:8181": true,
		"https://pve.lan:8006/":    true,
		"https://host/prefix":      true,
		"":                         false,
		"192.168.1.10":             false,
		"ws://ha.local":            false,
		"http://host?x=1":          false,
	}
	for raw, want := range tests {
		if got := IsBaseURL(raw); got != want {
			t.Errorf("IsBaseURL(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestToAPIError(t *testing.T) {
	single := ValidateStruct(&serviceCall{})
	apiErr := single.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "EntityID is required") {
		t.Errorf("message = %q", apiErr.Message)
	}
	if apiErr.Details["tag"] != "required" {
		t.Errorf("details = %v", apiErr.Details)
	}

	multi := ValidateStruct(&serviceCall{EntityID: "nope", Limit: -1}).ToAPIError()
	fields, ok := multi.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 2 {
		t.Fatalf("expected two field entries, got %v", multi.Details)
	}
	if !strings.Contains(multi.Message, "; ") {
		t.Errorf("multi message should join with ';': %q", multi.Message)
	}
}
