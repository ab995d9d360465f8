// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"math"
	"testing"
)

func TestFmtNumber(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234, "1,234"},
		{12345, "12,345"},
		{123456, "123,456"},
		{1234567, "1,234,567"},
		{1234567890, "1,234,567,890"},
		{math.MaxInt32, "2,147,483,647"},
		{-1, "-1"},
		{-999, "-999"},
		{-1000, "-1,000"},
		{-123456, "-123,456"},
		{math.MinInt, "-9,223,372,036,854,775,808"},
	}
	for _, tc := range cases {
		if got := fmtNumber(tc.in); got != tc.want {
			t.Errorf("fmtNumber(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGroupDigits(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"7", "7"},
		{"123", "123"},
		{"1234", "1,234"},
		{"123456", "123,456"},
		{"1234567", "1,234,567"},
	}
	for _, tc := range cases {
		if got := groupDigits(tc.in); got != tc.want {
			t.Errorf("groupDigits(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFmtPercent(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0.0, "0.0%"},
		{50.0, "50.0%"},
		{99.9, "99.9%"},
		{100.0, "100.0%"},
		{33.333, "33.3%"},
		{-10.5, "-10.5%"},
		{-0.1, "-0.1%"},
	}
	for _, tc := range cases {
		if got := fmtPercent(tc.in); got != tc.want {
			t.Errorf("fmtPercent(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncateStringRunes(t *testing.T) {
	cases := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 5, "hello"},
		{"hello", 0, ""},
		{"世界你好世界", 5, "世界..."},
	}
	for _, tc := range cases {
		if got := truncateString(tc.in, tc.maxLen); got != tc.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}
