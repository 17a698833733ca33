// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package catalog

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ImageField decodes an image field that sources encode in one of three shapes:
//
//	"https://..."                          a bare URL
//	["https://...", ...]                   a list of URLs
//	[{"imageUrl": "https://..."}, ...]     a list of objects
//
// null or absent decodes to an empty field.
type ImageField struct {
	urls []string
}

// URLs returns the decoded URLs in source order, empty strings removed.
func (f ImageField) URLs() []string {
	return f.urls
}

// First returns the first non-empty URL, or "".
func (f ImageField) First() string {
	for _, u := range f.urls {
		if u != "" {
			return u
		}
	}
	return ""
}

type imageObject struct {
	ImageURL string `json:"imageUrl"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *ImageField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	f.urls = nil

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("image field: %w", err)
		}
		f.add(s)
		return nil

	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("image field: %w", err)
		}
		for _, elem := range raw {
			elem = bytes.TrimSpace(elem)
			if len(elem) == 0 {
				continue
			}
			switch elem[0] {
			case '"':
				var s string
				if err := json.Unmarshal(elem, &s); err != nil {
					return fmt.Errorf("image field element: %w", err)
				}
				f.add(s)
			case '{':
				var obj imageObject
				if err := json.Unmarshal(elem, &obj); err != nil {
					return fmt.Errorf("image field element: %w", err)
				}
				f.add(obj.ImageURL)
			}
			// Other element kinds carry no URL and are skipped.
		}
		return nil

	default:
		// Numbers, booleans and objects are not image encodings any source uses.
		return nil
	}
}

func (f *ImageField) add(u string) {
	if u = strings.TrimSpace(u); u != "" {
		f.urls = append(f.urls, u)
	}
}

// FirstImage returns the first non-empty URL across fields, in the order
// given. Callers pass fields in priority order.
func FirstImage(fields ...ImageField) *string {
	for _, f := range fields {
		if u := f.First(); u != "" {
			return &u
		}
	}
	return nil
}

// FlexFloat decodes a number that some sources send as a JSON string.
type FlexFloat struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = FlexFloat{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			// Sources send "" or "-" for unrated items.
			return nil
		}
		f.Value, f.Valid = v, true
		return nil
	}
	if err := json.Unmarshal(data, &f.Value); err != nil {
		return err
	}
	f.Valid = true
	return nil
}

// Ptr returns a pointer to the value, or nil when absent.
func (f FlexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// FlexString decodes an identifier that some sources send as a number.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(string(data))
	return nil
}
