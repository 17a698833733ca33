// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// MarketplaceConfig configures MarketplaceAdapter.
type MarketplaceConfig struct {
	BaseURL     string
	AppID       string
	AffiliateID string

	// Listings whose genre id starts with one of these prefixes, or whose URL
	// contains one of these patterns, are books.
	BookGenrePrefixes []string
	BookURLPatterns   []string
}

// MarketplaceAdapter searches a general marketplace item search API
// (Rakuten Ichiba compatible, formatVersion 2).
type MarketplaceAdapter struct {
	cfg    MarketplaceConfig
	client *sourceClient
	logger zerolog.Logger
}

// NewMarketplaceAdapter creates the general marketplace adapter.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewMarketplaceAdapter(cfg MarketplaceConfig, clientCfg ClientConfig, httpClient *http.Client, limiter Waiter, service string, logger zerolog.Logger) *MarketplaceAdapter {
	logger = logger.With().Str("component", "catalog").Str("source", string(SourceMarketplace)).Logger()
	return &MarketplaceAdapter{
		cfg:    cfg,
		client: newSourceClient(SourceMarketplace, service, httpClient, limiter, clientCfg, logger),
		logger: logger,
	}
}

// Source implements Adapter.
func (a *MarketplaceAdapter) Source() Source { return SourceMarketplace }

// Search implements Adapter.
func (a *MarketplaceAdapter) Search(ctx context.Context, q Query) []Item {
	started := time.Now()
	items, err := a.Fetch(ctx, q)
	return finish(a.logger, SourceMarketplace, q, started, items, err)
}

type marketplaceResponse struct {
	Items []marketplaceItem `json:"Items"`
}

type marketplaceItem struct {
	ItemCode        string     `json:"itemCode"`
	ItemName        string     `json:"itemName"`
	ItemPrice       FlexFloat  `json:"itemPrice"`
	ItemURL         string     `json:"itemUrl"`
	AffiliateURL    string     `json:"affiliateUrl"`
	GenreID         FlexString `json:"genreId"`
	ReviewAverage   FlexFloat  `json:"reviewAverage"`
	MediumImageURLs ImageField `json:"mediumImageUrls"`
	SmallImageURLs  ImageField `json:"smallImageUrls"`
}

// Fetch performs the search and reports failures as *SourceFetchError.
func (a *MarketplaceAdapter) Fetch(ctx context.Context, q Query) ([]Item, error) {
	params := url.Values{}
	params.Set("applicationId", a.cfg.AppID)
	if a.cfg.AffiliateID != "" {
		params.Set("affiliateId", a.cfg.AffiliateID)
	}
	params.Set("format", "json")
	params.Set("formatVersion", "2")
	params.Set("keyword", q.Keyword)
	params.Set("hits", strconv.Itoa(q.limit()))
	params.Set("imageFlag", "1")
	if hint := strings.TrimSpace(q.GenreHint); hint != "" && isNumeric(hint) {
		params.Set("genreId", hint)
	}

	body, err := a.client.get(ctx, a.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &SourceFetchError{Source: SourceMarketplace, Keyword: q.Keyword, Status: statusOf(err), Err: err}
	}

	var resp marketplaceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &SourceFetchError{Source: SourceMarketplace, Keyword: q.Keyword, Err: fmt.Errorf("decode response: %w", err)}
	}

	items := make([]Item, 0, len(resp.Items))
	for _, raw := range resp.Items {
		if raw.ItemCode == "" || strings.TrimSpace(raw.ItemName) == "" {
			continue
		}
		if q.ExcludeBooks && a.isBook(raw) {
			continue
		}

		actionURL := raw.AffiliateURL
		if actionURL == "" {
			actionURL = raw.ItemURL
		}

		items = append(items, Item{
			ID:           idPrefixMarketplace + raw.ItemCode,
			Source:       SourceMarketplace,
			Name:         strings.TrimSpace(raw.ItemName),
			Price:        raw.ItemPrice.Ptr(),
			ImageURL:     FirstImage(raw.MediumImageURLs, raw.SmallImageURLs),
			ActionURL:    actionURL,
			ReferenceURL: raw.ItemURL,
			Rating:       positive(raw.ReviewAverage),
		})
		if len(items) >= q.limit() {
			break
		}
	}
	return items, nil
}

func (a *MarketplaceAdapter) isBook(it marketplaceItem) bool {
	genre := string(it.GenreID)
	for _, prefix := range a.cfg.BookGenrePrefixes {
		if prefix != "" && strings.HasPrefix(genre, prefix) {
			return true
		}
	}
	for _, pattern := range a.cfg.BookURLPatterns {
		if pattern != "" && strings.Contains(it.ItemURL, pattern) {
			return true
		}
	}
	return false
}

// positive treats a zero rating as "no reviews".
func positive(f FlexFloat) *float64 {
	if !f.Valid || f.Value <= 0 {
		return nil
	}
	return floatPtr(f.Value)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
