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

// BooksConfig configures BookAdapter.
type BooksConfig struct {
	BaseURL     string
	AppID       string
	AffiliateID string
}

// BookAdapter searches a book marketplace (Rakuten Books total search compatible).
type BookAdapter struct {
	cfg    BooksConfig
	client *sourceClient
	logger zerolog.Logger
}

// NewBookAdapter creates the book marketplace adapter.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBookAdapter(cfg BooksConfig, clientCfg ClientConfig, httpClient *http.Client, limiter Waiter, service string, logger zerolog.Logger) *BookAdapter {
	logger = logger.With().Str("component", "catalog").Str("source", string(SourceBookMarketplace)).Logger()
	return &BookAdapter{
		cfg:    cfg,
		client: newSourceClient(SourceBookMarketplace, service, httpClient, limiter, clientCfg, logger),
		logger: logger,
	}
}

// Source implements Adapter.
func (a *BookAdapter) Source() Source { return SourceBookMarketplace }

// Search implements Adapter.
func (a *BookAdapter) Search(ctx context.Context, q Query) []Item {
	started := time.Now()
	items, err := a.Fetch(ctx, q)
	return finish(a.logger, SourceBookMarketplace, q, started, items, err)
}

type booksResponse struct {
	Items []bookItem `json:"Items"`
}

type bookItem struct {
	Title          string     `json:"title"`
	Author         string     `json:"author"`
	ISBN           string     `json:"isbn"`
	JAN            string     `json:"jan"`
	ItemPrice      FlexFloat  `json:"itemPrice"`
	ItemURL        string     `json:"itemUrl"`
	AffiliateURL   string     `json:"affiliateUrl"`
	ReviewAverage  FlexFloat  `json:"reviewAverage"`
	LargeImageURL  ImageField `json:"largeImageUrl"`
	MediumImageURL ImageField `json:"mediumImageUrl"`
	SmallImageURL  ImageField `json:"smallImageUrl"`
}

func (b bookItem) id() string {
	switch {
	case b.ISBN != "":
		return b.ISBN
	case b.JAN != "":
		return b.JAN
	default:
		return b.ItemURL
	}
}

// Fetch performs the search and reports failures as *SourceFetchError.
func (a *BookAdapter) Fetch(ctx context.Context, q Query) ([]Item, error) {
	params := url.Values{}
	params.Set("applicationId", a.cfg.AppID)
	if a.cfg.AffiliateID != "" {
		params.Set("affiliateId", a.cfg.AffiliateID)
	}
	params.Set("format", "json")
	params.Set("formatVersion", "2")
	params.Set("keyword", q.Keyword)
	params.Set("hits", strconv.Itoa(q.limit()))
	if hint := strings.TrimSpace(q.GenreHint); hint != "" && isNumeric(hint) {
		params.Set("booksGenreId", hint)
	}

	body, err := a.client.get(ctx, a.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &SourceFetchError{Source: SourceBookMarketplace, Keyword: q.Keyword, Status: statusOf(err), Err: err}
	}

	var resp booksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &SourceFetchError{Source: SourceBookMarketplace, Keyword: q.Keyword, Err: fmt.Errorf("decode response: %w", err)}
	}

	items := make([]Item, 0, len(resp.Items))
	for _, raw := range resp.Items {
		id := raw.id()
		title := strings.TrimSpace(raw.Title)
		if id == "" || title == "" {
			continue
		}

		name := title
		if author := strings.TrimSpace(raw.Author); author != "" {
			name = title + " / " + author
		}
		actionURL := raw.AffiliateURL
		if actionURL == "" {
			actionURL = raw.ItemURL
		}

		items = append(items, Item{
			ID:           idPrefixBook + id,
			Source:       SourceBookMarketplace,
			Name:         name,
			Price:        raw.ItemPrice.Ptr(),
			ImageURL:     FirstImage(raw.LargeImageURL, raw.MediumImageURL, raw.SmallImageURL),
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
