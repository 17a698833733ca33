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

// MoviesConfig configures MovieAdapter.
type MoviesConfig struct {
	BaseURL        string
	ImageBaseURL   string
	WebBaseURL     string
	APIKey         string
	Language       string
	MinVoteAverage float64
}

// MovieAdapter queries a movie metadata service (TMDB v3 compatible).
//
// A query without a genre hint is a free-text title search. A query with a
// hint is a genre discovery filtered by minimum rating; the keyword is not
// sent in that mode.
type MovieAdapter struct {
	cfg    MoviesConfig
	client *sourceClient
	logger zerolog.Logger
}

// NewMovieAdapter creates the movie metadata adapter.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewMovieAdapter(cfg MoviesConfig, clientCfg ClientConfig, httpClient *http.Client, limiter Waiter, service string, logger zerolog.Logger) *MovieAdapter {
	logger = logger.With().Str("component", "catalog").Str("source", string(SourceMovieMetadata)).Logger()
	return &MovieAdapter{
		cfg:    cfg,
		client: newSourceClient(SourceMovieMetadata, service, httpClient, limiter, clientCfg, logger),
		logger: logger,
	}
}

// Source implements Adapter.
func (a *MovieAdapter) Source() Source { return SourceMovieMetadata }

// Search implements Adapter.
func (a *MovieAdapter) Search(ctx context.Context, q Query) []Item {
	started := time.Now()
	items, err := a.Fetch(ctx, q)
	return finish(a.logger, SourceMovieMetadata, q, started, items, err)
}

type movieResponse struct {
	Results []movieResult `json:"results"`
}

type movieResult struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	PosterPath  string    `json:"poster_path"`
	VoteAverage FlexFloat `json:"vote_average"`
	ReleaseDate string    `json:"release_date"`
}

// movieGenres maps genre names (lower case) to TMDB genre ids.
var movieGenres = map[string]string{
	"action":          "28",
	"adventure":       "12",
	"animation":       "16",
	"anime":           "16",
	"comedy":          "35",
	"crime":           "80",
	"documentary":     "99",
	"drama":           "18",
	"family":          "10751",
	"fantasy":         "14",
	"history":         "36",
	"horror":          "27",
	"music":           "10402",
	"musical":         "10402",
	"mystery":         "9648",
	"romance":         "10749",
	"science fiction": "878",
	"sci-fi":          "878",
	"scifi":           "878",
	"sf":              "878",
	"tv movie":        "10770",
	"thriller":        "53",
	"war":             "10752",
	"western":         "37",
	"アクション":           "28",
	"アドベンチャー":         "12",
	"アニメーション":         "16",
	"アニメ":             "16",
	"コメディ":            "35",
	"犯罪":              "80",
	"ドキュメンタリー":        "99",
	"ドラマ":             "18",
	"ファミリー":           "10751",
	"ファンタジー":          "14",
	"歴史":              "36",
	"ホラー":             "27",
	"音楽":              "10402",
	"ミステリー":           "9648",
	"ロマンス":            "10749",
	"サイエンスフィクション":     "878",
	"スリラー":            "53",
	"戦争":              "10752",
	"西部劇":             "37",
}

// ResolveMovieGenre maps a hint to a genre id. Numeric hints pass through;
// comma separated names are resolved individually. ok is false when no part
// of the hint is recognised.
func ResolveMovieGenre(hint string) (string, bool) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return "", false
	}

	var ids []string
	for _, part := range strings.Split(hint, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if isNumeric(part) {
			ids = append(ids, part)
			continue
		}
		if id, ok := movieGenres[part]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", false
	}
	return strings.Join(ids, ","), true
}

// Fetch performs the search and reports failures as *SourceFetchError.
func (a *MovieAdapter) Fetch(ctx context.Context, q Query) ([]Item, error) {
	reqURL, err := a.buildURL(q)
	if err != nil {
		return nil, &SourceFetchError{Source: SourceMovieMetadata, Keyword: q.Keyword, Err: err}
	}

	body, err := a.client.get(ctx, reqURL, nil)
	if err != nil {
		return nil, &SourceFetchError{Source: SourceMovieMetadata, Keyword: q.Keyword, Status: statusOf(err), Err: err}
	}

	var resp movieResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &SourceFetchError{Source: SourceMovieMetadata, Keyword: q.Keyword, Err: fmt.Errorf("decode response: %w", err)}
	}

	items := make([]Item, 0, len(resp.Results))
	for _, raw := range resp.Results {
		title := strings.TrimSpace(raw.Title)
		if raw.ID == 0 || title == "" {
			continue
		}
		id := strconv.FormatInt(raw.ID, 10)
		page := strings.TrimRight(a.cfg.WebBaseURL, "/") + "/" + id

		items = append(items, Item{
			ID:           idPrefixMovie + id,
			Source:       SourceMovieMetadata,
			Name:         title,
			ImageURL:     a.posterURL(raw.PosterPath),
			ActionURL:    page,
			ReferenceURL: page,
			Rating:       positive(raw.VoteAverage),
		})
		if len(items) >= q.limit() {
			break
		}
	}
	return items, nil
}

// buildURL selects exactly one of the two request modes.
func (a *MovieAdapter) buildURL(q Query) (string, error) {
	base := strings.TrimRight(a.cfg.BaseURL, "/")
	params := url.Values{}
	params.Set("api_key", a.cfg.APIKey)
	if a.cfg.Language != "" {
		params.Set("language", a.cfg.Language)
	}
	params.Set("include_adult", "false")
	params.Set("page", "1")

	if genres, ok := ResolveMovieGenre(q.GenreHint); ok {
		params.Set("with_genres", genres)
		params.Set("vote_average.gte", strconv.FormatFloat(a.cfg.MinVoteAverage, 'f', 1, 64))
		params.Set("sort_by", "popularity.desc")
		return base + "/discover/movie?" + params.Encode(), nil
	}

	if strings.TrimSpace(q.Keyword) == "" {
		return "", fmt.Errorf("keyword is required without a recognised genre hint")
	}
	params.Set("query", q.Keyword)
	return base + "/search/movie?" + params.Encode(), nil
}

func (a *MovieAdapter) posterURL(path string) *string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return &path
	}
	u := strings.TrimRight(a.cfg.ImageBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	return &u
}
