// Package tmdb implements the metadata provider capability against
// The Movie Database v3 API.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/renamarr/internal/models"
	"github.com/amaumene/renamarr/internal/providers"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	imageBaseURL    = "https://image.tmdb.org/t/p/w500"
	searchCacheTTL  = 10 * time.Minute
	requestTimeout  = 10 * time.Second
	maxRetries      = 2
	maxResponseSize = 4 * 1024 * 1024
)

// movieResult is one entry of a /search/movie response
type movieResult struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
	Popularity  float64 `json:"popularity"`
}

// tvResult is one entry of a /search/tv response
type tvResult struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	FirstAirDate string  `json:"first_air_date"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	Popularity   float64 `json:"popularity"`
}

type searchMovieResponse struct {
	Results []movieResult `json:"results"`
}

type searchTVResponse struct {
	Results []tvResult `json:"results"`
}

type episodeResponse struct {
	Name string `json:"name"`
}

type detailResponse struct {
	Title        string `json:"title"`
	Name         string `json:"name"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
	Overview     string `json:"overview"`
	PosterPath   string `json:"poster_path"`
	Genres       []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

// Client talks to the TMDB API. Search results are cached briefly so a
// batch of episodes from one show does not repeat identical queries.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	searchCache *gocache.Cache
	logger      *logrus.Logger
}

// NewClient creates a new TMDB client
func NewClient(apiKey string, logger *logrus.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("TMDB API key is required")
	}

	return &Client{
		baseURL:     defaultBaseURL,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: requestTimeout},
		searchCache: gocache.New(searchCacheTTL, 2*searchCacheTTL),
		logger:      logger,
	}, nil
}

// ID implements providers.Provider.
func (c *Client) ID() string { return "tmdb" }

// Search implements providers.Provider.
func (c *Client) Search(ctx context.Context, query providers.Query) ([]models.Candidate, error) {
	cacheKey := fmt.Sprintf("%s|%d|%s", query.Title, query.Year, query.MediaType)
	if cached, ok := c.searchCache.Get(cacheKey); ok {
		return cached.([]models.Candidate), nil
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", query.Title)

	var candidates []models.Candidate
	if query.MediaType == models.MediaTypeTV {
		var response searchTVResponse
		if err := c.doRequest(ctx, "/search/tv", params, &response); err != nil {
			return nil, err
		}
		for _, r := range response.Results {
			candidates = append(candidates, models.Candidate{
				ProviderID: c.ID(),
				ExternalID: strconv.Itoa(r.ID),
				Title:      r.Name,
				Year:       yearOf(r.FirstAirDate),
				MediaType:  models.MediaTypeTV,
				Popularity: r.Popularity,
			})
		}
	} else {
		if query.Year != 0 {
			params.Set("year", strconv.Itoa(query.Year))
		}
		var response searchMovieResponse
		if err := c.doRequest(ctx, "/search/movie", params, &response); err != nil {
			return nil, err
		}
		for _, r := range response.Results {
			candidates = append(candidates, models.Candidate{
				ProviderID: c.ID(),
				ExternalID: strconv.Itoa(r.ID),
				Title:      r.Title,
				Year:       yearOf(r.ReleaseDate),
				MediaType:  models.MediaTypeMovie,
				Popularity: r.Popularity,
			})
		}
	}

	c.searchCache.Set(cacheKey, candidates, gocache.DefaultExpiration)
	c.logger.WithFields(logrus.Fields{
		"query": query.Title,
		"count": len(candidates),
	}).Debug("TMDB search completed")
	return candidates, nil
}

// ResolveEpisode implements providers.Provider.
func (c *Client) ResolveEpisode(ctx context.Context, externalID string, season, episode int) (string, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)

	path := fmt.Sprintf("/tv/%s/season/%d/episode/%d", externalID, season, episode)
	var response episodeResponse
	if err := c.doRequest(ctx, path, params, &response); err != nil {
		return "", err
	}
	return response.Name, nil
}

// Details implements providers.Provider.
func (c *Client) Details(ctx context.Context, candidate models.Candidate) (*models.Metadata, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)

	path := "/movie/" + candidate.ExternalID
	if candidate.MediaType == models.MediaTypeTV {
		path = "/tv/" + candidate.ExternalID
	}

	var response detailResponse
	if err := c.doRequest(ctx, path, params, &response); err != nil {
		return nil, err
	}

	metadata := &models.Metadata{
		Title:    response.Title,
		Year:     yearOf(response.ReleaseDate),
		Overview: response.Overview,
	}
	if candidate.MediaType == models.MediaTypeTV {
		metadata.Title = response.Name
		metadata.Year = yearOf(response.FirstAirDate)
	}
	if response.PosterPath != "" {
		metadata.ArtworkURL = imageBaseURL + response.PosterPath
	}
	for _, g := range response.Genres {
		metadata.Genres = append(metadata.Genres, g.Name)
	}
	return metadata, nil
}

// doRequest performs a GET with bounded retries on transient failures.
// Exhausted retries and auth errors wrap providers.ErrUnavailable so
// the matcher can tell them apart from empty results.
func (c *Client) doRequest(ctx context.Context, path string, params url.Values, result interface{}) error {
	fullURL := c.baseURL + path + "?" + params.Encode()

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("TMDB returned status %d: %s", resp.StatusCode, string(body)))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("TMDB returned status %d", resp.StatusCode)
		}

		return json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(result)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("%w: %v", providers.ErrUnavailable, err)
	}
	return nil
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
