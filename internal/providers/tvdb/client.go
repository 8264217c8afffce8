// Package tvdb implements the metadata provider capability against
// TheTVDB v4 API, including its bearer-token login flow.
package tvdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/renamarr/internal/models"
	"github.com/amaumene/renamarr/internal/providers"
)

const (
	defaultBaseURL = "https://api4.thetvdb.com/v4"
	requestTimeout = 10 * time.Second
	tokenLifetime  = 24 * time.Hour
)

type loginRequest struct {
	APIKey string `json:"apikey"`
	Pin    string `json:"pin,omitempty"`
}

type loginResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

type searchResult struct {
	TVDBID   string `json:"tvdb_id"`
	Name     string `json:"name"`
	Year     string `json:"year"`
	Type     string `json:"type"`
	Overview string `json:"overview"`
	ImageURL string `json:"image_url"`
}

type searchResponse struct {
	Data []searchResult `json:"data"`
}

type episodesResponse struct {
	Data struct {
		Episodes []struct {
			Name          string `json:"name"`
			SeasonNumber  int    `json:"seasonNumber"`
			EpisodeNumber int    `json:"number"`
		} `json:"episodes"`
	} `json:"data"`
}

// Client talks to the TVDB API. The bearer token is fetched lazily and
// refreshed when it nears expiry.
type Client struct {
	baseURL    string
	apiKey     string
	pin        string
	httpClient *http.Client
	logger     *logrus.Logger

	mu          sync.Mutex
	token       string
	tokenIssued time.Time
}

// NewClient creates a new TVDB client
func NewClient(apiKey, pin string, logger *logrus.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("TVDB API key is required")
	}

	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		pin:        pin,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}, nil
}

// ID implements providers.Provider.
func (c *Client) ID() string { return "tvdb" }

// Search implements providers.Provider.
func (c *Client) Search(ctx context.Context, query providers.Query) ([]models.Candidate, error) {
	params := url.Values{}
	params.Set("query", query.Title)
	if query.MediaType == models.MediaTypeTV {
		params.Set("type", "series")
	} else {
		params.Set("type", "movie")
	}
	if query.Year != 0 {
		params.Set("year", strconv.Itoa(query.Year))
	}

	var response searchResponse
	if err := c.doRequest(ctx, "/search", params, &response); err != nil {
		return nil, err
	}

	var candidates []models.Candidate
	for _, r := range response.Data {
		mediaType := models.MediaTypeMovie
		if r.Type == "series" {
			mediaType = models.MediaTypeTV
		}
		year, _ := strconv.Atoi(r.Year)
		candidates = append(candidates, models.Candidate{
			ProviderID: c.ID(),
			ExternalID: r.TVDBID,
			Title:      r.Name,
			Year:       year,
			MediaType:  mediaType,
		})
	}

	c.logger.WithFields(logrus.Fields{
		"query": query.Title,
		"count": len(candidates),
	}).Debug("TVDB search completed")
	return candidates, nil
}

// ResolveEpisode implements providers.Provider.
func (c *Client) ResolveEpisode(ctx context.Context, externalID string, season, episode int) (string, error) {
	params := url.Values{}
	params.Set("season", strconv.Itoa(season))
	params.Set("episodeNumber", strconv.Itoa(episode))

	path := fmt.Sprintf("/series/%s/episodes/default", externalID)
	var response episodesResponse
	if err := c.doRequest(ctx, path, params, &response); err != nil {
		return "", err
	}

	for _, ep := range response.Data.Episodes {
		if ep.SeasonNumber == season && ep.EpisodeNumber == episode {
			return ep.Name, nil
		}
	}
	return "", fmt.Errorf("episode S%02dE%02d not found", season, episode)
}

// Details implements providers.Provider.
func (c *Client) Details(ctx context.Context, candidate models.Candidate) (*models.Metadata, error) {
	// TVDB search results already carry everything the scheme needs;
	// a separate details call only adds translation records.
	return &models.Metadata{
		Title: candidate.Title,
		Year:  candidate.Year,
	}, nil
}

// login obtains a fresh bearer token.
func (c *Client) login(ctx context.Context) error {
	body, err := json.Marshal(loginRequest{APIKey: c.apiKey, Pin: c.pin})
	if err != nil {
		return fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("login failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var loginResp loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}

	c.token = loginResp.Data.Token
	c.tokenIssued = time.Now()
	c.logger.Debug("TVDB token refreshed")
	return nil
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || time.Since(c.tokenIssued) > tokenLifetime-time.Hour {
		if err := c.login(ctx); err != nil {
			return "", err
		}
	}
	return c.token, nil
}

// doRequest performs an authenticated GET. Failures wrap
// providers.ErrUnavailable so the matcher can fall back.
func (c *Client) doRequest(ctx context.Context, path string, params url.Values, result interface{}) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", providers.ErrUnavailable, err)
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", providers.ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", providers.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: TVDB returned status %d: %s", providers.ErrUnavailable, resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", providers.ErrUnavailable, err)
	}
	return nil
}
