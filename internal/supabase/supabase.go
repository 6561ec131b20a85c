// Package supabase reads the bottle catalogue from a Supabase (PostgREST) project.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"wine-cellar/internal/cellar"
)

// tokenTTL is the lifetime of a user-scoped access token.
const tokenTTL = 5 * time.Minute

type wineRow struct {
	Name     string   `json:"name"`
	Producer string   `json:"producer"`
	Region   string   `json:"region"`
	Grape    string   `json:"grape"`
	Color    string   `json:"color"`
	Rating   *float64 `json:"rating"`
	Vintage  *int     `json:"vintage"`
}

type bottleRow struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Quantity       int        `json:"quantity"`
	ReadinessLabel *string    `json:"readiness_label"`
	DrinkFrom      *int       `json:"drink_from"`
	DrinkUntil     *int       `json:"drink_until"`
	AnalyzedAt     *time.Time `json:"analyzed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	Wine           *wineRow   `json:"wine"`
}

// Client is a read-only Supabase bottle source.
type Client struct {
	baseURL    string
	anonKey    string
	jwtSecret  []byte
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a new Supabase client.
func NewClient(baseURL, anonKey, jwtSecret string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		jwtSecret:  []byte(jwtSecret),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
}

// ListBottles fetches every bottle of a user with its wine embedded.
// Row level security sees the request as the user through a signed token.
func (c *Client) ListBottles(ctx context.Context, userID string) ([]cellar.Bottle, error) {
	token, err := c.userToken(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create user token: %w", err)
	}

	q := url.Values{}
	q.Set("select", "*,wine:wines(*)")
	q.Set("user_id", "eq."+userID)
	q.Set("order", "created_at.asc")
	endpoint := c.baseURL + "/rest/v1/bottles?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("supabase error: status %d, body: %s", resp.StatusCode, body)
	}

	var rows []bottleRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	bottles := make([]cellar.Bottle, 0, len(rows))
	for _, r := range rows {
		b, err := r.toBottle()
		if err != nil {
			return nil, err
		}
		bottles = append(bottles, b)
	}
	return bottles, nil
}

func (r bottleRow) toBottle() (cellar.Bottle, error) {
	b := cellar.Bottle{
		ID:         r.ID,
		UserID:     r.UserID,
		Quantity:   max(r.Quantity, 0),
		DrinkFrom:  r.DrinkFrom,
		DrinkUntil: r.DrinkUntil,
		AnalyzedAt: r.AnalyzedAt,
		CreatedAt:  r.CreatedAt,
	}
	if r.ReadinessLabel != nil && *r.ReadinessLabel != "" {
		label, err := cellar.ParseReadinessLabel(*r.ReadinessLabel)
		if err != nil {
			return cellar.Bottle{}, fmt.Errorf("bottle %s: %w", r.ID, err)
		}
		b.Readiness = &label
	}
	if r.Wine != nil {
		b.Wine = cellar.Wine{
			Name:     r.Wine.Name,
			Producer: r.Wine.Producer,
			Region:   r.Wine.Region,
			Grape:    r.Wine.Grape,
			Rating:   r.Wine.Rating,
			Vintage:  r.Wine.Vintage,
		}
		// An unknown color only matters to the reds-only filter.
		if color, err := cellar.ParseColor(r.Wine.Color); err == nil {
			b.Wine.Color = color
		}
	}
	return b, nil
}

// userToken signs a short-lived access token for userID.
func (c *Client) userToken(userID string) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": "authenticated",
		"aud":  "authenticated",
		"iat":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
	})
	return token.SignedString(c.jwtSecret)
}
