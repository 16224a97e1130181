// Package usda looks up nutrient values in the USDA FoodData Central search API.
package usda

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/observability"
)

// FoodData Central nutrient numbers.
const (
	nutrientEnergy        = 1008
	nutrientEnergyAtwater = 2047
	nutrientProtein       = 1003
	nutrientCarbs         = 1005
	nutrientFat           = 1004
)

// Client queries FoodData Central.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a Client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// LookupFood returns the per-100 g macros of the best match for query.
func (c *Client) LookupFood(ctx context.Context, query string) (food *domain.FoodNutrients, err error) {
	start := time.Now()
	defer func() {
		if err == domain.ErrFoodNotFound {
			observability.ObserveVendorCall("usda", "search", start, nil)
			return
		}
		observability.ObserveVendorCall("usda", "search", start, err)
	}()

	params := url.Values{}
	params.Set("query", query)
	params.Set("pageSize", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/foods/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, fmt.Errorf("usda search failed with status %d: %s", resp.StatusCode, msg)
	}

	first := gjson.GetBytes(body, "foods.0")
	if !first.Exists() {
		return nil, domain.ErrFoodNotFound
	}

	energy := nutrient(first, nutrientEnergy)
	if energy == 0 {
		energy = nutrient(first, nutrientEnergyAtwater)
	}
	return &domain.FoodNutrients{
		Query:       query,
		Description: first.Get("description").String(),
		FdcID:       first.Get("fdcId").Int(),
		Per100g: domain.Macros{
			Calories: energy,
			ProteinG: nutrient(first, nutrientProtein),
			CarbsG:   nutrient(first, nutrientCarbs),
			FatG:     nutrient(first, nutrientFat),
		},
	}, nil
}

func nutrient(food gjson.Result, id int) float64 {
	return food.Get(fmt.Sprintf("foodNutrients.#(nutrientId==%d).value", id)).Float()
}
