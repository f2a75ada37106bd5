package gamma

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetMarketsOptions control a single /markets page fetch.
type GetMarketsOptions struct {
	Limit     int
	Offset    int
	Closed    *bool // nil = both open and closed
	Ascending bool  // sort by createdAt ascending (oldest first)
}

// GetMarkets fetches one page of markets.
func (c *Client) GetMarkets(ctx context.Context, opts GetMarketsOptions) ([]GammaMarket, error) {
	query := url.Values{}

	limit := opts.Limit
	if limit <= 0 || limit > c.pageSize {
		limit = c.pageSize
	}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(opts.Offset))
	query.Set("order", "createdAt")
	query.Set("ascending", strconv.FormatBool(opts.Ascending))
	if opts.Closed != nil {
		query.Set("closed", strconv.FormatBool(*opts.Closed))
	}

	var markets []GammaMarket
	if err := c.get(ctx, "/markets", query, &markets); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}

	return markets, nil
}

// GetAllMarkets pages through /markets until a short page or maxMarkets.
// maxMarkets <= 0 means no bound beyond the API itself.
func (c *Client) GetAllMarkets(ctx context.Context, closed *bool, maxMarkets int) ([]GammaMarket, error) {
	var all []GammaMarket
	offset := 0

	for {
		page, err := c.GetMarkets(ctx, GetMarketsOptions{
			Offset: offset,
			Closed: closed,
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		offset += len(page)

		if len(page) < c.pageSize {
			break
		}
		if maxMarkets > 0 && len(all) >= maxMarkets {
			all = all[:maxMarkets]
			break
		}
	}

	c.logger.Debug("fetched markets", "count", len(all), "closed", closed)
	return all, nil
}

// GetMarketByID fetches a single market. Returns nil when not found.
func (c *Client) GetMarketByID(ctx context.Context, marketID string) (*GammaMarket, error) {
	query := url.Values{}
	query.Set("id", marketID)

	// The API answers an id query with a one-element list.
	var markets []GammaMarket
	if err := c.get(ctx, "/markets", query, &markets); err != nil {
		return nil, fmt.Errorf("get market %s: %w", marketID, err)
	}

	if len(markets) == 0 {
		return nil, nil
	}
	return &markets[0], nil
}
