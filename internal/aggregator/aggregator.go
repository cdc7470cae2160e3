// Package aggregator implements a client for the Jupiter-shaped DEX
// aggregator HTTP contract: quote a swap, then have the aggregator build
// the actual (unsigned) swap transaction.
package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// USDCMint is the well-known Solana USDC token mint, used as the quote's
// input mint for every buy.
const USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// Client talks to a single aggregator base URL (JUPITER_API).
type Client struct {
	http *resty.Client
}

// New builds an aggregator client with sane timeouts and 5xx retry,
// matching the teacher's resty setup for the CLOB REST client.
func New(baseURL string) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(300 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &Client{http: httpClient}
}

// QuoteRoute is a single routing candidate in a quote response.
type QuoteRoute struct {
	InAmount       string  `json:"in_amount"`
	OutAmount      string  `json:"out_amount"`
	PriceImpactPct float64 `json:"price_impact_pct"`
}

type quoteResponse struct {
	Data []QuoteRoute `json:"data"`
}

// Quote is the best route returned by the aggregator for a given swap.
type Quote struct {
	InAmount  uint64
	OutAmount uint64
}

// Price returns OutAmount/InAmount, or 0 if InAmount is zero.
func (q Quote) Price() float64 {
	if q.InAmount == 0 {
		return 0
	}
	return float64(q.OutAmount) / float64(q.InAmount)
}

// Quote requests a swap quote for USDC -> outputMint of amount (USDC minor
// units). slippageBps is always 100 per the wire contract.
func (c *Client) Quote(ctx context.Context, outputMint string, amount uint64) (*Quote, error) {
	var result quoteResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"inputMint":        USDCMint,
			"outputMint":       outputMint,
			"amount":           strconv.FormatUint(amount, 10),
			"slippageBps":      "100",
			"onlyDirectRoutes": "false",
			"platformFeeBps":   "0",
		}).
		SetResult(&result).
		Get("/quote")
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("quote: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("quote: no routes returned")
	}

	route := result.Data[0]
	in, err := strconv.ParseUint(route.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("quote: parse in_amount: %w", err)
	}
	out, err := strconv.ParseUint(route.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("quote: parse out_amount: %w", err)
	}

	return &Quote{InAmount: in, OutAmount: out}, nil
}

// SwapResponse carries the aggregator-built, base64-encoded, unsigned
// transaction and the actual amounts it was built for.
type SwapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
	InAmount        string `json:"inAmount"`
	OutAmount       string `json:"outAmount"`
}

// Swap requests a ready-to-sign swap transaction for USDC -> outputMint.
// minOutAmount is a hint the aggregator uses to build TP/SL exit legs.
func (c *Client) Swap(ctx context.Context, outputMint, userPubkey string, amount, minOutAmount uint64) (*SwapResponse, error) {
	var result SwapResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"inputMint":     USDCMint,
			"outputMint":    outputMint,
			"amount":        strconv.FormatUint(amount, 10),
			"slippageBps":   "100",
			"userPublicKey": userPubkey,
			"wrapUnwrapSOL": "true",
			"feeBps":        "0",
			"minOutAmount":  strconv.FormatUint(minOutAmount, 10),
		}).
		SetResult(&result).
		Get("/swap")
	if err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("swap: status %d: %s", resp.StatusCode(), resp.String())
	}
	if result.SwapTransaction == "" {
		return nil, fmt.Errorf("swap: empty transaction in response")
	}
	return &result, nil
}
