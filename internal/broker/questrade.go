package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultLoginBase = "https://login.questrade.com"

// QuestradeClient talks to the Questrade REST API. Each operation refreshes
// the access token first: refresh tokens are single-flight on the Questrade
// side and the practice/live split is decided by the token, not by us.
type QuestradeClient struct {
	LoginBase     string
	AccountNumber string
	RefreshToken  string
	Http          *http.Client
}

// NewQuestradeClient builds a client with the stock 20s request timeout.
func NewQuestradeClient(loginBase, accountNumber, refreshToken string) *QuestradeClient {
	if loginBase == "" {
		loginBase = defaultLoginBase
	}
	return &QuestradeClient{
		LoginBase:     strings.TrimSuffix(loginBase, "/"),
		AccountNumber: accountNumber,
		RefreshToken:  refreshToken,
		Http:          &http.Client{Timeout: 20 * time.Second},
	}
}

// session is one refreshed access token plus the account API server it is
// valid against.
type session struct {
	AccessToken string `json:"access_token"`
	APIServer   string `json:"api_server"`
}

func (c *QuestradeClient) refresh(ctx context.Context) (session, error) {
	if c.RefreshToken == "" {
		return session{}, fmt.Errorf("missing refresh token")
	}
	endpoint := fmt.Sprintf("%s/oauth2/token?grant_type=refresh_token&refresh_token=%s",
		c.LoginBase, url.QueryEscape(c.RefreshToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return session{}, err
	}
	resp, err := c.Http.Do(req)
	if err != nil {
		return session{}, fmt.Errorf("refresh token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return session{}, fmt.Errorf("refresh token: status=%d body=%s", resp.StatusCode, body)
	}

	var s session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return session{}, fmt.Errorf("decode token response: %w", err)
	}
	s.APIServer = strings.TrimSuffix(s.APIServer, "/")
	return s, nil
}

func (c *QuestradeClient) getJSON(ctx context.Context, s session, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.APIServer+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)

	resp, err := c.Http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

type symbolSearchResponse struct {
	Symbols []struct {
		Symbol   string `json:"symbol"`
		SymbolID int64  `json:"symbolId"`
	} `json:"symbols"`
}

func (c *QuestradeClient) symbolID(ctx context.Context, s session, symbol string) (int64, error) {
	var out symbolSearchResponse
	status, err := c.getJSON(ctx, s, "/v1/symbols/search?prefix="+url.QueryEscape(symbol), &out)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("symbol lookup failed: %s status=%d", symbol, status)
	}
	if len(out.Symbols) == 0 {
		return 0, fmt.Errorf("no symbol results for %s", symbol)
	}
	for _, match := range out.Symbols {
		if match.Symbol == symbol {
			return match.SymbolID, nil
		}
	}
	return out.Symbols[0].SymbolID, nil
}

type quotesResponse struct {
	Quotes []struct {
		LastTradePrice float64 `json:"lastTradePrice"`
	} `json:"quotes"`
}

// LastPrice fetches the last trade price for symbol. Quotes are requested by
// ticker first; some Questrade servers only accept numeric symbol IDs, so a
// non-200 falls back to an ID lookup.
func (c *QuestradeClient) LastPrice(ctx context.Context, symbol string) (float64, error) {
	s, err := c.refresh(ctx)
	if err != nil {
		return 0, err
	}

	var out quotesResponse
	status, err := c.getJSON(ctx, s, "/v1/markets/quotes/"+url.PathEscape(symbol), &out)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		id, err := c.symbolID(ctx, s, symbol)
		if err != nil {
			return 0, err
		}
		status, err = c.getJSON(ctx, s, fmt.Sprintf("/v1/markets/quotes/%d", id), &out)
		if err != nil {
			return 0, err
		}
		if status != http.StatusOK {
			return 0, fmt.Errorf("quote failed: %s status=%d", symbol, status)
		}
	}
	if len(out.Quotes) == 0 {
		return 0, fmt.Errorf("no quote data for %s", symbol)
	}
	price := out.Quotes[0].LastTradePrice
	if price <= 0 {
		return 0, fmt.Errorf("empty last trade price for %s", symbol)
	}
	return price, nil
}

type orderLeg struct {
	SymbolID int64  `json:"symbolId"`
	LegSide  string `json:"legSide"`
	Quantity int    `json:"quantity"`
}

type orderRequest struct {
	AccountNumber  string     `json:"accountNumber"`
	OrderType      string     `json:"orderType"`
	TimeInForce    string     `json:"timeInForce"`
	PrimaryRoute   string     `json:"primaryRoute"`
	SecondaryRoute string     `json:"secondaryRoute"`
	IsAllOrNone    bool       `json:"isAllOrNone"`
	IsAnonymous    bool       `json:"isAnonymous"`
	OrderLegs      []orderLeg `json:"orderLegs"`
}

type orderResponse struct {
	Orders []struct {
		ID int64 `json:"id"`
	} `json:"orders"`
}

// PlaceMarketOrder submits a single-leg Day market order. Any status >= 300
// is treated as a rejection.
func (c *QuestradeClient) PlaceMarketOrder(ctx context.Context, symbol string, side Side, shares int) (OrderResult, error) {
	if c.AccountNumber == "" {
		return OrderResult{}, fmt.Errorf("missing account number")
	}

	s, err := c.refresh(ctx)
	if err != nil {
		return OrderResult{}, err
	}
	id, err := c.symbolID(ctx, s, symbol)
	if err != nil {
		return OrderResult{}, err
	}

	legSide := "Buy"
	if side == Sell {
		legSide = "Sell"
	}
	body := orderRequest{
		AccountNumber:  c.AccountNumber,
		OrderType:      "Market",
		TimeInForce:    "Day",
		PrimaryRoute:   "AUTO",
		SecondaryRoute: "AUTO",
		OrderLegs:      []orderLeg{{SymbolID: id, LegSide: legSide, Quantity: shares}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return OrderResult{}, err
	}

	endpoint := fmt.Sprintf("%s/v1/accounts/%s/orders", s.APIServer, c.AccountNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return OrderResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Http.Do(req)
	if err != nil {
		return OrderResult{}, fmt.Errorf("place order: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return OrderResult{}, fmt.Errorf("read order response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return OrderResult{}, fmt.Errorf("order rejected: status=%d body=%s", resp.StatusCode, raw)
	}

	result := OrderResult{Raw: raw}
	var parsed orderResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Orders) > 0 {
		result.OrderID = fmt.Sprintf("%d", parsed.Orders[0].ID)
	}
	return result, nil
}
