// Package finam implements the broker adapter over the Finam Trade API
// JSON gateway. All calls ride a short-lived JWT session minted from the
// long-lived API token; the session refreshes itself before expiry.
package finam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/pkazmin/signal-dispatcher/internal/broker"
	"github.com/pkazmin/signal-dispatcher/internal/models"
)

const defaultBaseURL = "https://api.finam.ru"

// Sessions live 15 minutes; refresh a minute early so in-flight calls
// never ride an expiring token.
const (
	sessionTTL           = 15 * time.Minute
	sessionRefreshMargin = time.Minute
)

// Wire enum values of the Trade API.
const (
	sideBuy  = "SIDE_BUY"
	sideSell = "SIDE_SELL"

	orderTypeMarket    = "ORDER_TYPE_MARKET"
	orderTypeStop      = "ORDER_TYPE_STOP"
	orderTypeStopLimit = "ORDER_TYPE_STOP_LIMIT"

	stopConditionLastUp   = "STOP_CONDITION_LAST_UP"
	stopConditionLastDown = "STOP_CONDITION_LAST_DOWN"

	validBeforeGoodTillCancel = "VALID_BEFORE_GOOD_TILL_CANCEL"

	orderStatusWatching = "ORDER_STATUS_WATCHING"
)

// APIError represents an API error with status code and response body.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// Client talks to the Finam Trade API for one account.
type Client struct {
	client    *http.Client
	baseURL   string
	token     string
	accountID string
	log       *logrus.Logger

	mu            sync.Mutex
	session       string
	sessionIssued time.Time
}

// New creates a Finam adapter with default transport settings.
func New(token, accountID string, log *logrus.Logger) *Client {
	return NewWithBaseURL(token, accountID, "", nil, log)
}

// NewWithBaseURL creates a Finam adapter against a custom gateway URL
// and HTTP client. Empty or nil arguments fall back to defaults.
func NewWithBaseURL(token, accountID, baseURL string, client *http.Client, log *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		client:    client,
		baseURL:   baseURL,
		token:     token,
		accountID: accountID,
		log:       log,
	}
}

// Name identifies the backend.
func (c *Client) Name() string {
	return "finam"
}

var _ broker.Adapter = (*Client)(nil)

// ============ Wire types (JSON transcoding of the Trade API) ============

// apiDecimal is the JSON form of google.type.Decimal.
type apiDecimal struct {
	Value string `json:"value"`
}

func (d apiDecimal) decimal() (decimal.Decimal, error) {
	if d.Value == "" {
		return decimal.Decimal{}, nil
	}
	return decimal.NewFromString(d.Value)
}

func newAPIDecimal(d decimal.Decimal) apiDecimal {
	return apiDecimal{Value: d.String()}
}

// apiMoney is the JSON form of google.type.Money. Units arrive as a
// string because the JSON mapping renders int64 that way.
type apiMoney struct {
	CurrencyCode string `json:"currency_code"`
	Units        string `json:"units"`
	Nanos        int32  `json:"nanos"`
}

func (m apiMoney) decimal() (decimal.Decimal, error) {
	units := decimal.Zero
	if m.Units != "" {
		var err error
		units, err = decimal.NewFromString(m.Units)
		if err != nil {
			return decimal.Decimal{}, err
		}
	}
	return units.Add(decimal.New(int64(m.Nanos), -9)), nil
}

type assetResponse struct {
	Board    string     `json:"board"`
	ID       string     `json:"id"`
	Ticker   string     `json:"ticker"`
	Type     string     `json:"type"`
	Name     string     `json:"name"`
	LotSize  apiDecimal `json:"lot_size"`
	Decimals int32      `json:"decimals"`
	MinStep  string     `json:"min_step"`
}

type assetParamsResponse struct {
	Symbol             string    `json:"symbol"`
	LongInitialMargin  *apiMoney `json:"long_initial_margin"`
	ShortInitialMargin *apiMoney `json:"short_initial_margin"`
}

type accountResponse struct {
	AccountID   string          `json:"account_id"`
	Status      string          `json:"status"`
	Equity      apiDecimal      `json:"equity"`
	Positions   []apiPosition   `json:"positions"`
	PortfolioMC *apiPortfolioMC `json:"portfolio_mc"`
}

type apiPosition struct {
	Symbol       string     `json:"symbol"`
	Quantity     apiDecimal `json:"quantity"`
	AveragePrice apiDecimal `json:"average_price"`
	CurrentPrice apiDecimal `json:"current_price"`
}

type apiPortfolioMC struct {
	AvailableCash apiDecimal `json:"available_cash"`
}

type lastQuoteResponse struct {
	Symbol string `json:"symbol"`
	Quote  struct {
		Last apiDecimal `json:"last"`
	} `json:"quote"`
}

type placeOrderRequest struct {
	Symbol        string      `json:"symbol"`
	Quantity      apiDecimal  `json:"quantity"`
	Side          string      `json:"side"`
	Type          string      `json:"type"`
	StopPrice     *apiDecimal `json:"stop_price,omitempty"`
	StopCondition string      `json:"stop_condition,omitempty"`
	ValidBefore   string      `json:"valid_before,omitempty"`
}

type orderState struct {
	OrderID string   `json:"order_id"`
	ExecID  string   `json:"exec_id"`
	Status  string   `json:"status"`
	Order   apiOrder `json:"order"`
}

type apiOrder struct {
	Symbol        string      `json:"symbol"`
	Quantity      apiDecimal  `json:"quantity"`
	Side          string      `json:"side"`
	Type          string      `json:"type"`
	LimitPrice    *apiDecimal `json:"limit_price"`
	StopPrice     *apiDecimal `json:"stop_price"`
	StopCondition string      `json:"stop_condition"`
}

type ordersResponse struct {
	Orders []orderState `json:"orders"`
}

type apiTrade struct {
	TradeID   string     `json:"trade_id"`
	Symbol    string     `json:"symbol"`
	Price     apiDecimal `json:"price"`
	Size      apiDecimal `json:"size"`
	Side      string     `json:"side"`
	Timestamp time.Time  `json:"timestamp"`
	OrderID   string     `json:"order_id"`
}

type tradesResponse struct {
	Trades []apiTrade `json:"trades"`
}

// ============ Transport ============

// ensureSession returns a valid JWT, minting a fresh one through
// POST /v1/sessions when the cached session is absent or near expiry.
func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != "" && time.Since(c.sessionIssued) < sessionTTL-sessionRefreshMargin {
		return c.session, nil
	}

	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"secret": c.token}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sessions", body, "", &resp); err != nil {
		return "", fmt.Errorf("opening session: %w", err)
	}
	if resp.Token == "" {
		return "", errors.New("session response carried no token")
	}

	c.session = resp.Token
	c.sessionIssued = time.Now()
	c.log.Debug("Opened new Finam API session")
	return c.session, nil
}

// call performs one authorized JSON exchange against the gateway.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	jwt, err := c.ensureSession(ctx)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, method, path, body, jwt, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, auth string, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warnf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) // 64KB cap to avoid huge payloads
		if err != nil {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> failed to read error body", method, path)}
		}
		return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> %s", method, path, msg)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// requestError wraps a transport failure into the broker error taxonomy.
func requestError(op string, err error) error {
	return broker.NewTradingError(broker.CodeBrokerRequestError, op, err)
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// ============ Adapter surface ============

// GetInstrumentInfo resolves symbol metadata and per-lot margins. An
// unknown symbol returns (nil, nil).
func (c *Client) GetInstrumentInfo(ctx context.Context, instrument models.Instrument) (*broker.InstrumentInfo, error) {
	symbol := url.PathEscape(instrument.String())
	query := "?" + url.Values{"account_id": {c.accountID}}.Encode()

	var asset assetResponse
	if err := c.call(ctx, http.MethodGet, "/v1/assets/"+symbol+query, nil, &asset); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, requestError("resolving asset "+instrument.String(), err)
	}

	var params assetParamsResponse
	if err := c.call(ctx, http.MethodGet, "/v1/assets/"+symbol+"/params"+query, nil, &params); err != nil {
		return nil, requestError("resolving asset params for "+instrument.String(), err)
	}

	lotSize, err := asset.LotSize.decimal()
	if err != nil {
		return nil, fmt.Errorf("parsing lot size: %w", err)
	}

	var minPriceStep decimal.Decimal
	if asset.MinStep != "" && !lotSize.IsZero() {
		minStep, err := decimal.NewFromString(asset.MinStep)
		if err != nil {
			return nil, fmt.Errorf("parsing min step: %w", err)
		}
		minPriceStep = minStep.Div(lotSize)
	}

	var currency string
	var marginBuy, marginSell decimal.Decimal
	if params.LongInitialMargin != nil {
		currency = params.LongInitialMargin.CurrencyCode
		if marginBuy, err = params.LongInitialMargin.decimal(); err != nil {
			return nil, fmt.Errorf("parsing long margin: %w", err)
		}
	}
	if params.ShortInitialMargin != nil {
		if marginSell, err = params.ShortInitialMargin.decimal(); err != nil {
			return nil, fmt.Errorf("parsing short margin: %w", err)
		}
	}

	return &broker.InstrumentInfo{
		Instrument:   instrument,
		Name:         asset.Name,
		Type:         assetType(asset.Type),
		Currency:     currency,
		LotSize:      lotSize,
		MinPriceStep: minPriceStep,
		MarginBuy:    marginBuy,
		MarginSell:   marginSell,
	}, nil
}

func assetType(t string) broker.InstrumentType {
	switch t {
	case "EQUITIES":
		return broker.InstrumentShare
	case "FUTURES":
		return broker.InstrumentFuture
	case "BONDS":
		return broker.InstrumentBond
	case "FUNDS":
		return broker.InstrumentETF
	case "CURRENCIES":
		return broker.InstrumentCurrency
	default:
		return broker.InstrumentType(strings.ToLower(t))
	}
}

func (c *Client) getAccount(ctx context.Context) (*accountResponse, error) {
	var account accountResponse
	path := "/v1/accounts/" + url.PathEscape(c.accountID)
	if err := c.call(ctx, http.MethodGet, path, nil, &account); err != nil {
		return nil, requestError("reading account "+c.accountID, err)
	}
	return &account, nil
}

// GetPosition reads the portfolio position in one instrument. A flat
// instrument returns (nil, nil).
func (c *Client) GetPosition(ctx context.Context, info *broker.InstrumentInfo) (*broker.Position, error) {
	account, err := c.getAccount(ctx)
	if err != nil {
		return nil, err
	}

	symbol := info.Instrument.String()
	for _, pos := range account.Positions {
		if pos.Symbol != symbol {
			continue
		}
		qty, err := pos.Quantity.decimal()
		if err != nil {
			return nil, fmt.Errorf("parsing position quantity: %w", err)
		}
		avg, err := pos.AveragePrice.decimal()
		if err != nil {
			return nil, fmt.Errorf("parsing position average price: %w", err)
		}
		return &broker.Position{
			Instrument:   info.Instrument,
			Quantity:     qty.IntPart(),
			AveragePrice: avg,
		}, nil
	}
	return nil, nil
}

// GetPositionWaitingForSettlement polls the portfolio until the position
// reaches the expected quantity with a settled average price.
func (c *Client) GetPositionWaitingForSettlement(ctx context.Context, info *broker.InstrumentInfo,
	expectedQty int64, maxAttempts int, delay time.Duration) (*broker.Position, error) {
	return broker.WaitForSettlement(ctx, func(ctx context.Context) (*broker.Position, error) {
		return c.GetPosition(ctx, info)
	}, expectedQty, maxAttempts, delay)
}

// GetMoneyBalance reports the account's available cash. The Trade API
// exposes one multi-currency figure, so the currency argument is ignored.
func (c *Client) GetMoneyBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	account, err := c.getAccount(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if account.PortfolioMC == nil {
		return decimal.Decimal{}, nil
	}
	cash, err := account.PortfolioMC.AvailableCash.decimal()
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing available cash: %w", err)
	}
	return cash, nil
}

// GetLastPrice returns the latest trade price for the instrument.
func (c *Client) GetLastPrice(ctx context.Context, info *broker.InstrumentInfo) (decimal.Decimal, error) {
	var quote lastQuoteResponse
	path := "/v1/instruments/" + url.PathEscape(info.Instrument.String()) + "/quotes/latest"
	if err := c.call(ctx, http.MethodGet, path, nil, &quote); err != nil {
		return decimal.Decimal{}, requestError("reading last quote for "+info.Instrument.String(), err)
	}

	last, err := quote.Quote.Last.decimal()
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing last price: %w", err)
	}
	if last.IsZero() {
		return decimal.Decimal{}, broker.Errorf(broker.CodeNoPriceData,
			"no last price for %s", info.Instrument)
	}
	return last, nil
}

// CalculatePositionSize sizes a new position from available cash, the
// leverage cap and the per-lot initial margin. When the API reports no
// margin figure the full lot cost stands in for it.
func (c *Client) CalculatePositionSize(ctx context.Context, info *broker.InstrumentInfo,
	leveragePercent, reserveCapital decimal.Decimal, direction models.PositionState) (int64, error) {
	var margin decimal.Decimal
	switch direction {
	case models.PositionLong:
		margin = info.MarginBuy
	case models.PositionShort:
		margin = info.MarginSell
	default:
		return 0, broker.Errorf(broker.CodeInvalidPositionDirection,
			"invalid position direction %q", direction)
	}

	available, err := c.GetMoneyBalance(ctx, info.Currency)
	if err != nil {
		return 0, err
	}
	lastPrice, err := c.GetLastPrice(ctx, info)
	if err != nil {
		return 0, err
	}

	perLotCost := lastPrice.Mul(info.LotSize)
	if !perLotCost.IsPositive() {
		return 0, broker.Errorf(broker.CodeNoPriceData,
			"cannot size %s: per-lot cost %s", info.Instrument, perLotCost)
	}
	if margin.IsZero() {
		margin = perLotCost
	}

	leverageCap := available.Add(reserveCapital).Mul(leveragePercent).Div(decimal.NewFromInt(100))

	byBalance := available.Div(margin).Floor().IntPart()
	byLeverage := leverageCap.Div(perLotCost).Floor().IntPart()
	qty := min(byBalance, byLeverage)
	if qty < 0 {
		qty = 0
	}

	c.log.Infof("Position calculation for %s: available=%s, leverage_cap=%s, per_lot_cost=%s, by_balance=%d, by_leverage=%d, final=%d",
		info.Instrument, available, leverageCap, perLotCost, byBalance, byLeverage, qty)

	return qty, nil
}

func (c *Client) placeOrder(ctx context.Context, req placeOrderRequest) (string, error) {
	var state orderState
	path := "/v1/accounts/" + url.PathEscape(c.accountID) + "/orders"
	if err := c.call(ctx, http.MethodPost, path, req, &state); err != nil {
		return "", requestError("placing order for "+req.Symbol, err)
	}
	return state.OrderID, nil
}

// PlaceMarketOrder submits a market order and returns its id.
func (c *Client) PlaceMarketOrder(ctx context.Context, info *broker.InstrumentInfo,
	direction broker.Direction, qty int64) (string, error) {
	orderID, err := c.placeOrder(ctx, placeOrderRequest{
		Symbol:   info.Instrument.String(),
		Quantity: apiDecimal{Value: strconv.FormatInt(qty, 10)},
		Side:     apiSide(direction),
		Type:     orderTypeMarket,
	})
	if err != nil {
		return "", err
	}
	c.log.Infof("Placed market %s order for %d lots of %s, order_id: %s",
		direction, qty, info.Instrument, orderID)
	return orderID, nil
}

// PlaceStopLossOrder submits a good-till-cancel stop order triggering on
// an adverse move: below the stop price for a sell, above it for a buy.
func (c *Client) PlaceStopLossOrder(ctx context.Context, info *broker.InstrumentInfo,
	direction broker.Direction, qty int64, stopPrice decimal.Decimal) (string, error) {
	condition := stopConditionLastUp
	if direction == broker.Sell {
		condition = stopConditionLastDown
	}

	price := newAPIDecimal(stopPrice)
	orderID, err := c.placeOrder(ctx, placeOrderRequest{
		Symbol:        info.Instrument.String(),
		Quantity:      apiDecimal{Value: strconv.FormatInt(qty, 10)},
		Side:          apiSide(direction),
		Type:          orderTypeStop,
		StopPrice:     &price,
		StopCondition: condition,
		ValidBefore:   validBeforeGoodTillCancel,
	})
	if err != nil {
		return "", err
	}
	c.log.Infof("Placed stop loss order for %d lots of %s at %s, order_id: %s",
		qty, info.Instrument, stopPrice, orderID)
	return orderID, nil
}

// PlaceTakeProfitOrder submits a good-till-cancel stop order triggering
// on a favourable move: above the target for a sell, below it for a buy.
func (c *Client) PlaceTakeProfitOrder(ctx context.Context, info *broker.InstrumentInfo,
	direction broker.Direction, qty int64, targetPrice decimal.Decimal) (string, error) {
	condition := stopConditionLastDown
	if direction == broker.Sell {
		condition = stopConditionLastUp
	}

	price := newAPIDecimal(targetPrice)
	orderID, err := c.placeOrder(ctx, placeOrderRequest{
		Symbol:        info.Instrument.String(),
		Quantity:      apiDecimal{Value: strconv.FormatInt(qty, 10)},
		Side:          apiSide(direction),
		Type:          orderTypeStop,
		StopPrice:     &price,
		StopCondition: condition,
		ValidBefore:   validBeforeGoodTillCancel,
	})
	if err != nil {
		return "", err
	}
	c.log.Infof("Placed take profit order for %d lots of %s at %s, order_id: %s",
		qty, info.Instrument, targetPrice, orderID)
	return orderID, nil
}

// CancelStopOrders cancels the given orders one by one.
func (c *Client) CancelStopOrders(ctx context.Context, orders []broker.StopOrder) error {
	for _, order := range orders {
		path := "/v1/accounts/" + url.PathEscape(c.accountID) + "/orders/" + url.PathEscape(order.OrderID)
		if err := c.call(ctx, http.MethodDelete, path, nil, nil); err != nil {
			return requestError("cancelling order "+order.OrderID, err)
		}
		c.log.Infof("Cancelled order %s", order.OrderID)
	}
	return nil
}

// GetCurrentStopOrders lists watching stop orders for one instrument. A
// stop is classified as a loss guard when it triggers on the adverse
// side of the market, and as a take profit otherwise.
func (c *Client) GetCurrentStopOrders(ctx context.Context, info *broker.InstrumentInfo) ([]broker.StopOrder, error) {
	var resp ordersResponse
	path := "/v1/accounts/" + url.PathEscape(c.accountID) + "/orders"
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, requestError("listing orders", err)
	}

	symbol := info.Instrument.String()
	var stops []broker.StopOrder
	for _, state := range resp.Orders {
		order := state.Order
		if state.Status != orderStatusWatching || order.Symbol != symbol {
			continue
		}
		if order.Type != orderTypeStop && order.Type != orderTypeStopLimit {
			continue
		}

		orderType := broker.OrderTakeProfit
		if (order.StopCondition == stopConditionLastDown && order.Side == sideSell) ||
			(order.StopCondition == stopConditionLastUp && order.Side == sideBuy) {
			orderType = broker.OrderStopLoss
		}

		qty, err := order.Quantity.decimal()
		if err != nil {
			return nil, fmt.Errorf("parsing stop order quantity: %w", err)
		}

		var stopPrice *decimal.Decimal
		if order.StopPrice != nil {
			price, err := order.StopPrice.decimal()
			if err != nil {
				return nil, fmt.Errorf("parsing stop order price: %w", err)
			}
			stopPrice = &price
		}

		stops = append(stops, broker.StopOrder{
			OrderID:   state.OrderID,
			Type:      orderType,
			Direction: sideDirection(order.Side),
			Quantity:  qty.IntPart(),
			StopPrice: stopPrice,
		})
	}
	return stops, nil
}

// PullEnsureOrdersResult hydrates trade legs with their fills from the
// account's trade feed, looking one day back and forward to absorb
// clock skew. The Trade API reports no per-trade commission.
func (c *Client) PullEnsureOrdersResult(ctx context.Context, info *broker.InstrumentInfo,
	orders []broker.EnsureOrder) ([]broker.EnsureOrder, error) {
	now := time.Now()
	trades, err := c.getTrades(ctx, now.Add(-24*time.Hour), now.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	for i := range orders {
		if !orders[i].Type.IsTrade() {
			continue
		}
		fill, err := tradeFill(orders[i].OrderID, trades)
		if err != nil {
			return nil, err
		}
		orders[i].Fill = fill
	}
	return orders, nil
}

func tradeFill(orderID string, trades []apiTrade) (*broker.Fill, error) {
	for _, trade := range trades {
		if trade.OrderID != orderID {
			continue
		}
		price, err := trade.Price.decimal()
		if err != nil {
			return nil, fmt.Errorf("parsing trade price: %w", err)
		}
		return &broker.Fill{Date: trade.Timestamp, Price: price}, nil
	}
	return nil, broker.Errorf(broker.CodeOrderTradeNotFound, "order %s not found in trades", orderID)
}

func (c *Client) getTrades(ctx context.Context, start, end time.Time) ([]apiTrade, error) {
	query := url.Values{}
	query.Set("interval.start_time", start.UTC().Format(time.RFC3339))
	query.Set("interval.end_time", end.UTC().Format(time.RFC3339))

	var resp tradesResponse
	path := "/v1/accounts/" + url.PathEscape(c.accountID) + "/trades?" + query.Encode()
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, requestError("listing trades", err)
	}
	return resp.Trades, nil
}

func apiSide(d broker.Direction) string {
	if d == broker.Sell {
		return sideSell
	}
	return sideBuy
}

func sideDirection(side string) broker.Direction {
	if side == sideSell {
		return broker.Sell
	}
	return broker.Buy
}
