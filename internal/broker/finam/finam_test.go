package finam

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/pkazmin/signal-dispatcher/internal/broker"
	"github.com/pkazmin/signal-dispatcher/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testInfo() *broker.InstrumentInfo {
	return &broker.InstrumentInfo{
		Instrument: models.Instrument{Ticker: "SBER", ClassCode: "TQBR"},
		Name:       "Sberbank",
		Type:       broker.InstrumentShare,
		Currency:   "RUB",
		LotSize:    decimal.NewFromInt(10),
	}
}

// newTestClient wires a client against an httptest server that mints
// sessions itself and checks the JWT on every authorized call.
func newTestClient(t *testing.T, next http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/sessions" {
			if r.Method != http.MethodPost {
				t.Errorf("session method = %s, want POST", r.Method)
			}
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["secret"] != "api-token" {
				t.Errorf("session secret = %q, want api-token", body["secret"])
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "jwt-1"})
			return
		}
		if got := r.Header.Get("Authorization"); got != "jwt-1" {
			t.Errorf("Authorization = %q, want jwt-1", got)
		}
		next(w, r)
	}
	srv := httptest.NewServer(http.HandlerFunc(handler))
	client := NewWithBaseURL("api-token", "ACC-1", srv.URL, srv.Client(), testLogger())
	return client, srv
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Status: 429, Body: "too many requests"}
	want := "API error 429: too many requests"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestNewWithBaseURL_DefaultsAndNormalization(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"default gateway", "", "https://api.finam.ru"},
		{"custom trimmed", "https://example.test/api/", "https://example.test/api"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewWithBaseURL("tok", "acc", tt.baseURL, nil, testLogger())
			if c.baseURL != tt.want {
				t.Fatalf("baseURL = %q, want %q", c.baseURL, tt.want)
			}
		})
	}
}

func TestSessionReusedAcrossCalls(t *testing.T) {
	var sessions, quotes int
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/sessions":
			sessions++
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "jwt-1"})
		case strings.HasSuffix(r.URL.Path, "/quotes/latest"):
			quotes++
			_, _ = w.Write([]byte(`{"symbol":"SBER@TQBR","quote":{"last":{"value":"287.5"}}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}
	srv := httptest.NewServer(http.HandlerFunc(handler))
	defer srv.Close()
	client := NewWithBaseURL("api-token", "ACC-1", srv.URL, srv.Client(), testLogger())

	for range 3 {
		if _, err := client.GetLastPrice(context.Background(), testInfo()); err != nil {
			t.Fatalf("GetLastPrice error: %v", err)
		}
	}
	if sessions != 1 {
		t.Fatalf("sessions minted = %d, want 1", sessions)
	}
	if quotes != 3 {
		t.Fatalf("quote calls = %d, want 3", quotes)
	}
}

func TestGetInstrumentInfo(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("account_id"); got != "ACC-1" {
			t.Errorf("account_id = %q, want ACC-1", got)
		}
		switch r.URL.Path {
		case "/v1/assets/SBER@TQBR":
			_, _ = w.Write([]byte(`{
				"board": "TQBR",
				"ticker": "SBER",
				"type": "EQUITIES",
				"name": "Sberbank",
				"lot_size": {"value": "10"},
				"decimals": 2,
				"min_step": "100"
			}`))
		case "/v1/assets/SBER@TQBR/params":
			_, _ = w.Write([]byte(`{
				"symbol": "SBER@TQBR",
				"long_initial_margin": {"currency_code": "RUB", "units": "92", "nanos": 500000000},
				"short_initial_margin": {"currency_code": "RUB", "units": "115", "nanos": 0}
			}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	defer srv.Close()

	info, err := client.GetInstrumentInfo(context.Background(), models.Instrument{Ticker: "SBER", ClassCode: "TQBR"})
	if err != nil {
		t.Fatalf("GetInstrumentInfo error: %v", err)
	}
	if info == nil {
		t.Fatal("GetInstrumentInfo returned nil info")
	}
	if info.Name != "Sberbank" {
		t.Errorf("Name = %q, want Sberbank", info.Name)
	}
	if info.Type != broker.InstrumentShare {
		t.Errorf("Type = %q, want %q", info.Type, broker.InstrumentShare)
	}
	if info.Currency != "RUB" {
		t.Errorf("Currency = %q, want RUB", info.Currency)
	}
	if !info.LotSize.Equal(decimal.NewFromInt(10)) {
		t.Errorf("LotSize = %s, want 10", info.LotSize)
	}
	if !info.MinPriceStep.Equal(decimal.NewFromInt(10)) {
		t.Errorf("MinPriceStep = %s, want 10", info.MinPriceStep)
	}
	if !info.MarginBuy.Equal(decimal.RequireFromString("92.5")) {
		t.Errorf("MarginBuy = %s, want 92.5", info.MarginBuy)
	}
	if !info.MarginSell.Equal(decimal.NewFromInt(115)) {
		t.Errorf("MarginSell = %s, want 115", info.MarginSell)
	}
}

func TestGetInstrumentInfoUnknownSymbol(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"asset not found"}`, http.StatusNotFound)
	})
	defer srv.Close()

	info, err := client.GetInstrumentInfo(context.Background(), models.Instrument{Ticker: "NOPE", ClassCode: "TQBR"})
	if err != nil {
		t.Fatalf("GetInstrumentInfo error: %v", err)
	}
	if info != nil {
		t.Fatalf("info = %+v, want nil for unknown symbol", info)
	}
}

func TestAssetType(t *testing.T) {
	tests := []struct {
		in   string
		want broker.InstrumentType
	}{
		{"EQUITIES", broker.InstrumentShare},
		{"FUTURES", broker.InstrumentFuture},
		{"BONDS", broker.InstrumentBond},
		{"FUNDS", broker.InstrumentETF},
		{"CURRENCIES", broker.InstrumentCurrency},
		{"SWAPS", broker.InstrumentType("swaps")},
	}
	for _, tt := range tests {
		if got := assetType(tt.in); got != tt.want {
			t.Errorf("assetType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

const accountBody = `{
	"account_id": "ACC-1",
	"status": "ACCOUNT_ACTIVE",
	"equity": {"value": "12500.5"},
	"positions": [
		{"symbol": "GAZP@TQBR", "quantity": {"value": "-3"}, "average_price": {"value": "130.12"}},
		{"symbol": "SBER@TQBR", "quantity": {"value": "5"}, "average_price": {"value": "287.3"}}
	],
	"portfolio_mc": {"available_cash": {"value": "10000"}}
}`

func TestGetPosition(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts/ACC-1" {
			t.Errorf("path = %s, want /v1/accounts/ACC-1", r.URL.Path)
		}
		_, _ = w.Write([]byte(accountBody))
	})
	defer srv.Close()

	pos, err := client.GetPosition(context.Background(), testInfo())
	if err != nil {
		t.Fatalf("GetPosition error: %v", err)
	}
	if pos == nil {
		t.Fatal("GetPosition returned nil for held instrument")
	}
	if pos.Quantity != 5 {
		t.Errorf("Quantity = %d, want 5", pos.Quantity)
	}
	if !pos.AveragePrice.Equal(decimal.RequireFromString("287.3")) {
		t.Errorf("AveragePrice = %s, want 287.3", pos.AveragePrice)
	}
}

func TestGetPositionFlat(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"account_id": "ACC-1", "positions": []}`))
	})
	defer srv.Close()

	pos, err := client.GetPosition(context.Background(), testInfo())
	if err != nil {
		t.Fatalf("GetPosition error: %v", err)
	}
	if pos != nil {
		t.Fatalf("pos = %+v, want nil for flat instrument", pos)
	}
}

func TestGetMoneyBalance(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(accountBody))
	})
	defer srv.Close()

	cash, err := client.GetMoneyBalance(context.Background(), "RUB")
	if err != nil {
		t.Fatalf("GetMoneyBalance error: %v", err)
	}
	if !cash.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("cash = %s, want 10000", cash)
	}
}

func TestGetLastPriceNoData(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"SBER@TQBR","quote":{"last":{"value":"0"}}}`))
	})
	defer srv.Close()

	_, err := client.GetLastPrice(context.Background(), testInfo())
	if !broker.IsCode(err, broker.CodeNoPriceData) {
		t.Fatalf("err = %v, want code %s", err, broker.CodeNoPriceData)
	}
}

func TestCalculatePositionSize(t *testing.T) {
	tests := []struct {
		name      string
		marginBuy string
		cash      string
		leverage  string
		reserve   string
		last      string
		want      int64
	}{
		// per-lot cost 250, cap 1000: margin limits to 8, leverage to 4
		{"margin path", "125", "1000", "100", "0", "25", 4},
		// zero margin falls back to per-lot cost
		{"margin fallback", "0", "1000", "100", "0", "25", 4},
		// reserve raises the leverage cap but not the cash limit
		{"reserve counted in cap", "125", "500", "100", "500", "25", 4},
		// negative cash clamps to zero instead of going short
		{"negative cash clamps", "125", "-100", "100", "0", "25", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				switch {
				case strings.HasSuffix(r.URL.Path, "/quotes/latest"):
					_ = json.NewEncoder(w).Encode(map[string]any{
						"quote": map[string]any{"last": map[string]string{"value": tt.last}},
					})
				case r.URL.Path == "/v1/accounts/ACC-1":
					_ = json.NewEncoder(w).Encode(map[string]any{
						"portfolio_mc": map[string]any{"available_cash": map[string]string{"value": tt.cash}},
					})
				default:
					t.Errorf("unexpected path %s", r.URL.Path)
				}
			})
			defer srv.Close()

			info := testInfo()
			info.MarginBuy = decimal.RequireFromString(tt.marginBuy)

			qty, err := client.CalculatePositionSize(context.Background(), info,
				decimal.RequireFromString(tt.leverage), decimal.RequireFromString(tt.reserve), models.PositionLong)
			if err != nil {
				t.Fatalf("CalculatePositionSize error: %v", err)
			}
			if qty != tt.want {
				t.Fatalf("qty = %d, want %d", qty, tt.want)
			}
		})
	}
}

func TestCalculatePositionSizeInvalidDirection(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call to %s", r.URL.Path)
	})
	defer srv.Close()

	_, err := client.CalculatePositionSize(context.Background(), testInfo(),
		decimal.NewFromInt(50), decimal.Zero, models.PositionFlat)
	if !broker.IsCode(err, broker.CodeInvalidPositionDirection) {
		t.Fatalf("err = %v, want code %s", err, broker.CodeInvalidPositionDirection)
	}
}

func TestPlaceMarketOrder(t *testing.T) {
	var raw []byte
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts/ACC-1/orders" || r.Method != http.MethodPost {
			t.Errorf("call = %s %s, want POST /v1/accounts/ACC-1/orders", r.Method, r.URL.Path)
		}
		raw, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"order_id": "ord-77", "status": "ORDER_STATUS_NEW"}`))
	})
	defer srv.Close()

	orderID, err := client.PlaceMarketOrder(context.Background(), testInfo(), broker.Buy, 5)
	if err != nil {
		t.Fatalf("PlaceMarketOrder error: %v", err)
	}
	if orderID != "ord-77" {
		t.Fatalf("orderID = %q, want ord-77", orderID)
	}

	var req placeOrderRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("decoding captured request: %v", err)
	}
	if req.Symbol != "SBER@TQBR" || req.Side != sideBuy || req.Type != orderTypeMarket {
		t.Fatalf("request = %+v, want SBER@TQBR SIDE_BUY ORDER_TYPE_MARKET", req)
	}
	if req.Quantity.Value != "5" {
		t.Fatalf("quantity = %q, want 5", req.Quantity.Value)
	}
	// Market orders live only for the session: no expiry directive is sent.
	if strings.Contains(string(raw), "valid_before") {
		t.Fatalf("market order request carries valid_before: %s", raw)
	}
	if req.StopPrice != nil {
		t.Fatalf("market order request carries stop_price: %s", raw)
	}
}

func TestStopOrderConditions(t *testing.T) {
	tests := []struct {
		name          string
		place         func(c *Client) (string, error)
		wantSide      string
		wantCondition string
	}{
		{
			"stop loss for long exits on falling price",
			func(c *Client) (string, error) {
				return c.PlaceStopLossOrder(context.Background(), testInfo(), broker.Sell, 5, decimal.RequireFromString("280.5"))
			},
			sideSell, stopConditionLastDown,
		},
		{
			"stop loss for short exits on rising price",
			func(c *Client) (string, error) {
				return c.PlaceStopLossOrder(context.Background(), testInfo(), broker.Buy, 5, decimal.RequireFromString("295"))
			},
			sideBuy, stopConditionLastUp,
		},
		{
			"take profit for long exits on rising price",
			func(c *Client) (string, error) {
				return c.PlaceTakeProfitOrder(context.Background(), testInfo(), broker.Sell, 5, decimal.RequireFromString("300"))
			},
			sideSell, stopConditionLastUp,
		},
		{
			"take profit for short exits on falling price",
			func(c *Client) (string, error) {
				return c.PlaceTakeProfitOrder(context.Background(), testInfo(), broker.Buy, 5, decimal.RequireFromString("270"))
			},
			sideBuy, stopConditionLastDown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req placeOrderRequest
			client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&req)
				_, _ = w.Write([]byte(`{"order_id": "stop-1"}`))
			})
			defer srv.Close()

			if _, err := tt.place(client); err != nil {
				t.Fatalf("place error: %v", err)
			}
			if req.Type != orderTypeStop {
				t.Errorf("type = %q, want %q", req.Type, orderTypeStop)
			}
			if req.Side != tt.wantSide {
				t.Errorf("side = %q, want %q", req.Side, tt.wantSide)
			}
			if req.StopCondition != tt.wantCondition {
				t.Errorf("stop_condition = %q, want %q", req.StopCondition, tt.wantCondition)
			}
			if req.ValidBefore != validBeforeGoodTillCancel {
				t.Errorf("valid_before = %q, want %q", req.ValidBefore, validBeforeGoodTillCancel)
			}
			if req.StopPrice == nil {
				t.Error("stop_price missing from request")
			}
		})
	}
}

func TestGetCurrentStopOrders(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orders": [
			{"order_id": "sl-1", "status": "ORDER_STATUS_WATCHING", "order": {
				"symbol": "SBER@TQBR", "quantity": {"value": "5"}, "side": "SIDE_SELL",
				"type": "ORDER_TYPE_STOP", "stop_condition": "STOP_CONDITION_LAST_DOWN",
				"stop_price": {"value": "280.5"}}},
			{"order_id": "tp-1", "status": "ORDER_STATUS_WATCHING", "order": {
				"symbol": "SBER@TQBR", "quantity": {"value": "5"}, "side": "SIDE_SELL",
				"type": "ORDER_TYPE_STOP_LIMIT", "stop_condition": "STOP_CONDITION_LAST_UP",
				"stop_price": {"value": "300"}}},
			{"order_id": "short-sl", "status": "ORDER_STATUS_WATCHING", "order": {
				"symbol": "SBER@TQBR", "quantity": {"value": "2"}, "side": "SIDE_BUY",
				"type": "ORDER_TYPE_STOP", "stop_condition": "STOP_CONDITION_LAST_UP",
				"stop_price": {"value": "295"}}},
			{"order_id": "other-symbol", "status": "ORDER_STATUS_WATCHING", "order": {
				"symbol": "GAZP@TQBR", "quantity": {"value": "1"}, "side": "SIDE_SELL",
				"type": "ORDER_TYPE_STOP", "stop_condition": "STOP_CONDITION_LAST_DOWN"}},
			{"order_id": "done", "status": "ORDER_STATUS_FILLED", "order": {
				"symbol": "SBER@TQBR", "quantity": {"value": "5"}, "side": "SIDE_SELL",
				"type": "ORDER_TYPE_STOP", "stop_condition": "STOP_CONDITION_LAST_DOWN"}},
			{"order_id": "plain", "status": "ORDER_STATUS_WATCHING", "order": {
				"symbol": "SBER@TQBR", "quantity": {"value": "5"}, "side": "SIDE_SELL",
				"type": "ORDER_TYPE_MARKET"}}
		]}`))
	})
	defer srv.Close()

	stops, err := client.GetCurrentStopOrders(context.Background(), testInfo())
	if err != nil {
		t.Fatalf("GetCurrentStopOrders error: %v", err)
	}
	if len(stops) != 3 {
		t.Fatalf("len(stops) = %d, want 3: %+v", len(stops), stops)
	}

	byID := map[string]broker.StopOrder{}
	for _, s := range stops {
		byID[s.OrderID] = s
	}

	sl := byID["sl-1"]
	if sl.Type != broker.OrderStopLoss || sl.Direction != broker.Sell || sl.Quantity != 5 {
		t.Errorf("sl-1 = %+v, want stop loss sell 5", sl)
	}
	if sl.StopPrice == nil || !sl.StopPrice.Equal(decimal.RequireFromString("280.5")) {
		t.Errorf("sl-1 stop price = %v, want 280.5", sl.StopPrice)
	}
	if tp := byID["tp-1"]; tp.Type != broker.OrderTakeProfit {
		t.Errorf("tp-1 type = %q, want %q", tp.Type, broker.OrderTakeProfit)
	}
	if shortSL := byID["short-sl"]; shortSL.Type != broker.OrderStopLoss || shortSL.Direction != broker.Buy {
		t.Errorf("short-sl = %+v, want stop loss buy", shortSL)
	}
}

func TestCancelStopOrders(t *testing.T) {
	var deleted []string
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		deleted = append(deleted, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	orders := []broker.StopOrder{{OrderID: "sl-1"}, {OrderID: "tp-1"}}
	if err := client.CancelStopOrders(context.Background(), orders); err != nil {
		t.Fatalf("CancelStopOrders error: %v", err)
	}
	want := []string{"/v1/accounts/ACC-1/orders/sl-1", "/v1/accounts/ACC-1/orders/tp-1"}
	if len(deleted) != len(want) || deleted[0] != want[0] || deleted[1] != want[1] {
		t.Fatalf("deleted = %v, want %v", deleted, want)
	}
}

func TestPullEnsureOrdersResult(t *testing.T) {
	fillTime := time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC)
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts/ACC-1/trades" {
			t.Errorf("path = %s, want /v1/accounts/ACC-1/trades", r.URL.Path)
		}
		if r.URL.Query().Get("interval.start_time") == "" || r.URL.Query().Get("interval.end_time") == "" {
			t.Errorf("trade interval missing from query: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(tradesResponse{Trades: []apiTrade{
			{TradeID: "t-1", Symbol: "SBER@TQBR", Price: apiDecimal{Value: "287.9"},
				Size: apiDecimal{Value: "5"}, Side: sideBuy, Timestamp: fillTime, OrderID: "ord-77"},
		}})
	})
	defer srv.Close()

	orders := []broker.EnsureOrder{
		{Type: broker.OrderBuy, Quantity: 5, OrderID: "ord-77", Action: broker.ActionOpenLong},
		{Type: broker.OrderStopLoss, Quantity: 5, OrderID: "sl-1"},
	}
	got, err := client.PullEnsureOrdersResult(context.Background(), testInfo(), orders)
	if err != nil {
		t.Fatalf("PullEnsureOrdersResult error: %v", err)
	}

	if got[0].Fill == nil {
		t.Fatal("trade leg has no fill")
	}
	if !got[0].Fill.Price.Equal(decimal.RequireFromString("287.9")) {
		t.Errorf("fill price = %s, want 287.9", got[0].Fill.Price)
	}
	if !got[0].Fill.Date.Equal(fillTime) {
		t.Errorf("fill date = %s, want %s", got[0].Fill.Date, fillTime)
	}
	if got[0].Fill.Commission != nil {
		t.Errorf("commission = %v, want nil", got[0].Fill.Commission)
	}
	if got[1].Fill != nil {
		t.Errorf("stop leg fill = %+v, want nil", got[1].Fill)
	}
}

func TestPullEnsureOrdersResultMissingTrade(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"trades": []}`))
	})
	defer srv.Close()

	orders := []broker.EnsureOrder{{Type: broker.OrderSell, Quantity: 5, OrderID: "gone"}}
	_, err := client.PullEnsureOrdersResult(context.Background(), testInfo(), orders)
	if !broker.IsCode(err, broker.CodeOrderTradeNotFound) {
		t.Fatalf("err = %v, want code %s", err, broker.CodeOrderTradeNotFound)
	}
}

func TestRequestErrorsCarryBrokerCode(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"internal"}`, http.StatusInternalServerError)
	})
	defer srv.Close()

	_, err := client.GetPosition(context.Background(), testInfo())
	if !broker.IsCode(err, broker.CodeBrokerRequestError) {
		t.Fatalf("err = %v, want code %s", err, broker.CodeBrokerRequestError)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want wrapped *APIError", err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", apiErr.Status)
	}
}
