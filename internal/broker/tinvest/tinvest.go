// Package tinvest implements the broker adapter over the T-Invest gRPC
// API. Instruments are addressed by FIGI.
package tinvest

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	investapi "github.com/tinkoff/invest-api-go-sdk"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pkazmin/signal-dispatcher/internal/broker"
	"github.com/pkazmin/signal-dispatcher/internal/models"
)

const (
	productionHost = "invest-public-api.tinkoff.ru:443"
	sandboxHost    = "sandbox-invest-public-api.tinkoff.ru:443"

	appName = "pkazmin.signal-dispatcher"
)

// Client talks to the T-Invest API for one account.
type Client struct {
	accountID string
	token     string
	conn      *grpc.ClientConn
	log       *logrus.Logger

	instruments investapi.InstrumentsServiceClient
	operations  investapi.OperationsServiceClient
	marketData  investapi.MarketDataServiceClient
	orders      investapi.OrdersServiceClient
	stopOrders  investapi.StopOrdersServiceClient
}

// New connects a T-Invest adapter to the production or sandbox gateway.
func New(token, accountID string, sandbox bool, log *logrus.Logger) (*Client, error) {
	host := productionHost
	if sandbox {
		host = sandboxHost
	}

	conn, err := grpc.NewClient(host, grpc.WithTransportCredentials(
		credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12}),
	))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", host, err)
	}

	return &Client{
		accountID:   accountID,
		token:       token,
		conn:        conn,
		log:         log,
		instruments: investapi.NewInstrumentsServiceClient(conn),
		operations:  investapi.NewOperationsServiceClient(conn),
		marketData:  investapi.NewMarketDataServiceClient(conn),
		orders:      investapi.NewOrdersServiceClient(conn),
		stopOrders:  investapi.NewStopOrdersServiceClient(conn),
	}, nil
}

// Close tears down the API connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Name identifies the backend.
func (c *Client) Name() string {
	return "tinvest"
}

var _ broker.Adapter = (*Client)(nil)

func (c *Client) withAuth(ctx context.Context) context.Context {
	md := metadata.New(map[string]string{
		"Authorization": "Bearer " + c.token,
		"x-app-name":    appName,
	})
	return metadata.NewOutgoingContext(ctx, md)
}

// requestError wraps an RPC failure into the broker error taxonomy.
func requestError(op string, err error) error {
	return broker.NewTradingError(broker.CodeBrokerRequestError, op, err)
}

// GetInstrumentInfo resolves FIGI metadata through the type-specific
// instrument lookups. An unknown FIGI returns (nil, nil). Futures carry
// their initial margins and a lot size scaled by the basic asset size,
// so notional arithmetic downstream works in currency units.
func (c *Client) GetInstrumentInfo(ctx context.Context, instrument models.Instrument) (*broker.InstrumentInfo, error) {
	ctx = c.withAuth(ctx)
	figi := instrument.String()

	req := &investapi.InstrumentRequest{
		IdType: investapi.InstrumentIdType_INSTRUMENT_ID_TYPE_FIGI,
		Id:     figi,
	}
	resp, err := c.instruments.GetInstrumentBy(ctx, req)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, requestError("resolving instrument "+figi, err)
	}

	var (
		instrumentType broker.InstrumentType
		name, currency string
		lot            int64
		minPriceStep   decimal.Decimal
		basicAssetSize decimal.Decimal
	)
	switch kind := resp.GetInstrument().GetInstrumentType(); kind {
	case "":
		return nil, nil
	case "share":
		r, err := c.instruments.ShareBy(ctx, req)
		if err != nil {
			return nil, requestError("resolving share "+figi, err)
		}
		s := r.GetInstrument()
		instrumentType = broker.InstrumentShare
		name, currency = s.GetName(), s.GetCurrency()
		lot = int64(s.GetLot())
		minPriceStep = quotationToDecimal(s.GetMinPriceIncrement())
	case "futures":
		r, err := c.instruments.FutureBy(ctx, req)
		if err != nil {
			return nil, requestError("resolving future "+figi, err)
		}
		f := r.GetInstrument()
		instrumentType = broker.InstrumentFuture
		name, currency = f.GetName(), f.GetCurrency()
		lot = int64(f.GetLot())
		minPriceStep = quotationToDecimal(f.GetMinPriceIncrement())
		basicAssetSize = quotationToDecimal(f.GetBasicAssetSize())
	case "bond":
		r, err := c.instruments.BondBy(ctx, req)
		if err != nil {
			return nil, requestError("resolving bond "+figi, err)
		}
		b := r.GetInstrument()
		instrumentType = broker.InstrumentBond
		name, currency = b.GetName(), b.GetCurrency()
		lot = int64(b.GetLot())
		minPriceStep = quotationToDecimal(b.GetMinPriceIncrement())
	case "etf":
		r, err := c.instruments.EtfBy(ctx, req)
		if err != nil {
			return nil, requestError("resolving etf "+figi, err)
		}
		e := r.GetInstrument()
		instrumentType = broker.InstrumentETF
		name, currency = e.GetName(), e.GetCurrency()
		lot = int64(e.GetLot())
		minPriceStep = quotationToDecimal(e.GetMinPriceIncrement())
	case "currency":
		r, err := c.instruments.CurrencyBy(ctx, req)
		if err != nil {
			return nil, requestError("resolving currency "+figi, err)
		}
		cur := r.GetInstrument()
		instrumentType = broker.InstrumentCurrency
		name, currency = cur.GetName(), cur.GetCurrency()
		lot = int64(cur.GetLot())
		minPriceStep = quotationToDecimal(cur.GetMinPriceIncrement())
	default:
		return nil, broker.Errorf(broker.CodeUnsupportedInstrumentType,
			"unsupported instrument type %q for %s", kind, figi)
	}

	lotSize := decimal.NewFromInt(lot)
	if basicAssetSize.IsPositive() {
		lotSize = lotSize.Mul(basicAssetSize)
	}

	var marginBuy, marginSell decimal.Decimal
	if instrumentType == broker.InstrumentFuture {
		margins, err := c.instruments.GetFuturesMargin(ctx, &investapi.GetFuturesMarginRequest{Figi: figi})
		if err != nil {
			return nil, requestError("resolving futures margin for "+figi, err)
		}
		marginBuy = moneyToDecimal(margins.GetInitialMarginOnBuy())
		marginSell = moneyToDecimal(margins.GetInitialMarginOnSell())
	}

	return &broker.InstrumentInfo{
		Instrument:   instrument,
		Name:         name,
		Type:         instrumentType,
		Currency:     currency,
		LotSize:      lotSize,
		MinPriceStep: minPriceStep,
		MarginBuy:    marginBuy,
		MarginSell:   marginSell,
	}, nil
}

// GetPosition reads the portfolio position in one instrument. A flat
// instrument returns (nil, nil).
func (c *Client) GetPosition(ctx context.Context, info *broker.InstrumentInfo) (*broker.Position, error) {
	ctx = c.withAuth(ctx)
	portfolio, err := c.operations.GetPortfolio(ctx, &investapi.PortfolioRequest{AccountId: c.accountID})
	if err != nil {
		return nil, requestError("reading portfolio", err)
	}

	figi := info.Instrument.String()
	for _, position := range portfolio.GetPositions() {
		if position.GetFigi() != figi {
			continue
		}
		return &broker.Position{
			Instrument:   info.Instrument,
			Quantity:     quotationToDecimal(position.GetQuantity()).IntPart(),
			AveragePrice: moneyToDecimal(position.GetAveragePositionPrice()),
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

// GetMoneyBalance reports the free money balance in one currency.
func (c *Client) GetMoneyBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	ctx = c.withAuth(ctx)
	positions, err := c.operations.GetPositions(ctx, &investapi.PositionsRequest{AccountId: c.accountID})
	if err != nil {
		return decimal.Decimal{}, requestError("reading money positions", err)
	}

	for _, money := range positions.GetMoney() {
		if money.GetCurrency() == currency {
			return moneyToDecimal(money), nil
		}
	}
	return decimal.Decimal{}, nil
}

// GetLastPrice returns the latest trade price for the instrument.
func (c *Client) GetLastPrice(ctx context.Context, info *broker.InstrumentInfo) (decimal.Decimal, error) {
	ctx = c.withAuth(ctx)
	figi := info.Instrument.String()
	resp, err := c.marketData.GetLastPrices(ctx, &investapi.GetLastPricesRequest{Figi: []string{figi}})
	if err != nil {
		return decimal.Decimal{}, requestError("reading last price for "+figi, err)
	}

	prices := resp.GetLastPrices()
	if len(prices) == 0 {
		return decimal.Decimal{}, broker.Errorf(broker.CodeNoPriceData,
			"no price data available for %s", figi)
	}
	return quotationToDecimal(prices[0].GetPrice()), nil
}

// CalculatePositionSize sizes a new position from the free balance, the
// leverage cap and the per-lot initial margin. Only futures report a
// margin here; other instruments fall back to the full lot cost.
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

// PlaceMarketOrder submits a market order keyed by a fresh client order
// id and returns the exchange order id.
func (c *Client) PlaceMarketOrder(ctx context.Context, info *broker.InstrumentInfo,
	direction broker.Direction, qty int64) (string, error) {
	ctx = c.withAuth(ctx)
	figi := info.Instrument.String()

	resp, err := c.orders.PostOrder(ctx, &investapi.PostOrderRequest{
		Figi:      figi,
		Quantity:  qty,
		Direction: orderDirection(direction),
		AccountId: c.accountID,
		OrderType: investapi.OrderType_ORDER_TYPE_MARKET,
		OrderId:   uuid.NewString(),
	})
	if err != nil {
		return "", requestError("placing market order for "+figi, err)
	}

	c.log.Infof("Placed market %s order for %d lots of %s, order_id: %s",
		direction, qty, info.Instrument, resp.GetOrderId())
	return resp.GetOrderId(), nil
}

// PlaceStopLossOrder submits a good-till-cancel stop loss.
func (c *Client) PlaceStopLossOrder(ctx context.Context, info *broker.InstrumentInfo,
	direction broker.Direction, qty int64, stopPrice decimal.Decimal) (string, error) {
	orderID, err := c.placeStopOrder(ctx, info, direction, qty, stopPrice,
		investapi.StopOrderType_STOP_ORDER_TYPE_STOP_LOSS)
	if err != nil {
		return "", err
	}
	c.log.Infof("Placed stop loss order for %d lots of %s at %s, order_id: %s",
		qty, info.Instrument, stopPrice, orderID)
	return orderID, nil
}

// PlaceTakeProfitOrder submits a good-till-cancel take profit.
func (c *Client) PlaceTakeProfitOrder(ctx context.Context, info *broker.InstrumentInfo,
	direction broker.Direction, qty int64, targetPrice decimal.Decimal) (string, error) {
	orderID, err := c.placeStopOrder(ctx, info, direction, qty, targetPrice,
		investapi.StopOrderType_STOP_ORDER_TYPE_TAKE_PROFIT)
	if err != nil {
		return "", err
	}
	c.log.Infof("Placed take profit order for %d lots of %s at %s, order_id: %s",
		qty, info.Instrument, targetPrice, orderID)
	return orderID, nil
}

func (c *Client) placeStopOrder(ctx context.Context, info *broker.InstrumentInfo,
	direction broker.Direction, qty int64, price decimal.Decimal,
	orderType investapi.StopOrderType) (string, error) {
	ctx = c.withAuth(ctx)
	figi := info.Instrument.String()

	resp, err := c.stopOrders.PostStopOrder(ctx, &investapi.PostStopOrderRequest{
		Figi:           figi,
		Quantity:       qty,
		StopPrice:      quotationFromDecimal(price),
		Direction:      stopOrderDirection(direction),
		AccountId:      c.accountID,
		ExpirationType: investapi.StopOrderExpirationType_STOP_ORDER_EXPIRATION_TYPE_GOOD_TILL_CANCEL,
		StopOrderType:  orderType,
	})
	if err != nil {
		return "", requestError("placing stop order for "+figi, err)
	}
	return resp.GetStopOrderId(), nil
}

// CancelStopOrders cancels the given stop orders one by one.
func (c *Client) CancelStopOrders(ctx context.Context, orders []broker.StopOrder) error {
	ctx = c.withAuth(ctx)
	for _, order := range orders {
		_, err := c.stopOrders.CancelStopOrder(ctx, &investapi.CancelStopOrderRequest{
			AccountId:   c.accountID,
			StopOrderId: order.OrderID,
		})
		if err != nil {
			return requestError("cancelling stop order "+order.OrderID, err)
		}
		c.log.Infof("Cancelled stop order %s", order.OrderID)
	}
	return nil
}

// GetCurrentStopOrders lists active stop orders for one instrument.
func (c *Client) GetCurrentStopOrders(ctx context.Context, info *broker.InstrumentInfo) ([]broker.StopOrder, error) {
	ctx = c.withAuth(ctx)
	resp, err := c.stopOrders.GetStopOrders(ctx, &investapi.GetStopOrdersRequest{AccountId: c.accountID})
	if err != nil {
		return nil, requestError("listing stop orders", err)
	}

	figi := info.Instrument.String()
	var stops []broker.StopOrder
	for _, order := range resp.GetStopOrders() {
		if order.GetFigi() != figi {
			continue
		}
		stops = append(stops, stopOrderFromAPI(order))
	}
	return stops, nil
}

func stopOrderFromAPI(order *investapi.StopOrder) broker.StopOrder {
	orderType := broker.OrderTakeProfit
	if order.GetOrderType() == investapi.StopOrderType_STOP_ORDER_TYPE_STOP_LOSS {
		orderType = broker.OrderStopLoss
	}
	direction := broker.Buy
	if order.GetDirection() == investapi.StopOrderDirection_STOP_ORDER_DIRECTION_SELL {
		direction = broker.Sell
	}

	var stopPrice *decimal.Decimal
	if order.GetStopPrice() != nil {
		price := moneyToDecimal(order.GetStopPrice())
		stopPrice = &price
	}

	return broker.StopOrder{
		OrderID:   order.GetStopOrderId(),
		Type:      orderType,
		Direction: direction,
		Quantity:  order.GetLotsRequested(),
		StopPrice: stopPrice,
	}
}

// PullEnsureOrdersResult hydrates trade legs with their fills from the
// per-order execution state, including the executed commission.
func (c *Client) PullEnsureOrdersResult(ctx context.Context, info *broker.InstrumentInfo,
	orders []broker.EnsureOrder) ([]broker.EnsureOrder, error) {
	ctx = c.withAuth(ctx)
	for i := range orders {
		if !orders[i].Type.IsTrade() {
			continue
		}

		state, err := c.orders.GetOrderState(ctx, &investapi.GetOrderStateRequest{
			AccountId: c.accountID,
			OrderId:   orders[i].OrderID,
		})
		if err != nil {
			return nil, requestError("reading order state for "+orders[i].OrderID, err)
		}

		fill := &broker.Fill{
			Date:  state.GetOrderDate().AsTime(),
			Price: moneyToDecimal(state.GetAveragePositionPrice()),
		}
		if state.GetExecutedCommission() != nil {
			commission := moneyToDecimal(state.GetExecutedCommission())
			fill.Commission = &commission
		}
		orders[i].Fill = fill
	}
	return orders, nil
}

func orderDirection(d broker.Direction) investapi.OrderDirection {
	if d == broker.Sell {
		return investapi.OrderDirection_ORDER_DIRECTION_SELL
	}
	return investapi.OrderDirection_ORDER_DIRECTION_BUY
}

func stopOrderDirection(d broker.Direction) investapi.StopOrderDirection {
	if d == broker.Sell {
		return investapi.StopOrderDirection_STOP_ORDER_DIRECTION_SELL
	}
	return investapi.StopOrderDirection_STOP_ORDER_DIRECTION_BUY
}

func quotationToDecimal(q *investapi.Quotation) decimal.Decimal {
	if q == nil {
		return decimal.Decimal{}
	}
	return decimal.NewFromInt(q.GetUnits()).Add(decimal.New(int64(q.GetNano()), -9))
}

func moneyToDecimal(m *investapi.MoneyValue) decimal.Decimal {
	if m == nil {
		return decimal.Decimal{}
	}
	return decimal.NewFromInt(m.GetUnits()).Add(decimal.New(int64(m.GetNano()), -9))
}

func quotationFromDecimal(d decimal.Decimal) *investapi.Quotation {
	units := d.IntPart()
	nano := d.Sub(decimal.NewFromInt(units)).Mul(decimal.New(1, 9)).IntPart()
	return &investapi.Quotation{Units: units, Nano: int32(nano)}
}
