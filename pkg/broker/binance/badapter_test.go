package binance

import (
	"testing"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/AndreyZakrevsky/btt/pkg/broker"
)

func TestNewAdapterRequiresConfig(t *testing.T) {
	if _, err := NewAdapter(nil, nil, nil); err == nil {
		t.Error("Expected an error for a nil AppConfig")
	}
}

func TestOrderFromResponse(t *testing.T) {
	resp := &binance.CreateOrderResponse{
		Symbol:                   "XRPUSDT",
		OrderID:                  12345,
		TransactTime:             1717243200000,
		OrigQuantity:             "20",
		ExecutedQuantity:         "20",
		CummulativeQuoteQuantity: "2004",
		Status:                   binance.OrderStatusTypeFilled,
		Side:                     binance.SideTypeSell,
		Fills: []*binance.Fill{
			{Price: "100.1", Quantity: "10", Commission: "0.01", CommissionAsset: "USDT"},
			{Price: "100.3", Quantity: "10", Commission: "0.02", CommissionAsset: "USDT"},
		},
	}

	order, err := orderFromResponse(resp)
	if err != nil {
		t.Fatalf("Expected conversion to succeed, got %v", err)
	}

	if order.ID != "12345" {
		t.Errorf("Expected order id 12345, got %s", order.ID)
	}
	if order.Side != broker.SideSell || order.Status != broker.StatusClosed {
		t.Errorf("Expected a closed sell, got %s %s", order.Side, order.Status)
	}
	if !order.Closed() {
		t.Error("Expected Closed() for a filled order")
	}
	// 2004 quote over 20 base = 100.2 weighted across both fills.
	if !order.AvgFillPrice.Equal(decimal.RequireFromString("100.2")) {
		t.Errorf("Expected avg fill price 100.2, got %s", order.AvgFillPrice)
	}
	if !order.ExecutedVol.Equal(decimal.RequireFromString("20")) {
		t.Errorf("Expected executed volume 20, got %s", order.ExecutedVol)
	}
	if !order.Fee.Equal(decimal.RequireFromString("0.03")) || order.FeeAsset != "USDT" {
		t.Errorf("Expected summed fee 0.03 USDT, got %s %s", order.Fee, order.FeeAsset)
	}
	if order.TimePlaced.UnixMilli() != 1717243200000 {
		t.Errorf("Expected the transact time preserved, got %s", order.TimePlaced)
	}
}

func TestOrderFromResponseUnfilled(t *testing.T) {
	resp := &binance.CreateOrderResponse{
		Symbol:                   "XRPUSDT",
		OrderID:                  1,
		OrigQuantity:             "20",
		ExecutedQuantity:         "0",
		CummulativeQuoteQuantity: "0",
		Status:                   binance.OrderStatusTypeNew,
		Side:                     binance.SideTypeBuy,
	}

	order, err := orderFromResponse(resp)
	if err != nil {
		t.Fatalf("Expected conversion to succeed, got %v", err)
	}
	if order.Closed() {
		t.Error("Expected an unfilled order to not be closed")
	}
	if !order.AvgFillPrice.IsZero() {
		t.Errorf("Expected zero avg price with nothing executed, got %s", order.AvgFillPrice)
	}
}

func TestOrderFromResponseBadPayload(t *testing.T) {
	resp := &binance.CreateOrderResponse{
		OrigQuantity:             "20",
		ExecutedQuantity:         "not-a-number",
		CummulativeQuoteQuantity: "0",
	}
	if _, err := orderFromResponse(resp); err == nil {
		t.Error("Expected an error for an unparsable quantity")
	}
}

func TestMapOrderStatus(t *testing.T) {
	cases := map[binance.OrderStatusType]string{
		binance.OrderStatusTypeFilled:          broker.StatusClosed,
		binance.OrderStatusTypeNew:             broker.StatusOpen,
		binance.OrderStatusTypePartiallyFilled: broker.StatusOpen,
		binance.OrderStatusTypeCanceled:        broker.StatusCanceled,
		binance.OrderStatusTypeRejected:        broker.StatusCanceled,
		binance.OrderStatusTypeExpired:         broker.StatusCanceled,
		binance.OrderStatusType("SOMETHING"):   broker.StatusOpen,
	}
	for in, want := range cases {
		if got := mapOrderStatus(in); got != want {
			t.Errorf("Expected %s to map to %s, got %s", in, want, got)
		}
	}
}

func TestMapOrderSide(t *testing.T) {
	if got := mapOrderSide(binance.SideTypeBuy); got != broker.SideBuy {
		t.Errorf("Expected buy, got %s", got)
	}
	if got := mapOrderSide(binance.SideTypeSell); got != broker.SideSell {
		t.Errorf("Expected sell, got %s", got)
	}
}
