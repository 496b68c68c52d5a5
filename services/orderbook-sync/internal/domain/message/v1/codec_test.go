package messagev1

import (
	"testing"

	orderbookv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/orderbook/v1"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	testCases := []struct {
		name     string
		payload  string
		wantErr  error
		assertFn func(t *testing.T, msg Message)
	}{
		{
			name:    "snapshot",
			payload: `{"type":"snapshot","productId":"BTC-USD","sequence":10,"bids":[{"price":"100","totalSize":"1","orders":[{"id":"o1","side":"buy","price":"100","size":"1"}]}],"asks":[]}`,
			assertFn: func(t *testing.T, msg Message) {
				snap, ok := msg.(*Snapshot)
				require.True(t, ok)
				assert.Equal(t, int64(10), snap.Sequence)
				assert.Equal(t, "BTC-USD", ProductID(msg))
				state := snap.State()
				require.Len(t, state.Bids, 1)
				assert.Equal(t, "o1", state.Bids[0].Orders[0].ID)
			},
		},
		{
			name:    "level",
			payload: `{"type":"level","sequence":3,"side":"sell","price":"101.5","size":"0","count":0}`,
			assertFn: func(t *testing.T, msg Message) {
				lvl := msg.(*Level)
				assert.Equal(t, orderbookv1.SideSell, lvl.Side)
				assert.True(t, lvl.Size.IsZero())
				assert.Equal(t, int64(3), lvl.Seq())
			},
		},
		{
			name:    "new order",
			payload: `{"type":"newOrder","sequence":4,"orderId":"abc","side":"buy","price":"99.99","size":"0.5"}`,
			assertFn: func(t *testing.T, msg Message) {
				o := msg.(*NewOrder).Order()
				assert.Equal(t, "abc", o.ID)
				assert.True(t, decimal.RequireFromString("99.99").Equal(o.Price))
			},
		},
		{
			name:    "changed order by amount",
			payload: `{"type":"changedOrder","sequence":5,"orderId":"abc","side":"buy","price":"99.99","changedAmount":"-0.1"}`,
			assertFn: func(t *testing.T, msg Message) {
				c := msg.(*ChangedOrder)
				assert.Nil(t, c.NewSize)
				require.NotNil(t, c.ChangedAmount)
				assert.Equal(t, "-0.1", c.ChangedAmount.String())
			},
		},
		{
			name:    "order done without side",
			payload: `{"type":"orderDone","sequence":6,"orderId":"abc","reason":"filled"}`,
			assertFn: func(t *testing.T, msg Message) {
				assert.Equal(t, KindOrderDone, msg.Kind())
			},
		},
		{
			name:    "ticker",
			payload: `{"type":"ticker","productId":"BTC-USD","price":"100","bid":"99","ask":"101","volume":"1000"}`,
			assertFn: func(t *testing.T, msg Message) {
				assert.Equal(t, "101", msg.(*Ticker).Ask.String())
			},
		},
		{
			name:    "trade",
			payload: `{"type":"trade","tradeId":"t1","side":"sell","price":"100","size":"2"}`,
			assertFn: func(t *testing.T, msg Message) {
				assert.Equal(t, "t1", msg.(*Trade).TradeID)
			},
		},
		{
			name:    "unknown type",
			payload: `{"type":"heartbeat"}`,
			wantErr: ErrUnknownMessage,
		},
		{
			name:    "not json",
			payload: `{`,
			wantErr: ErrMalformedMessage,
		},
		{
			name:    "bad decimal",
			payload: `{"type":"newOrder","sequence":1,"orderId":"a","side":"buy","price":"abc","size":"1"}`,
			wantErr: ErrMalformedMessage,
		},
		{
			name:    "new order missing id",
			payload: `{"type":"newOrder","sequence":1,"side":"buy","price":"1","size":"1"}`,
			wantErr: ErrMalformedMessage,
		},
		{
			name:    "level with bad side",
			payload: `{"type":"level","sequence":1,"side":"both","price":"1","size":"1"}`,
			wantErr: ErrMalformedMessage,
		},
		{
			name:    "changed order negative new size",
			payload: `{"type":"changedOrder","sequence":1,"orderId":"a","side":"buy","price":"1","newSize":"-1"}`,
			wantErr: ErrMalformedMessage,
		},
		{
			name:    "ticker without price",
			payload: `{"type":"ticker","productId":"BTC-USD","bid":"99","ask":"101","volume":"1000"}`,
			wantErr: ErrMalformedMessage,
		},
		{
			name:    "ticker without bid and ask",
			payload: `{"type":"ticker","productId":"BTC-USD","price":"100","volume":"1000"}`,
			wantErr: ErrMalformedMessage,
		},
		{
			name:    "ticker with negative volume",
			payload: `{"type":"ticker","productId":"BTC-USD","price":"100","bid":"99","ask":"101","volume":"-1"}`,
			wantErr: ErrMalformedMessage,
		},
		{
			name:    "trade with zero size",
			payload: `{"type":"trade","side":"buy","price":"1","size":"0"}`,
			wantErr: ErrMalformedMessage,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Decode([]byte(tc.payload))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, msg)
				return
			}
			require.NoError(t, err)
			tc.assertFn(t, msg)
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	newSize := decimal.RequireFromString("2.5")
	msg := &ChangedOrder{
		Header:   Header{ProductID: "ETH-USD"},
		Sequence: 12,
		OrderID:  "o-1",
		Side:     orderbookv1.SideSell,
		Price:    decimal.RequireFromString("2000"),
		NewSize:  &newSize,
	}

	raw, err := Encode(msg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"changedOrder"`)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	changed := decoded.(*ChangedOrder)
	assert.Equal(t, "o-1", changed.OrderID)
	assert.True(t, newSize.Equal(*changed.NewSize))
	assert.Equal(t, "ETH-USD", ProductID(decoded))
}
