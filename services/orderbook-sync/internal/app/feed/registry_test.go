package feed

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/muhammadchandra19/exchange/pkg/errors"
	"github.com/muhammadchandra19/exchange/pkg/logger"
	messagev1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/message/v1"
	messagemock "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/message/v1/mock"
	snapshotmock "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/snapshot/v1/mock"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/orderbook"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/synchronizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registryFeed struct {
	feed   *Feed
	reader *messagemock.MockReader
	store  *snapshotmock.MockStore
}

func newRegistryFeed(ctrl *gomock.Controller, productID string) registryFeed {
	log := logger.NewNopLogger()
	syncer := synchronizer.NewSynchronizer(orderbook.NewBook(), log, synchronizer.Options{ProductID: productID})
	reader := messagemock.NewMockReader(ctrl)
	store := snapshotmock.NewMockStore(ctrl)
	return registryFeed{
		feed:   NewFeed(syncer, reader, store, nil, nil, log),
		reader: reader,
		store:  store,
	}
}

func TestRegistry_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := NewRegistry()

	eth := newRegistryFeed(ctrl, "ETH-USD")
	btc := newRegistryFeed(ctrl, "BTC-USD")
	require.NoError(t, r.Register(eth.feed))
	require.NoError(t, r.Register(btc.feed))

	err := r.Register(newRegistryFeed(ctrl, "BTC-USD").feed)
	require.Error(t, err)
	var tracer *errors.ErrorTracer
	require.ErrorAs(t, err, &tracer)
	assert.Equal(t, string(errors.FeedAlreadyRegistered), tracer.Message)

	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, r.Products())

	got, ok := r.Get("BTC-USD")
	require.True(t, ok)
	assert.Same(t, btc.feed, got)

	removed, ok := r.Remove("ETH-USD")
	require.True(t, ok)
	assert.Same(t, eth.feed, removed)
	_, ok = r.Get("ETH-USD")
	assert.False(t, ok)
	assert.Equal(t, []string{"BTC-USD"}, r.Products())
}

func TestRegistry_Ready(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := NewRegistry()
	btc := newRegistryFeed(ctrl, "BTC-USD")
	eth := newRegistryFeed(ctrl, "ETH-USD")
	require.NoError(t, r.Register(btc.feed))
	require.NoError(t, r.Register(eth.feed))

	err := r.Ready()
	require.Error(t, err)
	assert.True(t, errors.ErrorCodeEquals(err, errors.FeedNotReady))
	var details *errors.ErrorDetails
	require.ErrorAs(t, err, &details)
	assert.Equal(t, "BTC-USD", details.Field)
	status, ok := details.Object.(synchronizer.Status)
	require.True(t, ok)
	assert.Equal(t, synchronizer.StateAwaitingSnapshot, status.State)

	ctx := context.Background()
	_, err = btc.feed.Apply(ctx, messagev1.NewSnapshot("BTC-USD", orderbook.NewBook().State()))
	require.NoError(t, err)

	err = r.Ready()
	require.ErrorAs(t, err, &details)
	assert.Equal(t, "ETH-USD", details.Field)

	_, err = eth.feed.Apply(ctx, messagev1.NewSnapshot("ETH-USD", orderbook.NewBook().State()))
	require.NoError(t, err)
	assert.NoError(t, r.Ready())
}

func TestRegistry_StartAllStopsStartedFeedsOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := NewRegistry()
	btc := newRegistryFeed(ctrl, "BTC-USD")
	eth := newRegistryFeed(ctrl, "ETH-USD")
	require.NoError(t, r.Register(btc.feed))
	require.NoError(t, r.Register(eth.feed))

	btc.store.EXPECT().LoadStore(gomock.Any()).Return(nil, nil)
	btc.reader.EXPECT().ReadMessage(gomock.Any()).DoAndReturn(blockingRead).AnyTimes()
	btc.reader.EXPECT().Close().Return(nil)
	eth.store.EXPECT().LoadStore(gomock.Any()).Return(nil, stderrors.New("redis down"))

	err := r.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ETH-USD")
}

func TestRegistry_StartAllAndStopAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := NewRegistry()
	for _, product := range []string{"BTC-USD", "ETH-USD"} {
		f := newRegistryFeed(ctrl, product)
		f.store.EXPECT().LoadStore(gomock.Any()).Return(nil, nil)
		f.reader.EXPECT().ReadMessage(gomock.Any()).DoAndReturn(blockingRead).AnyTimes()
		f.reader.EXPECT().Close().Return(nil)
		require.NoError(t, r.Register(f.feed))
	}

	require.NoError(t, r.StartAll(context.Background()))
	require.NoError(t, r.StopAll(context.Background()))
}
