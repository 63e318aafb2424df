package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/cart"
	"ms-storefront/internal/catalog"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/storage"
)

type MockEventFetcher struct {
	mock.Mock
}

func (m *MockEventFetcher) GetEventsByIDs(ctx context.Context, ids []int) ([]models.Event, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func event1(tickets ...models.Ticket) models.Event {
	return models.Event{ID: 1, Name: "Event1", Status: models.EventStatusActive, Tickets: tickets}
}

var (
	vip     = models.Ticket{ID: 10, Name: "VIP", Price: 1000, TicketsAvailable: 5}
	regular = models.Ticket{ID: 11, Name: "Regular", Price: 500, TicketsAvailable: 20}
)

func storeWith(t *testing.T, raw string) *cart.Store {
	t.Helper()
	backend := storage.NewMemory()
	key := "ticketCart:" + t.Name()
	if raw != "" {
		require.NoError(t, backend.Write(context.Background(), key, []byte(raw)))
	}
	return cart.NewStore(backend, key, logger.Discard())
}

func TestReconcile_EmptyCartMakesNoFetch(t *testing.T) {
	fetcher := new(MockEventFetcher)
	r := New(storeWith(t, ""), fetcher, logger.Discard())

	res, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0.0, res.Total)
	fetcher.AssertNotCalled(t, "GetEventsByIDs", mock.Anything, mock.Anything)
}

func TestReconcile_MalformedCartMakesNoFetch(t *testing.T) {
	fetcher := new(MockEventFetcher)
	r := New(storeWith(t, `{"1":`), fetcher, logger.Discard())

	res, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	fetcher.AssertNotCalled(t, "GetEventsByIDs", mock.Anything, mock.Anything)
}

func TestReconcile_PricesItemsInCartOrder(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockEventFetcher)
	fetcher.On("GetEventsByIDs", ctx, []int{1}).Return([]models.Event{event1(regular, vip)}, nil).Once()

	r := New(storeWith(t, `{"1":{"10":2,"11":1}}`), fetcher, logger.Discard())
	res, err := r.Reconcile(ctx)
	require.NoError(t, err)

	assert.Equal(t, []models.LineItem{
		{TicketID: 10, EventID: 1, Name: "Event1 - VIP", UnitPrice: 1000, Quantity: 2, Available: 5},
		{TicketID: 11, EventID: 1, Name: "Event1 - Regular", UnitPrice: 500, Quantity: 1, Available: 20},
	}, res.Items)
	assert.Equal(t, 2500.0, res.Total)
	fetcher.AssertExpectations(t)
}

func TestReconcile_SkipsRemovedTicket(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockEventFetcher)
	fetcher.On("GetEventsByIDs", ctx, []int{1}).Return([]models.Event{event1(vip)}, nil)

	r := New(storeWith(t, `{"1":{"10":2,"11":1}}`), fetcher, logger.Discard())
	res, err := r.Reconcile(ctx)
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, 10, res.Items[0].TicketID)
	assert.Equal(t, 2000.0, res.Total)
}

func TestReconcile_SkipsMissingEventAndBatchesIDs(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockEventFetcher)
	fetcher.On("GetEventsByIDs", ctx, []int{3, 1}).Return([]models.Event{event1(vip)}, nil).Once()

	r := New(storeWith(t, `{"3":{"30":4},"1":{"10":1}}`), fetcher, logger.Discard())
	res, err := r.Reconcile(ctx)
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "Event1 - VIP", res.Items[0].Name)
	assert.Equal(t, 1000.0, res.Total)
	fetcher.AssertNumberOfCalls(t, "GetEventsByIDs", 1)
}

func TestReconcile_UsesFetchedPriceAndKeepsQuantityAboveStock(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockEventFetcher)
	soldDown := models.Ticket{ID: 10, Name: "VIP", Price: 1200, TicketsAvailable: 1}
	fetcher.On("GetEventsByIDs", ctx, []int{1}).Return([]models.Event{event1(soldDown)}, nil)

	r := New(storeWith(t, `{"1":{"10":3}}`), fetcher, logger.Discard())
	res, err := r.Reconcile(ctx)
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, 3, res.Items[0].Quantity)
	assert.True(t, res.Items[0].OverStock())
	assert.Equal(t, 3600.0, res.Total)
}

func TestReconcile_FetchFailureIsSurfacedAndCartKept(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockEventFetcher)
	fetcher.On("GetEventsByIDs", ctx, []int{1}).Return(nil, &catalog.APIError{StatusCode: 503})

	store := storeWith(t, `{"1":{"10":2}}`)
	r := New(store, fetcher, logger.Discard())

	res, err := r.Reconcile(ctx)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.True(t, catalog.IsTransport(err))

	qty, err := store.Get(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, qty)
}

type failingLoader struct{}

func (failingLoader) Load(context.Context) (*cart.Cart, error) {
	return nil, errors.New("redis down")
}

func TestReconcile_LoadFailureIsReturned(t *testing.T) {
	fetcher := new(MockEventFetcher)
	r := New(failingLoader{}, fetcher, logger.Discard())

	_, err := r.Reconcile(context.Background())
	assert.EqualError(t, err, "redis down")
	fetcher.AssertNotCalled(t, "GetEventsByIDs", mock.Anything, mock.Anything)
}
