package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"meetups/src/types"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ PaymentGateway = (*fakeGateway)(nil)

type fakeGateway struct {
	mu       sync.Mutex
	statuses map[string]types.InvoiceStatus
	checked  []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: map[string]types.InvoiceStatus{}}
}

func (g *fakeGateway) setStatus(ref string, status types.InvoiceStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[ref] = status
}

func (g *fakeGateway) CreateInvoice(ctx context.Context, amount decimal.Decimal, memo string, expiry time.Duration) (*Invoice, error) {
	panic("not used in poller tests")
}

func (g *fakeGateway) CheckStatus(ctx context.Context, ref string) (types.InvoiceStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checked = append(g.checked, ref)
	if status, ok := g.statuses[ref]; ok {
		return status, nil
	}
	return types.INVOICE_PENDING, nil
}

func TestPendingInvoices_AddAndRemove(t *testing.T) {
	rd, mock := redismock.NewClientMock()
	pending := NewPendingInvoices(rd)
	orderID := uuid.New()

	mock.ExpectSetEx(invoiceKey(orderID), "ref-1", 10*time.Minute).SetVal("OK")
	mock.ExpectSAdd(pendingSetKey, orderID.String()).SetVal(1)
	require.NoError(t, pending.Add(context.Background(), orderID, "ref-1", 10*time.Minute))

	mock.ExpectSRem(pendingSetKey, orderID.String()).SetVal(1)
	mock.ExpectDel(invoiceKey(orderID)).SetVal(1)
	pending.Remove(context.Background(), orderID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingInvoices_EachPrunesLapsedEntries(t *testing.T) {
	rd, mock := redismock.NewClientMock()
	pending := NewPendingInvoices(rd)
	liveID := uuid.New()
	staleID := uuid.New()

	mock.ExpectSMembers(pendingSetKey).SetVal([]string{liveID.String(), staleID.String(), "not-a-uuid"})
	mock.ExpectGet(invoiceKey(liveID)).SetVal("ref-live")
	// The stale order's invoice key expired with its hold.
	mock.ExpectGet(invoiceKey(staleID)).RedisNil()
	mock.ExpectSRem(pendingSetKey, staleID.String()).SetVal(1)
	mock.ExpectSRem(pendingSetKey, "not-a-uuid").SetVal(1)

	live, err := pending.Each(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]string{liveID: "ref-live"}, live)
}

func pollerFixture(t *testing.T) (*memStore, *testClock, *ConfirmationService, *fakeGateway) {
	t.Helper()
	store := newMemStore(paidEvent(1, nil))
	clk := newTestClock(testStart.Add(-time.Hour))
	confirmer, _ := newConfirmer(store, clk, nil)
	return store, clk, confirmer, newFakeGateway()
}

func TestPoll_ConfirmsPaidInvoices(t *testing.T) {
	store, clk, confirmer, gateway := pollerFixture(t)
	order := heldOrder(t, store, clk, 1)

	rd, mock := redismock.NewClientMock()
	pending := NewPendingInvoices(rd)
	poller := NewPoller(gateway, pending, confirmer)

	ref := "ref-" + order.ID.String()
	gateway.setStatus(ref, types.INVOICE_PAID)

	mock.ExpectSMembers(pendingSetKey).SetVal([]string{order.ID.String()})
	mock.ExpectGet(invoiceKey(order.ID)).SetVal(ref)
	mock.ExpectSRem(pendingSetKey, order.ID.String()).SetVal(1)
	mock.ExpectDel(invoiceKey(order.ID)).SetVal(1)

	poller.Poll(context.Background())

	confirmed := store.get(order.ID)
	assert.Equal(t, types.ORDER_CONFIRMED, confirmed.Status)
	require.NotNil(t, confirmed.PaymentReference)
	assert.Equal(t, ref, *confirmed.PaymentReference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoll_DropsExpiredInvoices(t *testing.T) {
	store, clk, confirmer, gateway := pollerFixture(t)
	order := heldOrder(t, store, clk, 1)

	rd, mock := redismock.NewClientMock()
	pending := NewPendingInvoices(rd)
	poller := NewPoller(gateway, pending, confirmer)

	ref := "ref-" + order.ID.String()
	gateway.setStatus(ref, types.INVOICE_EXPIRED)

	mock.ExpectSMembers(pendingSetKey).SetVal([]string{order.ID.String()})
	mock.ExpectGet(invoiceKey(order.ID)).SetVal(ref)
	mock.ExpectSRem(pendingSetKey, order.ID.String()).SetVal(1)
	mock.ExpectDel(invoiceKey(order.ID)).SetVal(1)

	poller.Poll(context.Background())

	// The hold itself is left for the reaper.
	assert.Equal(t, types.ORDER_HELD, store.get(order.ID).Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoll_PendingInvoicesStayIndexed(t *testing.T) {
	store, clk, confirmer, gateway := pollerFixture(t)
	order := heldOrder(t, store, clk, 1)

	rd, mock := redismock.NewClientMock()
	pending := NewPendingInvoices(rd)
	poller := NewPoller(gateway, pending, confirmer)

	ref := "ref-" + order.ID.String()
	// No status registered, the fake reports PENDING.

	mock.ExpectSMembers(pendingSetKey).SetVal([]string{order.ID.String()})
	mock.ExpectGet(invoiceKey(order.ID)).SetVal(ref)

	poller.Poll(context.Background())

	assert.Equal(t, types.ORDER_HELD, store.get(order.ID).Status)
	assert.Equal(t, []string{ref}, gateway.checked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoll_AlreadyResolvedOrderIsDropped(t *testing.T) {
	store, clk, confirmer, gateway := pollerFixture(t)
	order := heldOrder(t, store, clk, 1)

	ref := "ref-" + order.ID.String()
	gateway.setStatus(ref, types.INVOICE_PAID)

	// Someone cancelled the hold between polls.
	require.NoError(t, store.CancelOrder(context.Background(), order.ID, "cancelled by participant"))

	rd, mock := redismock.NewClientMock()
	pending := NewPendingInvoices(rd)
	poller := NewPoller(gateway, pending, confirmer)

	mock.ExpectSMembers(pendingSetKey).SetVal([]string{order.ID.String()})
	mock.ExpectGet(invoiceKey(order.ID)).SetVal(ref)
	mock.ExpectSRem(pendingSetKey, order.ID.String()).SetVal(1)
	mock.ExpectDel(invoiceKey(order.ID)).SetVal(1)

	poller.Poll(context.Background())

	assert.Equal(t, types.ORDER_CANCELED, store.get(order.ID).Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
