package sundaews

import (
	"context"
	"sort"
	"sync"
	"time"

	sundaecli "github.com/SundaeSwap-finance/shoutlog/sundae-cli"
	"github.com/SundaeSwap-finance/shoutlog/sundae-ws/connectiondao"
	"github.com/SundaeSwap-finance/shoutlog/sundae-ws/delivery"
)

type memoryRegistry struct {
	mu      sync.Mutex
	conns   map[string]connectiondao.Connection
	removed []string

	registerErr error
	removeErr   error
	listErr     error
	failAfter   int // with listErr, fail after yielding this many connections
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{conns: map[string]connectiondao.Connection{}}
}

func (m *memoryRegistry) Register(_ context.Context, connectionID, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registerErr != nil {
		return &connectiondao.StorageError{Op: "register", ConnectionID: connectionID, Err: m.registerErr}
	}
	m.conns[connectionID] = connectiondao.NewConnection(connectionID, endpoint, time.Now(), 0)
	return nil
}

func (m *memoryRegistry) Remove(_ context.Context, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return &connectiondao.StorageError{Op: "remove", ConnectionID: connectionID, Err: m.removeErr}
	}
	delete(m.conns, connectionID)
	m.removed = append(m.removed, connectionID)
	return nil
}

func (m *memoryRegistry) ListAll(ctx context.Context, fn func(conn connectiondao.Connection) error) error {
	m.mu.Lock()
	var conns []connectiondao.Connection
	for _, conn := range m.conns {
		conns = append(conns, conn)
	}
	listErr, failAfter := m.listErr, m.failAfter
	m.mu.Unlock()

	sort.Slice(conns, func(i, j int) bool { return conns[i].ConnectionID < conns[j].ConnectionID })
	for i, conn := range conns {
		if listErr != nil && i >= failAfter {
			return &connectiondao.StorageError{Op: "list", Err: listErr}
		}
		if err := fn(conn); err != nil {
			return err
		}
	}
	if listErr != nil {
		return &connectiondao.StorageError{Op: "list", Err: listErr}
	}
	return nil
}

func (m *memoryRegistry) ListExpired(ctx context.Context, fn func(conn connectiondao.Connection) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return &connectiondao.StorageError{Op: "list expired", Err: m.listErr}
	}
	var ids []string
	for id, conn := range m.conns {
		if conn.Expired(time.Now()) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := fn(m.conns[id]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryRegistry) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.conns)), nil
}

func (m *memoryRegistry) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []string{}
	for id := range m.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type sendCall struct {
	Endpoint string
	Payload  string
}

type fakeDeliverer struct {
	mu       sync.Mutex
	outcomes map[string]delivery.Outcome // by endpoint, default Delivered
	calls    []sendCall
	block    map[string]chan struct{} // endpoints whose Send waits on the channel, ignoring ctx
	delay    time.Duration

	inFlight    int
	maxInFlight int
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{
		outcomes: map[string]delivery.Outcome{},
		block:    map[string]chan struct{}{},
	}
}

func (f *fakeDeliverer) Send(_ context.Context, endpoint string, payload []byte) (delivery.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sendCall{Endpoint: endpoint, Payload: string(payload)})
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	outcome, ok := f.outcomes[endpoint]
	if !ok {
		outcome = delivery.Delivered
	}
	wait := f.block[endpoint]
	delay := f.delay
	f.mu.Unlock()

	if wait != nil {
		<-wait
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if outcome == delivery.Delivered {
		return outcome, nil
	}
	return outcome, &testError{outcome.String()}
}

func (f *fakeDeliverer) sent() []sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := append([]sendCall(nil), f.calls...)
	sort.Slice(calls, func(i, j int) bool { return calls[i].Endpoint < calls[j].Endpoint })
	return calls
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

type recordedMetric struct {
	Name  sundaecli.MetricName
	Value float64
	Dims  map[sundaecli.DimensionName]string
}

type fakeMetrics struct {
	mu      sync.Mutex
	timings []sundaecli.MetricName
	gauges  []recordedMetric
}

func (f *fakeMetrics) Timing(_ context.Context, name sundaecli.MetricName, _ time.Time, _ ...map[sundaecli.DimensionName]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timings = append(f.timings, name)
}

func (f *fakeMetrics) Gauge(_ context.Context, name sundaecli.MetricName, value float64, dimensions ...map[sundaecli.DimensionName]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := recordedMetric{Name: name, Value: value, Dims: map[sundaecli.DimensionName]string{}}
	for _, d := range dimensions {
		for k, v := range d {
			m.Dims[k] = v
		}
	}
	f.gauges = append(f.gauges, m)
}

func (f *fakeMetrics) gauge(name sundaecli.MetricName, outcome string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.gauges {
		if g.Name == name && g.Dims[sundaecli.OutcomeDimension] == outcome {
			return g.Value, true
		}
	}
	return 0, false
}
