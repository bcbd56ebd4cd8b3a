package link

import (
	"sync"
)

// fakeMessage is a message handed to the fake broker.
type fakeMessage struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// fakeTransport is an in-memory broker for one client.
//
// Handler invocations that a real broker would make asynchronously are
// queued and run by flush, so tests control interleaving exactly.
type fakeTransport struct {
	mu sync.Mutex

	handlers     Handlers
	will         Will
	connected    bool
	connectErr   error
	publishErr   error
	subscribeErr error

	connectCalls     int
	disconnectCalls  int
	subscribeCalls   []string
	unsubscribeCalls []string
	published        []fakeMessage

	subscribed map[string]bool
	retained   map[string][]byte
	pending    []func()
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		subscribed: make(map[string]bool),
		retained:   make(map[string][]byte),
	}
}

func (f *fakeTransport) Connect(will Will, handlers Handlers) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.will = will
	f.handlers = handlers
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectCalls++
	f.subscribed = make(map[string]bool)
	if !f.connected {
		return
	}
	f.connected = false
	h := f.handlers
	f.pending = append(f.pending, func() { h.OnConnectionLost(nil) })
}

func (f *fakeTransport) Subscribe(topic string, qos byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCalls = append(f.subscribeCalls, topic)
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.subscribed[topic] = true
	if payload, ok := f.retained[topic]; ok {
		h := f.handlers
		f.pending = append(f.pending, func() { h.OnMessage(topic, payload) })
	}
	return nil
}

func (f *fakeTransport) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribeCalls = append(f.unsubscribeCalls, topic)
	delete(f.subscribed, topic)
	return nil
}

func (f *fakeTransport) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, fakeMessage{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	if retained {
		f.retained[topic] = payload
	}
	return nil
}

// acceptConnect completes the pending connect as a broker would.
func (f *fakeTransport) acceptConnect() {
	f.mu.Lock()
	f.connected = true
	h := f.handlers
	f.mu.Unlock()
	h.OnConnect()
}

// rejectConnect fails the pending connect.
func (f *fakeTransport) rejectConnect(err error) {
	f.mu.Lock()
	h := f.handlers
	f.mu.Unlock()
	h.OnConnectFailure(err)
}

// deliver publishes a message from the device side.
func (f *fakeTransport) deliver(topic, payload string) {
	f.mu.Lock()
	h := f.handlers
	subscribed := f.subscribed[topic]
	f.mu.Unlock()
	if subscribed {
		h.OnMessage(topic, []byte(payload))
	}
}

// drop kills the session ungracefully and lets the broker publish the will.
func (f *fakeTransport) drop(err error) {
	f.mu.Lock()
	f.connected = false
	f.subscribed = make(map[string]bool)
	if f.will.Topic != "" && f.will.Retained {
		f.retained[f.will.Topic] = f.will.Payload
	}
	h := f.handlers
	f.mu.Unlock()
	h.OnConnectionLost(err)
}

// flush runs queued broker callbacks in order.
func (f *fakeTransport) flush() {
	for {
		f.mu.Lock()
		if len(f.pending) == 0 {
			f.mu.Unlock()
			return
		}
		fn := f.pending[0]
		f.pending = f.pending[1:]
		f.mu.Unlock()
		fn()
	}
}

func (f *fakeTransport) publishedMessages() []fakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeMessage(nil), f.published...)
}

func (f *fakeTransport) retainedPayload(topic string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.retained[topic])
}

func (f *fakeTransport) counts() (connects, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls, f.disconnectCalls
}
