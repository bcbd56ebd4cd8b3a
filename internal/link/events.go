package link

// event is anything that can drive a transition. Host commands, transport
// callbacks and watchdog expiries are all funnelled through Controller.dispatch.
type event interface {
	isEvent()
}

type (
	connectRequested    struct{}
	disconnectRequested struct{}
	forceConfirmation   struct{}

	publishRequested struct {
		payload []byte
	}

	brokerConnected struct{}

	brokerConnectFailed struct {
		err error
	}

	connectionLost struct {
		err error // nil for a deliberate teardown
	}

	messageArrived struct {
		topic   string
		payload []byte
	}

	subscribeFailed struct {
		topic string
		err   error
	}

	watchdogFired struct {
		gen uint64
	}

	// fromSession carries a transport callback stamped with the session
	// that produced it.
	fromSession struct {
		session string
		ev      event
	}
)

func (connectRequested) isEvent()    {}
func (disconnectRequested) isEvent() {}
func (forceConfirmation) isEvent()   {}
func (publishRequested) isEvent()    {}
func (brokerConnected) isEvent()     {}
func (brokerConnectFailed) isEvent() {}
func (connectionLost) isEvent()      {}
func (messageArrived) isEvent()      {}
func (subscribeFailed) isEvent()     {}
func (watchdogFired) isEvent()       {}
func (fromSession) isEvent()         {}

// transportEvents adapts transport callbacks to controller events so the
// Handlers methods stay off the Controller's public surface. Each Connect
// gets its own value; events from a superseded session are dropped.
type transportEvents struct {
	c       *Controller
	session string
}

func (t transportEvents) dispatch(ev event) {
	t.c.dispatch(fromSession{session: t.session, ev: ev}) //nolint:errcheck // transport events never return errors
}

func (t transportEvents) OnConnect() {
	t.dispatch(brokerConnected{})
}

func (t transportEvents) OnConnectFailure(err error) {
	t.dispatch(brokerConnectFailed{err: err})
}

func (t transportEvents) OnConnectionLost(err error) {
	t.dispatch(connectionLost{err: err})
}

func (t transportEvents) OnMessage(topic string, payload []byte) {
	t.dispatch(messageArrived{topic: topic, payload: payload})
}

func (t transportEvents) OnSubscribeFailure(topic string, err error) {
	t.dispatch(subscribeFailed{topic: topic, err: err})
}
