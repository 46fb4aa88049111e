package events

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/ihslink/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type BusTestSuite struct {
	suite.Suite
	bus *Bus
}

func (s *BusTestSuite) SetupTest() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	bus, err := NewBus(logger, Options{QueueSize: 64, SubscriberBuffer: 16})
	s.Require().NoError(err)
	s.bus = bus
}

func (s *BusTestSuite) TearDownTest() {
	s.bus.Close()
}

func (s *BusTestSuite) receive(sub *Subscription) Event {
	select {
	case e, ok := <-sub.C():
		s.Require().True(ok, "subscription channel MUST be open")
		return e
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for event")
		return Event{}
	}
}

func (s *BusTestSuite) TestDeliversInPublishOrder() {
	// GOAL: Verify a subscriber sees events in the order they were published
	//
	// TEST SCENARIO: Publish three events → subscriber receives them in order with payloads intact

	sub := s.bus.Subscribe()
	defer sub.Unsubscribe()

	s.bus.Publish(NewConnectionChanged(true))
	s.bus.Publish(NewSensorsListenedToChanged(sensor.Gyro | sensor.Gps))
	s.bus.Publish(NewConnectionFailed(errors.New("boom")))

	e1 := s.receive(sub)
	s.Equal(ConnectionChanged, e1.Kind)
	s.True(e1.Connected)

	e2 := s.receive(sub)
	s.Equal(SensorsListenedToChanged, e2.Kind)
	s.Equal(sensor.Gyro|sensor.Gps, e2.Sensors)

	e3 := s.receive(sub)
	s.Equal(ConnectionFailed, e3.Kind)
	s.EqualError(e3.Err, "boom")
}

func (s *BusTestSuite) TestKindFilter() {
	// GOAL: Verify kind filters restrict delivery
	//
	// TEST SCENARIO: Subscribe to GeoFixChanged only → publish mixed events → only the fix arrives

	sub := s.bus.Subscribe(GeoFixChanged)
	defer sub.Unsubscribe()

	s.bus.Publish(NewCompassChanged(90))
	s.bus.Publish(NewGeoFixChanged(sensor.GeoFix{Latitude: 86, Valid: true}))

	e := s.receive(sub)
	s.Equal(GeoFixChanged, e.Kind, "filtered subscriber MUST only receive requested kinds")
	s.InDelta(86.0, e.GeoFix.Latitude, 1e-9)
}

func (s *BusTestSuite) TestFanOutToAllSubscribers() {
	// GOAL: Verify every subscriber receives its own copy
	//
	// TEST SCENARIO: Two subscribers → one publish → both receive

	a := s.bus.Subscribe()
	b := s.bus.Subscribe()

	s.bus.Publish(NewCompassChanged(12.5))

	s.InDelta(12.5, s.receive(a).CompassHeading, 1e-9)
	s.InDelta(12.5, s.receive(b).CompassHeading, 1e-9)

	a.Unsubscribe()
	a.Unsubscribe()
	_, ok := <-a.C()
	s.False(ok, "unsubscribed channel MUST be closed")
}

func (s *BusTestSuite) TestSlowSubscriberDropsOldest() {
	// GOAL: Verify a subscriber that does not read loses the oldest events, not the newest
	//
	// TEST SCENARIO: Publish more events than the subscriber buffer → read all → last event present, drop metric set

	sub := s.bus.Subscribe()
	defer sub.Unsubscribe()

	const total = 40
	for i := 0; i < total; i++ {
		s.bus.Publish(NewCompassChanged(float64(i)))
	}

	s.Eventually(func() bool {
		return s.bus.GetMetrics().Dispatched == total
	}, 2*time.Second, 5*time.Millisecond, "dispatcher MUST process every published event")

	var last float64 = -1
	count := 0
	for {
		e, ok := sub.ring.TryPop()
		if !ok {
			break
		}
		last = e.CompassHeading
		count++
	}
	s.Equal(16, count, "subscriber buffer MUST hold at most its capacity")
	s.InDelta(float64(total-1), last, 1e-9, "newest event MUST survive")
	s.Equal(int64(total-16), s.bus.GetMetrics().Dropped)
	s.Equal(RingStats{Delivered: total, Dropped: total - 16}, sub.Stats())
}

func (s *BusTestSuite) TestCloseDrainsAndClosesSubscribers() {
	// GOAL: Verify Close delivers queued events and closes subscriber channels
	//
	// TEST SCENARIO: Publish → Close → events readable then channel closed → later publishes ignored

	sub := s.bus.Subscribe()
	s.bus.Publish(NewConnectionChanged(false))
	s.bus.Close()

	var kinds []Kind
	for e := range sub.C() {
		kinds = append(kinds, e.Kind)
	}
	s.Equal([]Kind{ConnectionChanged}, kinds)

	s.bus.Publish(NewConnectionChanged(true))
	s.Equal(int64(1), s.bus.GetMetrics().Published, "publish after close MUST be ignored")

	late := s.bus.Subscribe()
	_, ok := <-late.C()
	s.False(ok, "subscription on a closed bus MUST be closed immediately")
}

func TestBusTestSuite(t *testing.T) {
	suite.Run(t, new(BusTestSuite))
}

func TestNewBusRejectsOversizedQueue(t *testing.T) {
	_, err := NewBus(nil, Options{QueueSize: MaxQueueSize + 1})
	assert.Error(t, err, "oversized queue MUST be rejected")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "OrientationChanged", OrientationChanged.String())
	assert.Equal(t, "Calibrated", Calibrated.String())
	assert.Equal(t, "Unknown", Kind(99).String())
}
