package main

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/srg/ihslink/internal/bledb"
	"github.com/srg/ihslink/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type MonitorTestSuite struct {
	CommandTestSuite
}

type commandResult struct {
	out string
	err error
}

// runMonitorAsync starts monitor and delivers one ComboHPR notification once
// the stream is subscribed.
func (s *MonitorTestSuite) runMonitorAsync(args ...string) commandResult {
	done := make(chan commandResult, 1)
	go func() {
		out, _, err := s.ExecuteCommand(append([]string{"monitor", TestDeviceAddress1}, args...)...)
		done <- commandResult{out, err}
	}()

	frame := testutils.ComboHprFrame(900, 0, 0, 0, 0, 0, 450)
	s.Helper.Eventually(func() bool {
		client := s.PeripheralBuilder.LastClient()
		combo := s.PeripheralBuilder.Characteristic(bledb.ComboHprChar)
		return client != nil && combo != nil && client.Notify(combo, frame)
	}, s.TestTimeout, "ComboHPR MUST be subscribed")

	select {
	case r := <-done:
		return r
	case <-time.After(s.TestTimeout):
		s.FailNow("monitor did not stop after --duration")
		return commandResult{}
	}
}

func (s *MonitorTestSuite) TestMonitorStreamsEvents() {
	// GOAL: Verify monitor streams the selected sensors until the duration elapses and then detaches
	//
	// TEST SCENARIO: monitor --sensors gyro --duration 500ms → notification → SensorsListenedToChanged and OrientationChanged lines, clean exit

	r := s.runMonitorAsync("--sensors", "gyro", "--duration", "500ms")
	s.Require().NoError(r.err, "duration expiry MUST be a clean exit")

	s.Contains(r.out, "SensorsListenedToChanged")
	s.Contains(r.out, "Gyro")
	s.Contains(r.out, "OrientationChanged")
	s.Contains(r.out, "yaw=90.0 pitch=0.0 roll=0.0 compass=45.0")

	s.PeripheralBuilder.LastClient().AssertCalled(s.T(), "CancelConnection")
}

func (s *MonitorTestSuite) TestMonitorJSONLines() {
	r := s.runMonitorAsync("--sensors", "gyro", "--duration", "500ms", "--json")
	s.Require().NoError(r.err)

	var orientation []string
	for _, line := range strings.Split(strings.TrimSpace(r.out), "\n") {
		var v map[string]any
		s.Require().NoError(json.Unmarshal([]byte(line), &v), "every line MUST be a JSON object: %s", line)
		if v["kind"] == "OrientationChanged" {
			orientation = append(orientation, line)
		}
	}
	s.Require().Len(orientation, 1)
	testutils.AssertJSON(s.T(), orientation[0], `{
		"kind": "OrientationChanged",
		"orientation": {"yaw": 90, "pitch": 0, "roll": 0, "compass_heading": 45}
	}`)
}

func (s *MonitorTestSuite) TestMonitorCalibrate() {
	// GOAL: Verify --calibrate zeroes the orientation against the first reading
	//
	// TEST SCENARIO: Calibration polls with no reading yet → notification arrives → Calibrated event with the raw reference

	r := s.runMonitorAsync("--sensors", "gyro", "--duration", "2s", "--calibrate")
	s.Require().NoError(r.err)
	s.Contains(r.out, "Calibrated", "calibration MUST be reported once a reading exists")
}

func TestMonitorTestSuite(t *testing.T) {
	suite.Run(t, new(MonitorTestSuite))
}
