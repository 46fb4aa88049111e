package main

import (
	"testing"

	"github.com/srg/ihslink/internal/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ReadTestSuite struct {
	CommandTestSuite
}

func (s *ReadTestSuite) TestReadOnceTable() {
	// GOAL: Verify read polls the requested sensors without subscribing and prints the calibrated snapshot
	//
	// TEST SCENARIO: read --sensors gyro,accelerometer → orientation and acceleration rows, no Subscribe calls

	out, _, err := s.ExecuteCommand("read", TestDeviceAddress1, "--sensors", "gyro,accelerometer")
	s.Require().NoError(err, "read MUST succeed")

	testutils.AssertText(s.T(), out, `
Orientation   yaw=123.4 pitch=5.0 roll=358.0 compass=90.0
Acceleration  x=1.000 y=0.000 z=-0.500 g
`)

	client := s.PeripheralBuilder.LastClient()
	s.Require().NotNil(client)
	client.AssertNotCalled(s.T(), "Subscribe", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ReadTestSuite) TestReadOnceJSON() {
	out, _, err := s.ExecuteCommand("read", TestDeviceAddress1, "--sensors", "gyro,accelerometer", "--json")
	s.Require().NoError(err)

	testutils.AssertJSON(s.T(), out, `{
		"orientation": {"yaw": 123.4, "pitch": 5, "roll": 358, "compass_heading": 90},
		"acceleration": {"x": 1, "y": 0, "z": -0.5}
	}`, testutils.WithIgnoreExtraKeys(false))
}

func (s *ReadTestSuite) TestReadSensorValidation() {
	tests := []struct {
		name    string
		sensors string
		errMsg  string
	}{
		{"unknown sensor", "gyro,barometer", "barometer"},
		{"empty selection", "none", "no sensors selected"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, _, err := s.ExecuteCommand("read", TestDeviceAddress1, "--sensors", tt.sensors)
			s.ErrorContains(err, tt.errMsg)
			s.Nil(s.PeripheralBuilder.LastClient(), "invalid selection MUST NOT connect")
		})
	}
}

func TestReadTestSuite(t *testing.T) {
	suite.Run(t, new(ReadTestSuite))
}
