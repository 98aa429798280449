//go:build test

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/sysofwan/ha-triones/internal/testutils"
)

type StatusTestSuite struct {
	CommandTestSuite
}

func TestStatusTestSuite(t *testing.T) {
	suite.Run(t, new(StatusTestSuite))
}

func (s *StatusTestSuite) TestStatus_Text() {
	// GOAL: status prints the decoded state of a configured light by name
	//
	// TEST SCENARIO: peripheral reports on/red → text block with power, mode, brightness and colour

	out, err := s.ExecuteCommand("status", "kitchen")
	s.Require().NoError(err, "status MUST succeed")

	testutils.NewTextAsserter(s.T()).Assert(out, `
kitchen (AA:00:00:00:00:01)
  power:       on
  mode:        rgb
  brightness:  255
  color:       #ff0000
`)

	s.Equal([][]byte{{0xEF, 0x01, 0x77}}, s.Peripheral(TestDeviceAddress1).Writes(), "status MUST send exactly one query")
}

func (s *StatusTestSuite) TestStatus_WhiteMode() {
	s.PeripheralBuilder = testutils.CreateTrionesPeripheral(testutils.StatusFrame(0x24, 0, 0, 0, 90))

	out, err := s.ExecuteCommand("status", "AA:00:00:00:00:09")
	s.Require().NoError(err)

	testutils.NewTextAsserter(s.T()).Assert(out, `
AA:00:00:00:00:09
  power:       off
  mode:        white
  brightness:  90
  color:       #000000
`)
}

func (s *StatusTestSuite) TestStatus_JSON() {
	// GOAL: JSON output is keyed by address in argument order
	//
	// TEST SCENARIO: status porch kitchen --format json → porch first, both snapshots complete

	out, err := s.ExecuteCommand("status", "porch", "kitchen", "--format", "json")
	s.Require().NoError(err)

	testutils.NewJSONAsserter(s.T()).Assert(out, `{
		"AA:00:00:00:00:02": {
			"name": "porch", "address": "AA:00:00:00:00:02", "available": true, "on": true,
			"brightness": 255, "rgb_color": {"r": 255, "g": 0, "b": 0}, "color_mode": "rgb"
		},
		"AA:00:00:00:00:01": {
			"name": "kitchen", "address": "AA:00:00:00:00:01", "available": true, "on": true,
			"brightness": 255, "rgb_color": {"r": 255, "g": 0, "b": 0}, "color_mode": "rgb"
		}
	}`)
	s.Less(strings.Index(out, TestDeviceAddress2), strings.Index(out, TestDeviceAddress1), "keys MUST keep argument order")
}

func (s *StatusTestSuite) TestStatus_Unavailable() {
	// GOAL: a silent light is reported, and does not hide the others
	//
	// TEST SCENARIO: porch never answers → kitchen printed, porch unavailable, ErrUnavailable returned

	s.WithPeripheralAt(TestDeviceAddress2, testutils.CreateTrionesPeripheral(nil))

	out, err := s.ExecuteCommand("status", "kitchen", "porch")

	s.Require().ErrorIs(err, ErrUnavailable)
	s.Contains(err.Error(), TestDeviceAddress2)
	s.Contains(out, "kitchen (AA:00:00:00:00:01)\n  power:       on")
	s.Contains(out, "porch (AA:00:00:00:00:02): unavailable")
}

func (s *StatusTestSuite) TestStatus_Errors() {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no device", []string{"status"}, "requires at least 1 arg"},
		{"bad format", []string{"status", "kitchen", "--format", "xml"}, "invalid format 'xml'"},
		{"bad log level", []string{"status", "kitchen", "--log-level", "loud"}, "invalid log level: loud"},
		{"bad backend", []string{"status", "kitchen", "--backend", "serial"}, "backend"},
		{"bad variant", []string{"status", "kitchen", "--variant", "other"}, "variant"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.ExecuteCommand(tt.args...)
			s.Require().Error(err)
			s.Contains(err.Error(), tt.want)
		})
	}
}

func (s *StatusTestSuite) TestStatus_VerboseLogsFrames() {
	_, err := s.ExecuteCommand("status", "kitchen", "--verbose")
	s.Require().NoError(err)

	s.Contains(s.Stderr.String(), "ef 01 77", "debug logging MUST dump written frames")
}
