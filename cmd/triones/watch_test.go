//go:build test

package main

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/sysofwan/ha-triones/internal/testutils"
	"github.com/sysofwan/ha-triones/pkg/light"
)

type WatchTestSuite struct {
	CommandTestSuite
}

func TestWatchTestSuite(t *testing.T) {
	suite.Run(t, new(WatchTestSuite))
}

func (s *WatchTestSuite) TestWatch_ConfiguredDevicesJSONLines() {
	// GOAL: watch polls every configured light on each tick and streams one JSON line per poll
	//
	// TEST SCENARIO: 2 configured lights, porch silent, --count 2 → 2 lines, porch unavailable, session reused

	s.WithPeripheralAt(TestDeviceAddress2, testutils.CreateTrionesPeripheral(nil))

	out, err := s.ExecuteCommand("watch", "--interval", "20ms", "--count", "2", "--format", "json")
	s.Require().NoError(err, "an unavailable light MUST NOT fail watch")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	s.Require().Len(lines, 2)
	for _, line := range lines {
		var snaps map[string]light.Snapshot
		s.Require().NoError(json.Unmarshal([]byte(line), &snaps))
		s.True(snaps[TestDeviceAddress1].Available)
		s.False(snaps[TestDeviceAddress2].Available)
	}

	kitchen := s.Peripheral(TestDeviceAddress1)
	s.Equal(1, kitchen.Count(testutils.OpConnect), "polls MUST reuse the connection")
	s.Equal(2, len(kitchen.Writes()))
}

func (s *WatchTestSuite) TestWatch_Text() {
	out, err := s.ExecuteCommand("watch", "kitchen", "-i", "10ms", "-n", "1")
	s.Require().NoError(err)

	s.True(strings.HasPrefix(out, "--- "))
	s.Contains(out, "kitchen (AA:00:00:00:00:01)\n  power:       on\n")
	s.NotContains(out, "porch")
}

func (s *WatchTestSuite) TestWatch_Errors() {
	s.Require().NoError(os.WriteFile(s.ConfigPath, []byte("variant: fixed\n"), 0o600))

	_, err := s.ExecuteCommand("watch", "-n", "1")
	s.Require().Error(err)
	s.Contains(err.Error(), "no devices to watch")

	_, err = s.ExecuteCommand("watch", "kitchen", "--interval", "0s")
	s.Require().Error(err)
	s.Contains(err.Error(), "invalid interval")
}
