//go:build test

package main

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/sysofwan/ha-triones/internal/testutils"
)

// Test device addresses, matching the devices of the test config
const (
	TestDeviceAddress1 = "AA:00:00:00:00:01"
	TestDeviceAddress2 = "AA:00:00:00:00:02"
)

const testConfig = `
variant: catalog
scan_timeout: 100ms
session:
  connect_timeout: 1s
  response_timeout: 200ms
  connect_settle: 0s
  notify_settle: 0s
devices:
  - name: kitchen
    address: "AA:00:00:00:00:01"
  - name: porch
    address: "AA:00:00:00:00:02"
`

// CommandTestSuite extends MockPeripheralSuite with command testing utilities.
// All cmd/triones test suites should embed this instead of MockPeripheralSuite.
type CommandTestSuite struct {
	testutils.MockPeripheralSuite

	ConfigPath string
	Stderr     *bytes.Buffer
}

func (s *CommandTestSuite) SetupSuite() {
	s.MockPeripheralSuite.SetupSuite()
	color.NoColor = true
}

func (s *CommandTestSuite) SetupTest() {
	s.ConfigPath = filepath.Join(s.T().TempDir(), "config.yaml")
	s.Require().NoError(os.WriteFile(s.ConfigPath, []byte(testConfig), 0o600))
	s.MockPeripheralSuite.SetupTest()
}

// ExecuteCommand runs the root command with the test config and args.
// It returns stdout; stderr (logs, progress) is kept in s.Stderr.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	cmd := newRootCmd()
	out := new(bytes.Buffer)
	s.Stderr = new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(s.Stderr)
	cmd.SetArgs(append([]string{"--config", s.ConfigPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}
