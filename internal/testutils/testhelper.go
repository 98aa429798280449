package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

// Characteristic UUIDs of a typical Triones controller
const (
	TrionesWriteUUID  = "0000ffd9-0000-1000-8000-00805f9b34fb"
	TrionesNotifyUUID = "0000ffd4-0000-1000-8000-00805f9b34fb"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug level logger.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

// CreateTrionesPeripheral returns a builder preconfigured with the usual
// ffd5/ffd0 services. A nil status leaves the peripheral silent.
func CreateTrionesPeripheral(status []byte) *PeripheralBuilder {
	b := NewPeripheralBuilder().FromJSON(`
	{
		"services": [
			{ "uuid": "ffd5", "characteristics": [ { "uuid": "ffd9", "properties": "write,write-without-response" } ] },
			{ "uuid": "ffd0", "characteristics": [ { "uuid": "ffd4", "properties": "notify" } ] }
		]
	}`)
	if status != nil {
		b.WithStatusReply(status)
	}
	return b
}

func CreatePeripheralFromJSON(jsonStrFmt string, args ...interface{}) *PeripheralBuilder {
	return NewPeripheralBuilder().FromJSON(jsonStrFmt, args...)
}

func CreateMockAdvertisement(name, address string, rssi int) *AdvertisementBuilder {
	return NewAdvertisementBuilder().WithName(name).WithAddress(address).WithRSSI(rssi)
}

// StatusFrame builds a 10-byte status frame
func StatusFrame(power, r, g, b, white byte) []byte {
	return []byte{0x66, 0x15, power, 0x41, 0x20, 0x00, r, g, b, white}
}

// LoadTestdata reads a file relative to the module root.
func LoadTestdata(relPath string) ([]byte, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	// Navigate up to find the project root (look for go.mod file)
	projectRoot := wd
	for {
		if _, err := os.Stat(filepath.Join(projectRoot, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(projectRoot)
		if parent == projectRoot {
			return nil, fmt.Errorf("could not find project root (go.mod not found)")
		}
		projectRoot = parent
	}

	fullPath := filepath.Join(projectRoot, relPath)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", fullPath, err)
	}
	return data, nil
}
