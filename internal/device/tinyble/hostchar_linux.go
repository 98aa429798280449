package tinyble

import (
	"fmt"

	"github.com/sysofwan/ha-triones/internal/device"
)

// Write is not available through tinygo's BlueZ client, which only issues
// write commands. Every characteristic reports write-without-response, so
// sessions never take this path.
func (c *hostChar) Write([]byte) (int, error) {
	return 0, fmt.Errorf("%w: write with response on BlueZ", device.ErrUnsupported)
}
