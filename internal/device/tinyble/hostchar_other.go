//go:build !linux

package tinyble

func (c *hostChar) Write(p []byte) (int, error) { return c.char.Write(p) }
