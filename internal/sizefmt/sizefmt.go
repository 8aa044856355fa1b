// Package sizefmt renders byte counts for display and picks read buffer sizes.
package sizefmt

import "fmt"

const (
	kb = 1024
	mb = 1024 * kb
	gb = 1024 * mb
)

// DefaultBufferSize is used when the source does not declare its length.
const DefaultBufferSize = 64 * kb

// HumanReadable formats a byte count. A value equal to a unit threshold is still
// rendered in the smaller unit, so 1024 is "1024 Byte" and 1024*1024 is "1024.00 KB".
func HumanReadable(bytes uint64) string {
	switch {
	case bytes <= kb:
		return fmt.Sprintf("%d Byte", bytes)
	case bytes <= mb:
		return fmt.Sprintf("%.2f KB", float64(bytes)/kb)
	case bytes <= gb:
		return fmt.Sprintf("%.2f MB", float64(bytes)/mb)
	default:
		return fmt.Sprintf("%.2f GB", float64(bytes)/gb)
	}
}

// Speed formats a rate in bytes per second.
func Speed(bytesPerSecond float64) string {
	if bytesPerSecond < 0 {
		bytesPerSecond = 0
	}

	return HumanReadable(uint64(bytesPerSecond)) + "/s"
}

// ChooseBufferSize returns the read buffer size for a transfer of the given declared
// length. Larger transfers get larger buffers.
func ChooseBufferSize(declared uint64) int {
	switch {
	case declared <= kb:
		return kb
	case declared <= mb:
		return 8 * kb
	case declared <= 128*mb:
		return 64 * kb
	case declared <= 512*mb:
		return mb
	default:
		return 8 * mb
	}
}
