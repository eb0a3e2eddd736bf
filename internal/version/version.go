// ABOUTME: Product and version constants
// ABOUTME: Reported in hello messages, mDNS names and the console
package version

const (
	Version      = "0.3.0"
	Product      = "audiograph"
	Manufacturer = "Resonate Protocol"
)

// String returns the product name and version
func String() string {
	return Product + " " + Version
}
