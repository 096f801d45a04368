// ABOUTME: Product identity constants
// ABOUTME: Reported in logs, mDNS TXT records and ingest handshakes
package version

const (
	Product      = "Resonate Sink"
	Manufacturer = "Resonate"
	Version      = "0.3.0"
)

// String returns the product/version pair used as a user agent
func String() string {
	return Product + "/" + Version
}
