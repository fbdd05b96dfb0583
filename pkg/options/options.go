package options

import (
	"fmt"
	"net"

	"github.com/spf13/pflag"
)

// IOptions is the contract every option group in this package satisfies.
// Option structs are bound to flags once at startup and read-only after.
type IOptions interface {
	// Validate validates all the options and returns any errors found.
	Validate() []error

	// AddFlags adds the flags of the option group to the given FlagSet.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// ValidateAddress checks that addr is a valid host:port bind address.
func ValidateAddress(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%q is not a valid address: %w", addr, err)
	}
	if host != "" && net.ParseIP(host) == nil {
		// Allow hostnames; reject only obviously malformed values.
		if _, err := net.LookupPort("tcp", port); err != nil {
			return fmt.Errorf("%q is not a valid address: %w", addr, err)
		}
	}
	if _, err := net.LookupPort("tcp", port); err != nil {
		return fmt.Errorf("%q has an invalid port: %w", addr, err)
	}
	return nil
}
