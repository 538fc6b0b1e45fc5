// Package options defines the generic options interface and common utilities.
package options

import (
	"strings"

	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Join concatenates prefixes with "." separator.
// If the result is non-empty, it appends a trailing ".".
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}

// IOptions defines methods to implement a generic options.
type IOptions interface {
	// Validate validates all the required options.
	Validate() []error

	// AddFlags adds flags related to given flagset.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// Completer is implemented by options that fill in derived defaults.
type Completer interface {
	Complete() error
}

// ValidateAll runs Validate on every group and aggregates the errors.
// Nil groups are skipped.
func ValidateAll(groups ...IOptions) error {
	var errs []error
	for _, g := range groups {
		if g == nil {
			continue
		}
		errs = append(errs, g.Validate()...)
	}
	return utilerrors.NewAggregate(errs)
}

// CompleteAll runs Complete on every group that implements Completer.
func CompleteAll(groups ...IOptions) error {
	for _, g := range groups {
		if c, ok := g.(Completer); ok {
			if err := c.Complete(); err != nil {
				return err
			}
		}
	}
	return nil
}
