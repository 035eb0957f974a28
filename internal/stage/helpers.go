package stage

import (
	"lossless/internal/lossless"
	"lossless/internal/services"
)

// ParseFlags decodes the flag summary a preprocess run stored on the item.
// On failure it returns a services.ErrValidation suitable for stage Execute
// methods.
func ParseFlags(raw string) (*lossless.Flags, error) {
	flags, err := lossless.ParseFlags(raw)
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "parse flags",
			"Flag summary missing or invalid; rerun preprocessing", err)
	}
	return flags, nil
}
