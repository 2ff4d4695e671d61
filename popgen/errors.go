package popgen

import "errors"

var (
	ErrLengthMismatch  = errors.New("popgen: marker vectors differ in length")
	ErrEmptyTraits     = errors.New("popgen: empty trait matrix")
	ErrRaggedTraits    = errors.New("popgen: ragged trait matrix")
	ErrWeightCount     = errors.New("popgen: one weight per trait required")
	ErrBadProportion   = errors.New("popgen: selection proportion must be in (0, 1]")
	ErrBadHeritability = errors.New("popgen: heritability must be in [0, 1]")
	ErrBadComponents   = errors.New("popgen: component count must be positive")
	ErrEigenFailed     = errors.New("popgen: eigendecomposition failed")
)
