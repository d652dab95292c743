package composite

import (
	"fmt"

	"github.com/openplan-finance/compass/internal/validate"
)

var errNoIndexRequested = fmt.Errorf("%w: at least one index block is required", validate.ErrInvalidInput)
