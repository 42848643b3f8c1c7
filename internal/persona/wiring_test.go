package persona

import (
	"github.com/zulandar/masquerade/internal/ai"
	"github.com/zulandar/masquerade/internal/db"
)

// The real backends must satisfy the core's interfaces.
var (
	_ Store     = (*db.Manager)(nil)
	_ Completer = (*ai.Manager)(nil)
)
