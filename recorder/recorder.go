package recorder

import (
	"context"

	"github.com/suitedirector/suitedirector/types"
)

// Recorder persists one DeploymentSession to the store identified by dbURL
// and returns the generated record identifier. Failures carry
// types.PersistenceError.
type Recorder interface {
	Record(ctx context.Context, session types.DeploymentSession, dbURL string) (string, error)
}
