package verify

import "github.com/pkg/errors"

// Wrap is the package's standard error-wrapping helper: every boundary
// between a collaborator (SolverFacade, ContractProvider, an embedder's
// Impl closure) and the engine's own control flow wraps with
// github.com/pkg/errors so a failure deep in a contract evaluation still
// carries a readable call stack back to the Call Driver that invoked it.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, "verify: "+msg)
}
