// Package verify implements the core of a contract-directed symbolic
// execution engine. Given a function annotated with preconditions and
// postconditions, the engine searches for input values that either confirm
// the postcondition over every explored path or exhibit a concrete
// counterexample.
//
// Real argument values are replaced with symbolic proxies backed by a
// SolverFacade; the search tree branches at every decision the function
// makes, and per-path constraints accumulate so the solver can produce
// concrete witness values for failing paths.
//
// The package is a library: parsing of contract text, the CLI, source
// position mapping, and the SMT solver itself are external collaborators.
// Only their boundaries (ContractProvider, SolverFacade, SubclassIndex) are
// owned here.
package verify
