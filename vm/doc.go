// Package vm implements the Rholang bytecode interpreter.
//
// This package contains:
//   - the stack machine (VM) with its continuation table and name counter
//   - Process, the unit of execution and its Wait/Ready/Value/Error lifecycle
//   - ExecError, the execution failure taxonomy
//   - Scheduler and Journal, which run many processes on a worker pool and
//     commit their results in enqueue order
//
// A VM talks to the outside world only through an rspace.RSpace. VMs that
// share one store across goroutines must be given an rspace.Shared.
package vm
