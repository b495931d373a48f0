// Package fetch runs the Retrying Fetch Executor.
//
// Every download walks the state machine
//
//	Pending -> Attempting -> Succeeded
//	                      -> PermanentlyFailed
//	                      -> Retrying -> Attempting ... -> ExhaustedFailed
//
// Attempt i uses attempt configuration i, so a download is tried at most as
// many times as its planner returns configurations. Failures are collected
// and reported once, after the whole batch, in download order.
//
// With a concurrency above one, downloads run on an errgroup worker pool.
// Each worker owns its result slot and progress lines are written whole
// under a mutex.
package fetch
