// Package task owns the generation queue: enqueueing requests, arming the
// process_queue hook and running the retry state machine that turns a
// pending task into a stored document.
//
// At most one task is processed at a time. A run picks the oldest eligible
// pending task, claims it, executes it and records the result. A failed task
// returns to pending and the hook is re-armed after the retry delay until
// the attempt limit is reached. When further tasks are waiting the hook is
// re-armed after a short delay so the queue drains one task per run.
package task
