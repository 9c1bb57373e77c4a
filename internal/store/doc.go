// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the task runner and its collaborators: the task queue, topics, series,
// generated documents, runtime settings and binary assets.
package store
