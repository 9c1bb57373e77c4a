// Package domain contains the core entities of the content pipeline: generation
// tasks and their payloads, topics, series and generated documents. It is
// independent of any storage or transport mechanism.
package domain
