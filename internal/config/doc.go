// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional config file. It also merges
// operator-edited runtime settings over the loaded defaults so each queue
// run works from one immutable snapshot.
package config
