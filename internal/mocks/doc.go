// Package mocks provides centralized mock implementations for testing.
//
// Providers and generators are scripted through function fields with call
// tracking. The store mocks are small in-memory implementations that follow
// the same state rules as the PostgreSQL stores, so runner and API tests can
// assert on resulting state instead of call sequences.
//
// Usage:
//
//	provider := &mocks.MockProvider{
//	    GenerateFn: func(ctx context.Context, topic string, kw, tags []string, opts generation.Options) (string, error) {
//	        return "<h1>Title</h1><p>Body</p>", nil
//	    },
//	}
package mocks
