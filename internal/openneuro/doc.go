// Package openneuro provides the minimal OpenNeuro API client used to fetch
// sample datasets.
//
// It resolves snapshot tags, walks the snapshot file tree over GraphQL, and
// downloads selected files with size verification, skipping files already
// present locally. Options allow tests to supply custom HTTP clients, short
// retry delays, and local endpoints without modifying production code.
package openneuro
