// Package preflight provides readiness checks for the filesystem paths and
// settings a dataset run depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunAll once at startup. If any check fails,
//     the run aborts before touching recordings instead of dying hours in.
//   - The CLI "lossless status" command uses individual check functions
//     (CheckDirectoryAccess, CheckRecipe, ProbeDataset) to display health.
//
// Checks gated by optional features are skipped when the feature is off.
package preflight
