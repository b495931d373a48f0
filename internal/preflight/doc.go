// Package preflight provides readiness checks for the filesystem paths,
// binaries and remote hosts a sync run depends on.
//
// The CLI "repertoire doctor" command runs RunAll and CheckSystemDeps and
// renders the results as a table. The sync command runs CheckSystemDeps
// before fetching so a missing binary fails fast instead of once per item.
package preflight
