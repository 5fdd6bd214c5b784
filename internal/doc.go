// Package internal contains the implementation packages of the sitesmith CLI.
//
// These packages follow Go's internal package convention and cannot be
// imported by other modules.
//
// # Package Organization
//
//   - paths: source and output folder layout, resolved per output root
//   - transform: per-file transformations (includes, Sass, esbuild, minify, images)
//   - build: mode table, stages and the concurrent build pipeline
//   - watcher: debounced file watching that re-runs single stages
//   - server: live-reload preview server and status page
//   - deploy: parallel FTP publishing of the production output
//   - services: the operations the commands run, wired from configuration
//   - config, logging, errors, metrics, version: ambient support
//
// # Inter-Package Communication
//
// The services container builds one pipeline per command run. The watcher
// calls back into that pipeline through bindings, and reports each rebuild to
// the preview server, which forwards it to connected browsers.
//
// # Testing Strategy
//
// Each package has table-driven unit tests. Property tests run with the
// property build tag:
//
//	go test -tags property ./...
package internal
