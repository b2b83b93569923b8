// Package main is the entry point for the toolfetch CLI.
//
// toolfetch fetches the artifacts a toolchain manager needs: JSON release
// indexes, text checksum lists and binary archives.
//
// Configuration:
//   - Environment variables (FETCH_*, LOG_*, METRICS_*)
//   - CLI flags (override env vars)
//
// Usage:
//
//	toolfetch json https://nodejs.org/dist/index.json --query 0.version
//	toolfetch text https://nodejs.org/dist/v20.11.1/SHASUMS256.txt
//	toolfetch binary https://nodejs.org/dist/v20.11.1/node-v20.11.1-linux-x64.tar.xz -o node.tar.xz
//	toolfetch run fetches.yaml --bail
//
// Exit codes: 0 success, 1 a fetch failed, 2 usage error, 3 config error.
package main
