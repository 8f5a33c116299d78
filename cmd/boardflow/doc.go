// Command boardflow runs committee deliberations from the command line.
//
// Subcommands:
//
//	run      run one deliberation with the demo committee and print the decision
//	serve    expose deliberations over HTTP with WebSocket round streaming
//	version  print build information
//
// Both commands accept -config pointing at a YAML file; every setting can
// also be supplied through BOARDFLOW_* environment variables.
package main
