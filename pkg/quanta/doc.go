// Package quanta is the client for the Quanta remote circuit-execution
// service. It builds and validates submission bundles from circuit
// sources, submits them over a transport channel, polls the job lifecycle
// (NEW, RUNNING, DONE, ERROR, CANCELED) until a terminal state, and
// decodes the multi-file binary result bundle into typed results.
//
// All simulation happens remotely; this package never computes circuit
// semantics locally. The transport itself is a capability interface
// (Channel); a concrete HTTP+object-store implementation lives in
// pkg/transport.
package quanta
