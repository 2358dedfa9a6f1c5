// Package domain defines the core types for the fleetscope inventory and topology collector.
//
// The types here are plain values built fresh for every discovery run from whatever the
// control plane returns. Nothing in this package talks to the network or holds locks.
//
// # Core Types
//
// Device is a single managed appliance from the organization inventory. Its Role is never
// stored; it is derived from the model string by Classify.
//
// NetworkSite is a network (site) of the organization that devices are claimed into.
//
// NeighborRecord is one LLDP or CDP observation reported by a switch about the device
// attached to one of its ports.
//
// AdjacencyGraph is the undirected device graph reconstructed from neighbor records.
//
// RenderLine is one entry of the rooted forest produced when the graph is walked from a
// set of root devices.
//
// # Diagnostics
//
// FetchFailure and SkippedItem account for everything a run could not fetch or had to
// ignore, so partial results are always delivered together with what was left out.
package domain
