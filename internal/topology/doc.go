// Package topology reconstructs the device adjacency graph from LLDP/CDP neighbor records
// and walks it into a rooted forest for presentation.
//
// Both steps run single-threaded over data that has already been fetched, and both are
// deterministic: switches are processed in serial order and neighbors are visited in
// lexicographic order, so the output does not depend on fetch completion order.
package topology
