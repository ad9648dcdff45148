// Package feed holds the value types shared by the watch loop and its
// collaborators: watched channels, published items, probe outcomes, delivery
// results and the per-channel last-seen map.
package feed
