// Package feed defines the data model shared by the feed synchronization
// engine: store references, raw entities as returned by a Fetch Gateway,
// normalized feed items, pagination parameters and the typed error taxonomy.
//
// Nothing in this package performs I/O. The store, gateway, reconciler and
// controller packages all speak in these types.
package feed
