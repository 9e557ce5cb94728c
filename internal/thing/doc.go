// Package thing holds the gateway's device model.
//
// A Record is the persisted description of a device: its platform, type,
// name, optional placement and last known state. A Thing is the live
// object an integration builds from a Record; it lists its actions,
// reports its state and performs actions.
//
// The Directory owns every live thing. It keeps records in insertion
// order, builds live things lazily through a Builder, and serialises all
// work on a single thing behind that thing's own mutex. Unrelated things
// never wait on each other.
//
// State changes are published on the Directory's notification bus. The
// Directory is the only publisher; other components subscribe through
// Directory.Events().
package thing
