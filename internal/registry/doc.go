// Package registry implements the broadcast registry and fan-out engine:
// connection and subscription bookkeeping over the blob store with symmetric
// forward/reverse indices, and resilient message delivery through the
// transport.
//
// Delivery is best-effort with bounded spreading: posts issued by one
// operation are staggered by a fixed increment, throttled pushes retry with
// linearly growing delay, and a "gone" endpoint triggers the same cascade as
// an explicit disconnect so dead clients stop receiving fan-out attempts.
package registry
