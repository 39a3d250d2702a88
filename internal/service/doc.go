// Package service implements the application use cases around
// generations: submission with cooldown enforcement, result retrieval
// with pending re-enqueue, and the owner/gallery listings. It sits
// between the transport layer and the stores/workers.
package service
