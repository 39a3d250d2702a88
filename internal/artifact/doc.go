// Package artifact downloads remote provider outputs into durable local
// storage and rewrites them into externally servable URLs. It also holds
// the optional thumbnail renderer used when a provider returns a model
// without any preview image.
package artifact
