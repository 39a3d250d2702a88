// Package provider contains the integration shims for the external
// generation backends. Each adapter knows how to poll one provider's
// result endpoint and normalize its response into the common Result
// shape consumed by the polling loops; the clients additionally expose
// the submission calls used by the service layer.
package provider
