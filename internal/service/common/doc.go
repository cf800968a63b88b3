// Package common holds helpers shared by glowctl and the integration tests.
//
// It provides a gRPC client for the alarm service that converts the wire
// records back into domain values and applies a default call timeout.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
