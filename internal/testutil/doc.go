// Package testutil contains helpers used across tests to reduce boilerplate
// when recording asynchronous observations (failures, listener payloads,
// result frames) and when deterministic correlation ids are needed. These
// helpers are not intended for production usage.
package testutil
