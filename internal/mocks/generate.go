// Package mocks provides mock implementations for testing the session
// lifecycle.
//
// This package uses go.uber.org/mock (gomock) to generate a type-safe mock
// for the storage port. Hand-written doubles for the identity provider live
// in the identity subpackage; they are lightweight and suitable for unit
// tests without codegen.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
package mocks

// Generate mock for the Backend interface from internal/ports.
// This creates MockBackend with Read, Write and Delete.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=backend_mock.go github.com/leadforge/sessionkit/internal/ports Backend
