// Package types contains small shared types used across the uact package.
package types

type ContextKey string
