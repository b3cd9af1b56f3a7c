// Package architecture holds tests that enforce the layering of this module.
package architecture
