// Package testutil contains helper builders and collectors used across tests
// to reduce boilerplate when constructing core model objects (messages,
// worlds, agents) and waiting on bus traffic. They are not intended for
// production usage.
package testutil
