// Package mocks holds testify mocks for the service and middleware interfaces,
// shaped like mockery output so tests read the same either way.
package mocks

import (
	"github.com/stretchr/testify/mock"
)

// TestingT is what the NewMock constructors need from *testing.T
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

// ret pulls a typed return value, treating an untyped nil as the zero value
func ret[T any](args mock.Arguments, i int) T {
	var zero T
	v := args.Get(i)
	if v == nil {
		return zero
	}
	if fn, ok := v.(func() T); ok {
		return fn()
	}
	return v.(T) //nolint:forcetypeassert // a wrong type is a broken test expectation
}

func register(m *mock.Mock, t TestingT) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}
