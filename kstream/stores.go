package kstream

import (
	"fmt"

	"github.com/tryfix/errors"
)

// GetStateStoreByName returns the store registered under name as T. It
// fails with ErrNotFound when no such store exists or when the store is
// not a T.
func GetStateStoreByName[T any](instance *StreamInstance, name string) (T, error) {
	var zero T

	s, err := instance.registry.Store(name)
	if err != nil {
		return zero, errors.WithPrevious(ErrNotFound, fmt.Sprintf(`store [%s]`, name))
	}

	typed, ok := s.(T)
	if !ok {
		return zero, errors.WithPrevious(ErrNotFound, fmt.Sprintf(`store [%s] is %T, not %T`, name, s, zero))
	}

	return typed, nil
}

// GetStateStoresByType returns every registered store that is a T, ordered
// by store name.
func GetStateStoresByType[T any](instance *StreamInstance) []T {
	var list []T
	for _, s := range instance.registry.Stores() {
		if typed, ok := s.(T); ok {
			list = append(list, typed)
		}
	}

	return list
}
