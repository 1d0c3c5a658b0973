package repository

import "errors"

var (
	ErrPersistence   = errors.New("persistence error")
	ErrInvalidSearch = errors.New("invalid search parameters")
)

func validateSearch(query []float32, threshold float64, count int) error {
	if len(query) == 0 {
		return ErrInvalidSearch
	}
	if threshold < 0 || threshold > 1 || count <= 0 {
		return ErrInvalidSearch
	}
	return nil
}
