package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NewValidationError("sIni", "bad"), http.StatusBadRequest},
		{&ConflictUnresolvedError{Entity: "vehicle", Key: "T1"}, http.StatusUnprocessableEntity},
		{fmt.Errorf("sync: %w", ErrSyncInProgress), http.StatusConflict},
		{&SourceUnavailableError{Err: errors.New("dial tcp")}, http.StatusBadGateway},
		{&PersistenceError{Op: "insert", Err: errors.New("boom")}, http.StatusInternalServerError},
		{&PersistenceError{Op: "reactivate", Err: ErrorRecordNotFound}, http.StatusInternalServerError},
		{ErrorRecordNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusCodeFor(tc.err), tc.err.Error())
	}
}

func TestPersistenceError_NamesRecord(t *testing.T) {
	err := &PersistenceError{Op: "insert", Record: "cargo N3/BH", Err: errors.New("injected")}
	assert.Equal(t, "store insert of cargo N3/BH failed: injected", err.Error())
	assert.ErrorContains(t, err, "injected")
}
