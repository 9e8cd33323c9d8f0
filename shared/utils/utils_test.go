package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAccountNumberFor(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"portfolio-ab12", "ACCAB12"},
		{"x9", "ACCX9"},
		{"abcd", "ACCABCD"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, AccountNumberFor(tt.id))
		})
	}
}

func TestCustomerNameFor(t *testing.T) {
	assert.Equal(t, "Portfolio Customer acc-1", CustomerNameFor("acc-1"))
}

func TestNewTransactionID(t *testing.T) {
	a, b := NewTransactionID(), NewTransactionID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
