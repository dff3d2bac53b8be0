package validator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_ValidNumbers(t *testing.T) {
	v := NewPhoneValidator()

	tests := []struct {
		input    string
		expected string
	}{
		{"9876543210", "9876543210"},
		{"98765 43210", "9876543210"},
		{"98765-43210", "9876543210"},
		{"+91 98765 43210", "9876543210"},
		{"919876543210", "9876543210"},
		{"09876543210", "9876543210"},
		{"(700) 123-4567", "7001234567"},
		{"6123456789", "6123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := v.Validate(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestValidate_InvalidNumbers(t *testing.T) {
	v := NewPhoneValidator()

	tests := []struct {
		input string
		err   error
	}{
		{"", ErrEmptyPhone},
		{"   ", ErrEmptyPhone},
		{"98765abcde", ErrInvalidFormat},
		{"98765", ErrInvalidLength},
		{"987654321012", ErrInvalidLength},
		{"5123456789", ErrInvalidPrefix},
		{"1234567890", ErrInvalidPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := v.Validate(tt.input)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestFormat(t *testing.T) {
	v := NewPhoneValidator()

	got, err := v.Format("9876543210")
	assert.NoError(t, err)
	assert.Equal(t, "+91 98765 43210", got)

	_, err = v.Format("123")
	assert.Error(t, err)
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Asha@Example.com", "asha@example.com", false},
		{"  bob@example.org ", "bob@example.org", false},
		{"Bob <bob@example.org>", "", true},
		{"not-an-email", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeEmail(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEmail)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConcurrentValidation(t *testing.T) {
	v := NewPhoneValidator()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, v.IsValid("9876543210"))
		}()
	}
	wg.Wait()
}
