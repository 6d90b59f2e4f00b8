package util

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kernel/kernel-go-sdk"
)

// CleanedUpSdkError trims Kernel API errors down to the server's message and
// status code instead of the full request dump.
type CleanedUpSdkError struct {
	Err error
}

func (e CleanedUpSdkError) Error() string {
	var apiErr *kernel.Error
	if !errors.As(e.Err, &apiErr) {
		return e.Err.Error()
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(apiErr.RawJSON()), &body); err == nil && body.Message != "" {
		return fmt.Sprintf("%s (status %d)", body.Message, apiErr.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d", apiErr.StatusCode)
}

func (e CleanedUpSdkError) Unwrap() error {
	return e.Err
}
