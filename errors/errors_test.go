package errors

import (
	"fmt"
	"testing"
)

func TestPresenceError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeInvalidInput, "bad tick")
	if err.Code != ErrCodeInvalidInput {
		t.Errorf("expected code %s, got %s", ErrCodeInvalidInput, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeChannelFailed, "emit failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	// Test Is function
	if !Is(wrapped, ErrCodeChannelFailed) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeConfigInvalid) {
		t.Error("Is should return false for non-matching code")
	}

	// Test Is through fmt wrapping
	outer := fmt.Errorf("dispatch: %w", wrapped)
	if !Is(outer, ErrCodeChannelFailed) {
		t.Error("Is should see through wrapped errors")
	}

	// Test WithDetail
	detailed := err.WithDetail("source", "websocket").WithDetail("line", 12)
	if detailed.Details["source"] != "websocket" {
		t.Error("WithDetail should add details")
	}
}

func TestErrorConstructors(t *testing.T) {
	err := ChannelFailed("notify", "ntfy", fmt.Errorf("timeout"))
	if err.Code != ErrCodeChannelFailed {
		t.Errorf("expected code %s, got %s", ErrCodeChannelFailed, err.Code)
	}
	if err.Details["emitter"] != "ntfy" {
		t.Error("ChannelFailed should include emitter detail")
	}

	err = NotifyFailed("https://ntfy.sh/topic", 429)
	if err.Code != ErrCodeNotifyFailed {
		t.Errorf("expected code %s, got %s", ErrCodeNotifyFailed, err.Code)
	}
	if err.Details["status"] != 429 {
		t.Error("NotifyFailed should include status detail")
	}

	if GetCode(nil) != "" {
		t.Error("GetCode(nil) should be empty")
	}
	if GetCode(fmt.Errorf("plain")) != "" {
		t.Error("GetCode of a plain error should be empty")
	}
}
