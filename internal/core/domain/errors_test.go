package domain

import (
	"errors"
	"testing"
)

func TestWithMessageKeepsKind(t *testing.T) {
	err := WithMessage(WrapError(ErrInvalidInput, "assemble input", errors.New("blank")), NoContentMessage)
	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput in chain, got %v", err)
	}
	if err.Error() != "assemble input: invalid input: blank" {
		t.Fatalf("unexpected error text %q", err.Error())
	}
	if got := UserMessage(err); got != NoContentMessage {
		t.Fatalf("UserMessage() = %q", got)
	}
}

func TestUserMessagePrefersOutermost(t *testing.T) {
	inner := WithMessage(errors.New("status 502"), "engine down")
	outer := WithMessage(WrapError(ErrExternalService, "call nlp", inner), "timeline analysis failed: engine down")
	if got := UserMessage(outer); got != "timeline analysis failed: engine down" {
		t.Fatalf("UserMessage() = %q", got)
	}
	if got, ok := AttachedMessage(inner); !ok || got != "engine down" {
		t.Fatalf("AttachedMessage() = %q, %v", got, ok)
	}
}

func TestUserMessageFallsBackToErrorText(t *testing.T) {
	err := errors.New("decode geo_locations: not an array")
	if _, ok := AttachedMessage(err); ok {
		t.Fatalf("expected no attached message")
	}
	if got := UserMessage(err); got != err.Error() {
		t.Fatalf("UserMessage() = %q", got)
	}
	if WithMessage(nil, "x") != nil {
		t.Fatalf("WithMessage(nil) must stay nil")
	}
}
