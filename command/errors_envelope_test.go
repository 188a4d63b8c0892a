package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-webhook-engine/core"
)

func TestIngestWebhookMessage_ValidateReturnsRichError(t *testing.T) {
	err := (IngestWebhookMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.EngineErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.EngineErrorBadInput, rich.TextCode)
	}
}

func TestIngestWebhookCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *IngestWebhookCommand
	err := cmd.Execute(context.Background(), IngestWebhookMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.EngineErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.EngineErrorInternal, rich.TextCode)
	}
}
