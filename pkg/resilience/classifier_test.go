package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantCategory  Category
		wantRetryable bool
	}{
		{
			name:          "logic error asks the user",
			err:           &LogicError{Reason: "ambiguous date"},
			wantCategory:  CategoryLogic,
			wantRetryable: false,
		},
		{
			name:          "context deadline is transient",
			err:           context.DeadlineExceeded,
			wantCategory:  CategoryTransient,
			wantRetryable: true,
		},
		{
			name:          "rate limit is transient",
			err:           NewDependencyError("primary-ai", KindRateLimit, 429, errors.New("slow down")),
			wantCategory:  CategoryTransient,
			wantRetryable: true,
		},
		{
			name:          "network failure is transient",
			err:           NewDependencyError("ocr-service", KindNetwork, 0, errors.New("connection refused")),
			wantCategory:  CategoryTransient,
			wantRetryable: true,
		},
		{
			name:          "auth failure is permanent",
			err:           NewDependencyError("primary-ai", KindAuth, 401, errors.New("bad key")),
			wantCategory:  CategoryPermanent,
			wantRetryable: false,
		},
		{
			name:          "unsupported format is permanent",
			err:           NewDependencyError("pdf-text-service", KindUnsupported, 0, errors.New("not a pdf")),
			wantCategory:  CategoryPermanent,
			wantRetryable: false,
		},
		{
			name:          "storage failure is system",
			err:           NewDependencyError("postgres", KindStorage, 0, errors.New("disk full")),
			wantCategory:  CategorySystem,
			wantRetryable: false,
		},
		{
			name:          "unknown kind falls back to status code 503",
			err:           NewDependencyError("webhook", KindUnknown, 503, errors.New("service restarting")),
			wantCategory:  CategoryTransient,
			wantRetryable: true,
		},
		{
			name:          "unknown kind falls back to status code 404",
			err:           NewDependencyError("telegram", KindUnknown, 404, errors.New("gone")),
			wantCategory:  CategoryPermanent,
			wantRetryable: false,
		},
		{
			name:          "bare error gets cautious transient treatment",
			err:           errors.New("something odd"),
			wantCategory:  CategoryTransient,
			wantRetryable: true,
		},
		{
			name:          "wrapped dependency error still classifies",
			err:           fmt.Errorf("extract: %w", NewDependencyError("primary-ai", KindTimeout, 0, errors.New("deadline"))),
			wantCategory:  CategoryTransient,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)

			if got.Category != tt.wantCategory {
				t.Errorf("Category = %s, want %s", got.Category, tt.wantCategory)
			}
			if got.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.wantRetryable)
			}
			if got.UserMessage == "" {
				t.Error("UserMessage is empty, every classification should carry one")
			}
		})
	}
}

func TestClassificationIgnoresMessageText(t *testing.T) {
	// Two errors with identical text but different structure must land
	// in different categories.
	transient := NewDependencyError("svc", KindNetwork, 0, errors.New("failed"))
	permanent := NewDependencyError("svc", KindBadRequest, 0, errors.New("failed"))

	if Classify(transient).Category == Classify(permanent).Category {
		t.Error("classification should depend on structure, not message text")
	}
}

func TestRetryableShorthand(t *testing.T) {
	if !Retryable(NewDependencyError("svc", KindUnavailable, 0, errors.New("down"))) {
		t.Error("unavailable dependency should be retryable")
	}
	if Retryable(&LogicError{Reason: "nonsense input"}) {
		t.Error("logic errors should never be retryable")
	}
}
