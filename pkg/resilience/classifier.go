package resilience

import (
	"context"
	"errors"
	"net/http"
)

// Category groups failures by how the orchestration layer should react.
type Category string

const (
	CategoryTransient Category = "TRANSIENT" // retry locally
	CategoryPermanent Category = "PERMANENT" // skip retry, fall back or ask user
	CategoryLogic     Category = "LOGIC"     // ask user, no retry, no fallback
	CategorySystem    Category = "SYSTEM"    // degrade + alert operator
)

// Severity maps to the log level the failure deserves.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Classification is the recovery recipe for a single failure.
type Classification struct {
	Category    Category
	Severity    Severity
	Retryable   bool
	MaxRetries  int
	UserMessage string
}

// Classify derives a recovery strategy from the structural shape of an
// error: its concrete type, Kind and embedded status code. Message
// text is deliberately never inspected so upgrades of a dependency SDK
// cannot silently change retry behavior.
func Classify(err error) Classification {
	var logicErr *LogicError
	if errors.As(err, &logicErr) {
		return Classification{
			Category:    CategoryLogic,
			Severity:    SeverityLow,
			Retryable:   false,
			UserMessage: "I'm not sure I understood. Could you clarify what you need?",
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Classification{
			Category:    CategoryTransient,
			Severity:    SeverityMedium,
			Retryable:   true,
			MaxRetries:  3,
			UserMessage: "That took longer than expected. Let me try again...",
		}
	}

	var depErr *DependencyError
	if errors.As(err, &depErr) {
		return classifyDependency(depErr)
	}

	// Unrecognized error shapes get a cautious transient treatment.
	return Classification{
		Category:    CategoryTransient,
		Severity:    SeverityMedium,
		Retryable:   true,
		MaxRetries:  2,
		UserMessage: "I'm working on it. One moment please...",
	}
}

func classifyDependency(err *DependencyError) Classification {
	kind := err.Kind
	if kind == KindUnknown || kind == "" {
		kind = kindFromStatus(err.StatusCode)
	}

	switch kind {
	case KindRateLimit:
		return Classification{
			Category:    CategoryTransient,
			Severity:    SeverityMedium,
			Retryable:   true,
			MaxRetries:  5,
			UserMessage: "I'm experiencing a brief delay. Let me try again...",
		}
	case KindTimeout, KindNetwork:
		return Classification{
			Category:    CategoryTransient,
			Severity:    SeverityMedium,
			Retryable:   true,
			MaxRetries:  3,
			UserMessage: "Connection hiccup! Retrying...",
		}
	case KindUnavailable:
		return Classification{
			Category:    CategoryTransient,
			Severity:    SeverityHigh,
			Retryable:   true,
			MaxRetries:  5,
			UserMessage: "The service is briefly unavailable. Retrying...",
		}
	case KindAuth, KindBadRequest, KindNotFound:
		return Classification{
			Category:    CategoryPermanent,
			Severity:    SeverityHigh,
			Retryable:   false,
			UserMessage: "I'm having trouble processing that. Could you rephrase?",
		}
	case KindUnsupported:
		return Classification{
			Category:    CategoryPermanent,
			Severity:    SeverityHigh,
			Retryable:   false,
			UserMessage: "I couldn't read that document. Could you try a clearer image or PDF?",
		}
	case KindStorage, KindExhaustedResource:
		return Classification{
			Category:    CategorySystem,
			Severity:    SeverityCritical,
			Retryable:   false,
			UserMessage: "I'm having trouble saving your data. Your current session is safe.",
		}
	}

	return Classification{
		Category:    CategoryTransient,
		Severity:    SeverityMedium,
		Retryable:   true,
		MaxRetries:  2,
		UserMessage: "I'm working on it. One moment please...",
	}
}

func kindFromStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway:
		return KindUnavailable
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnsupportedMediaType:
		return KindUnsupported
	case status >= 500:
		return KindUnavailable
	case status >= 400:
		return KindBadRequest
	}
	return KindUnknown
}

// Retryable reports whether the error classifies as safe to retry.
// Shorthand used as the default retry predicate.
func Retryable(err error) bool {
	return Classify(err).Retryable
}
