package jobs

import (
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		attempt int
		want    time.Duration
	}{
		{
			name:    "fixed delay is constant",
			policy:  RetryPolicy{MaxAttempts: 3, Backoff: BackoffPolicy{Type: BackoffFixed, BaseDelay: 500 * time.Millisecond}},
			attempt: 3,
			want:    500 * time.Millisecond,
		},
		{
			name:    "exponential first attempt",
			policy:  RetryPolicy{MaxAttempts: 3, Backoff: BackoffPolicy{Type: BackoffExponential, BaseDelay: time.Second}},
			attempt: 1,
			want:    time.Second,
		},
		{
			name:    "exponential second attempt doubles",
			policy:  RetryPolicy{MaxAttempts: 3, Backoff: BackoffPolicy{Type: BackoffExponential, BaseDelay: time.Second}},
			attempt: 2,
			want:    2 * time.Second,
		},
		{
			name:    "exponential fourth attempt",
			policy:  RetryPolicy{MaxAttempts: 5, Backoff: BackoffPolicy{Type: BackoffExponential, BaseDelay: 2 * time.Second}},
			attempt: 4,
			want:    16 * time.Second,
		},
		{
			name:    "attempt below one clamps",
			policy:  RetryPolicy{MaxAttempts: 3, Backoff: BackoffPolicy{Type: BackoffExponential, BaseDelay: time.Second}},
			attempt: 0,
			want:    time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Delay(tt.attempt); got != tt.want {
				t.Fatalf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetryPolicyValidate(t *testing.T) {
	bad := RetryPolicy{MaxAttempts: 2, Backoff: BackoffPolicy{Type: "linear", BaseDelay: time.Second}}
	if err := bad.validate(); err == nil {
		t.Fatal("expected validation error for unsupported backoff type")
	}
}

func TestStateTerminal(t *testing.T) {
	if StateWaiting.Terminal() || StateActive.Terminal() {
		t.Fatal("waiting/active must not be terminal")
	}
	if !StateCompleted.Terminal() || !StateFailed.Terminal() {
		t.Fatal("completed/failed must be terminal")
	}
}

func TestValidateSubmission(t *testing.T) {
	if err := validateSubmission("", "order-created"); err == nil {
		t.Fatal("expected error for missing queue")
	}
	if err := validateSubmission("order-events", "  "); err == nil {
		t.Fatal("expected error for missing kind")
	}
	if err := validateSubmission("order-events", "order-created"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadyScoreOrdersByPriorityThenSequence(t *testing.T) {
	highPrio := readyScore(10, 5)
	lowPrio := readyScore(0, 1)
	if highPrio >= lowPrio {
		t.Fatalf("higher priority must score lower: %v vs %v", highPrio, lowPrio)
	}

	first := readyScore(0, 1)
	second := readyScore(0, 2)
	if first >= second {
		t.Fatalf("earlier submission must score lower: %v vs %v", first, second)
	}
}
