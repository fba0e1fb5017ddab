package huggingface

import (
	"testing"
	"time"
)

func TestNewHuggingFaceProviderClientTimeout(t *testing.T) {
	p := NewHuggingFaceProvider("key", "", "meta-llama/Llama-3.1-8B-Instruct")

	const webhookDeadline = 60 * time.Second
	if p.client.Timeout <= 0 {
		t.Fatal("client has no timeout; a hung model call would block forever")
	}
	if p.client.Timeout >= webhookDeadline {
		t.Errorf("client timeout %s is not below the %s webhook delivery window", p.client.Timeout, webhookDeadline)
	}
}
