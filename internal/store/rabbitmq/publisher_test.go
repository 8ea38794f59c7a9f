package rabbitmq

import "testing"

func TestMainQueueArgs_DeadLettersIntoOwnDLQ(t *testing.T) {
	args := MainQueueArgs("session_events")

	if got := args["x-dead-letter-exchange"]; got != "" {
		t.Fatalf("dead letter exchange = %v, want default exchange", got)
	}
	if got := args["x-dead-letter-routing-key"]; got != "session_events.dlq" {
		t.Fatalf("dead letter routing key = %v, want session_events.dlq", got)
	}
}
