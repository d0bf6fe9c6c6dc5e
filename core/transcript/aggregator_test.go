package transcript

import "testing"

func TestFlushJoinsFragmentsIntoOneUtterance(t *testing.T) {
	aggregator := NewAggregator()
	for _, fragment := range []string{"Hel", "lo ", "world"} {
		aggregator.Append(RoleModel, fragment)
	}

	utterances := aggregator.Flush()

	if len(utterances) != 1 {
		t.Fatalf("expected exactly 1 utterance, got %d", len(utterances))
	}
	if utterances[0].Role != RoleModel || utterances[0].Text != "Hello world" {
		t.Fatalf("expected model utterance %q, got %+v", "Hello world", utterances[0])
	}
}

func TestFlushEmitsUserBeforeModelAndResets(t *testing.T) {
	aggregator := NewAggregator()
	aggregator.Append(RoleModel, " Sure. ")
	aggregator.Append(RoleUser, " play something ")

	utterances := aggregator.Flush()
	if len(utterances) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(utterances))
	}
	if utterances[0].Role != RoleUser || utterances[0].Text != "play something" {
		t.Fatalf("expected trimmed user utterance first, got %+v", utterances[0])
	}
	if utterances[1].Role != RoleModel || utterances[1].Text != "Sure." {
		t.Fatalf("expected trimmed model utterance second, got %+v", utterances[1])
	}

	if aggregator.Pending(RoleUser) != "" || aggregator.Pending(RoleModel) != "" {
		t.Fatalf("expected buffers to be cleared after flush")
	}
	if again := aggregator.Flush(); len(again) != 0 {
		t.Fatalf("expected no utterances from empty buffers, got %v", again)
	}
}

func TestPendingReturnsRunningText(t *testing.T) {
	aggregator := NewAggregator()
	aggregator.Append(RoleUser, "please ")
	aggregator.Append(RoleUser, "st")

	if got := aggregator.Pending(RoleUser); got != "please st" {
		t.Fatalf("expected running text %q, got %q", "please st", got)
	}
}

func TestWhitespaceOnlyBufferIsNotEmitted(t *testing.T) {
	aggregator := NewAggregator()
	aggregator.Append(RoleModel, "   ")

	if utterances := aggregator.Flush(); len(utterances) != 0 {
		t.Fatalf("expected whitespace only buffer to be skipped, got %v", utterances)
	}
}
