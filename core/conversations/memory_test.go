package conversations

import (
	"errors"
	"fmt"
	"testing"

	"github.com/koscakluka/ema-live/core/transcript"
)

func TestMemoryRendersUtterancesInOrder(t *testing.T) {
	memory := NewMemory()
	memory.Record(transcript.Utterance{Role: transcript.RoleUser, Text: "hi"})
	memory.Record(transcript.Utterance{Role: transcript.RoleModel, Text: "Hello there"})

	expected := "User: hi\nModel: Hello there"
	if got := memory.String(); got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}

func TestMemoryKeepsOnlyMostRecentUtterances(t *testing.T) {
	memory := NewMemory(WithMaxUtterances(3))
	for i := range 5 {
		memory.Record(transcript.Utterance{Role: transcript.RoleUser, Text: fmt.Sprint(i)})
	}

	history := memory.History()
	if len(history) != 3 {
		t.Fatalf("expected 3 utterances, got %d", len(history))
	}
	if history[0].Text != "2" || history[2].Text != "4" {
		t.Fatalf("expected oldest utterances to be dropped, got %v", history)
	}
}

func TestMemoryRValuesIteratesNewestFirst(t *testing.T) {
	memory := NewMemory()
	for _, text := range []string{"a", "b", "c"} {
		memory.Record(transcript.Utterance{Role: transcript.RoleModel, Text: text})
	}

	var got []string
	for utterance := range memory.RValues {
		got = append(got, utterance.Text)
		if len(got) == 2 {
			break
		}
	}
	if len(got) != 2 || got[0] != "c" || got[1] != "b" {
		t.Fatalf("expected [c b], got %v", got)
	}
}

func TestMemoryClear(t *testing.T) {
	memory := NewMemory()
	memory.Record(transcript.Utterance{Role: transcript.RoleUser, Text: "hi"})
	memory.Clear()

	if memory.Len() != 0 || memory.String() != "" {
		t.Fatalf("expected empty memory after clear")
	}
}

func TestMultiSinkRecordsToAllAndJoinsErrors(t *testing.T) {
	first := NewMemory()
	failing := failingSink{err: errors.New("publish failed")}
	second := NewMemory()

	err := MultiSink{first, failing, nil, second}.Record(transcript.Utterance{Role: transcript.RoleUser, Text: "hi"})

	if !errors.Is(err, failing.err) {
		t.Fatalf("expected sink error to be returned, got %v", err)
	}
	if first.Len() != 1 || second.Len() != 1 {
		t.Fatalf("expected every sink to record despite the failure")
	}
}

type failingSink struct{ err error }

func (s failingSink) Record(transcript.Utterance) error { return s.err }
