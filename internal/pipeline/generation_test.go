package pipeline

import (
	"testing"
	"time"
)

type fakeLLM struct {
	fragments []string
	fail      bool
}

func (f *fakeLLM) Init(string) bool { return true }
func (f *fakeLLM) GenerateStream(prompt string, onChunk func(string)) bool {
	if f.fail {
		return false
	}
	for _, frag := range f.fragments {
		onChunk(frag)
	}
	return true
}
func (f *fakeLLM) Shutdown() {}

func newTestGenerationStage(llm LLM) (*GenerationStage, *Queue[TextMessage], *Queue[TextMessage]) {
	textQ := NewQueue[TextMessage](4, nil)
	respQ := NewQueue[TextMessage](4, nil)
	cfg := DefaultGenerationConfig()
	cfg.PopTimeout = 20 * time.Millisecond
	return NewGenerationStage(cfg, llm, textQ, respQ, nil), textQ, respQ
}

func TestGenerationStageChunksStreamedOutputToRespQ(t *testing.T) {
	llm := &fakeLLM{fragments: []string{"one two ", "three. "}}
	stage, textQ, respQ := newTestGenerationStage(llm)

	textQ.Push(NewTextMessage("prompt"), 0)
	stage.Process()

	var texts []string
	for {
		msg, res := respQ.TryPop()
		if res != PopSuccess {
			break
		}
		texts = append(texts, msg.Text)
	}

	if len(texts) == 0 {
		t.Fatal("expected at least one chunk pushed to resp_q")
	}
}

func TestGenerationStageEmptyTextMessageSkipped(t *testing.T) {
	llm := &fakeLLM{fragments: []string{"should not run"}}
	stage, textQ, respQ := newTestGenerationStage(llm)

	textQ.Push(TextMessage{Text: ""}, 0)
	stage.Process()

	if _, res := respQ.TryPop(); res != PopEmpty {
		t.Fatal("expected no generation for an empty text message")
	}
}

func TestGenerationStagePopTimeoutIsANoOp(t *testing.T) {
	llm := &fakeLLM{}
	stage, _, respQ := newTestGenerationStage(llm)
	stage.Process() // text_q empty, must return promptly without pushing anything

	if _, res := respQ.TryPop(); res != PopEmpty {
		t.Fatal("expected nothing pushed when text_q is empty")
	}
}

func TestGenerationStageHandleControlFlushesBothQueues(t *testing.T) {
	llm := &fakeLLM{}
	stage, textQ, respQ := newTestGenerationStage(llm)

	textQ.Push(NewTextMessage("pending prompt"), 0)
	respQ.Push(NewTextMessage("pending reply"), 0)

	if !stage.HandleControl(NewControlMessage(ControlInterrupt)) {
		t.Fatal("expected INTERRUPT to be handled")
	}
	if textQ.Size() != 0 || respQ.Size() != 0 {
		t.Fatalf("expected both queues flushed: text=%d resp=%d", textQ.Size(), respQ.Size())
	}
}

// abandonLLM emits two fragments from a single GenerateStream call and
// flips abandon between them, simulating an INTERRUPT landing mid-stream.
type abandonLLM struct {
	onFirst func()
}

func (a *abandonLLM) Init(string) bool { return true }
func (a *abandonLLM) Shutdown()        {}
func (a *abandonLLM) GenerateStream(prompt string, onChunk func(string)) bool {
	onChunk("one two three four ") // reaches K=4, flushes before abandon is set
	if a.onFirst != nil {
		a.onFirst()
	}
	onChunk("five six seven eight ") // would also flush, but must be suppressed
	return true
}

func TestGenerationStageAbandonSuppressesFurtherChunksAfterInterrupt(t *testing.T) {
	llm := &abandonLLM{}
	stage, textQ, respQ := newTestGenerationStage(llm)
	llm.onFirst = func() { stage.abandon.Store(true) }

	textQ.Push(NewTextMessage("prompt"), 0)
	stage.Process()

	var seen []string
	for {
		msg, res := respQ.TryPop()
		if res != PopSuccess {
			break
		}
		seen = append(seen, msg.Text)
	}
	if len(seen) != 1 || seen[0] != "one two three four " {
		t.Fatalf("expected exactly the pre-abandon chunk, got %v", seen)
	}
}
