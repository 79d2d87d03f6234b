package contextstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shannon-ai/shannon/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "context.db")
	st, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAppendAndGet(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	for i, content := range []string{"hi", "how are you", "doing fine"} {
		_, err := st.Append(ctx, model.ContextMessage{
			Platform: "discord", Channel: "general", Role: model.RoleUser,
			Content: content, Timestamp: int64(i), TokenEstimate: 2,
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	msgs, err := st.Get(ctx, "discord", "general", 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "hi" || msgs[2].Content != "doing fine" {
		t.Fatalf("unexpected order: %+v", msgs)
	}
}

func TestGetLimitReturnsMostRecentInOrder(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	for i := 0; i < 5; i++ {
		st.Append(ctx, model.ContextMessage{Platform: "p", Channel: "c", Role: model.RoleUser, Content: string(rune('a' + i)), Timestamp: int64(i)})
	}
	msgs, err := st.Get(ctx, "p", "c", 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "d" || msgs[1].Content != "e" {
		t.Fatalf("unexpected limited result: %+v", msgs)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	st.Append(ctx, model.ContextMessage{Platform: "p", Channel: "c", Role: model.RoleUser, Content: "x", Timestamp: 1})
	if err := st.Clear(ctx, "p", "c"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	msgs, err := st.Get(ctx, "p", "c", 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty channel after clear, got %d", len(msgs))
	}
}

type fakeSummarizer struct {
	calls int
	got   []model.ContextMessage
}

func (f *fakeSummarizer) Summarize(ctx context.Context, messages []model.ContextMessage) (string, error) {
	f.calls++
	f.got = messages
	return "condensed", nil
}

func TestMaybeSummarizeCollapsesOldestHalf(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	for i := 0; i < 10; i++ {
		st.Append(ctx, model.ContextMessage{Platform: "p", Channel: "c", Role: model.RoleUser, Content: "m", Timestamp: int64(i), TokenEstimate: 10})
	}

	fs := &fakeSummarizer{}
	did, err := st.MaybeSummarize(ctx, "p", "c", 5, 0, 0, fs)
	if err != nil {
		t.Fatalf("MaybeSummarize: %v", err)
	}
	if !did {
		t.Fatalf("expected summarization to trigger past maxMessages")
	}
	if fs.calls != 1 || len(fs.got) != 5 {
		t.Fatalf("expected summarizer called with 5 oldest messages, got %d calls, %d messages", fs.calls, len(fs.got))
	}

	msgs, err := st.Get(ctx, "p", "c", 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(msgs) != 6 {
		t.Fatalf("expected 5 remaining + 1 summary row = 6, got %d", len(msgs))
	}
	if msgs[0].Role != model.RoleSystem || msgs[0].Content != "condensed" {
		t.Fatalf("expected summary row first, got %+v", msgs[0])
	}
}

func TestMaybeSummarizeNoopBelowThreshold(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	st.Append(ctx, model.ContextMessage{Platform: "p", Channel: "c", Role: model.RoleUser, Content: "m", Timestamp: 1, TokenEstimate: 1})

	fs := &fakeSummarizer{}
	did, err := st.MaybeSummarize(ctx, "p", "c", 200, 0.7, 100000, fs)
	if err != nil {
		t.Fatalf("MaybeSummarize: %v", err)
	}
	if did || fs.calls != 0 {
		t.Fatalf("expected no-op below threshold")
	}
}

func TestForceSummarizeIgnoresThresholds(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	st.Append(ctx, model.ContextMessage{Platform: "p", Channel: "c", Role: model.RoleUser, Content: "a", Timestamp: 1, TokenEstimate: 1})
	st.Append(ctx, model.ContextMessage{Platform: "p", Channel: "c", Role: model.RoleUser, Content: "b", Timestamp: 2, TokenEstimate: 1})

	fs := &fakeSummarizer{}
	did, err := st.ForceSummarize(ctx, "p", "c", fs)
	if err != nil {
		t.Fatalf("ForceSummarize: %v", err)
	}
	if !did || fs.calls != 1 {
		t.Fatalf("expected ForceSummarize to collapse regardless of size, got did=%v calls=%d", did, fs.calls)
	}

	msgs, err := st.Get(ctx, "p", "c", 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != model.RoleSystem || msgs[1].Content != "b" {
		t.Fatalf("expected the older message collapsed into one summary row ahead of the newer one, got %+v", msgs)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	st.Append(ctx, model.ContextMessage{Platform: "p", Channel: "c", Role: model.RoleUser, Content: "a", Timestamp: 5, TokenEstimate: 3})
	st.Append(ctx, model.ContextMessage{Platform: "p", Channel: "c", Role: model.RoleUser, Content: "b", Timestamp: 9, TokenEstimate: 4})

	st2, err := st.Stats(ctx, "p", "c")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st2.MessageCount != 2 || st2.TotalTokens != 7 || st2.OldestTimestamp != 5 || st2.NewestTimestamp != 9 {
		t.Fatalf("unexpected stats: %+v", st2)
	}
}
