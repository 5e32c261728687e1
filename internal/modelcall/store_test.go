package modelcall

import (
	"testing"
)

func TestMemoryStore_CreateDefaults(t *testing.T) {
	s := NewMemoryStore()

	id, err := s.Create(Record{PostID: 7, FirstSegmentSeq: 1, LastSegmentSeq: 3, ModelName: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty id")
	}

	rec, ok := s.Get(id)
	if !ok {
		t.Fatal("expected the record to exist")
	}
	if rec.Status != StatusCreated {
		t.Errorf("expected created status, got %q", rec.Status)
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
	if rec.PostID != 7 || rec.ModelName != "gpt-4o-mini" {
		t.Errorf("unexpected record contents: %+v", rec)
	}
}

func TestMemoryStore_UpdateTransitions(t *testing.T) {
	s := NewMemoryStore()
	id, _ := s.Create(Record{PostID: 1, ModelName: "m"})

	err := s.Update(id, Update{
		Status:           StatusReceivedResponse,
		Response:         "raw model text",
		PromptTokens:     10,
		CompletionTokens: 5,
		TotalTokens:      15,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, _ := s.Get(id)
	if rec.Status != StatusReceivedResponse {
		t.Errorf("expected received_response, got %q", rec.Status)
	}
	if rec.Response != "raw model text" {
		t.Errorf("expected response stored, got %q", rec.Response)
	}
	if rec.RetryAttempts != 1 {
		t.Errorf("expected retry_attempts 1, got %d", rec.RetryAttempts)
	}
	if rec.TotalTokens != 15 {
		t.Errorf("expected total tokens 15, got %d", rec.TotalTokens)
	}

	// Terminal update without usage keeps what received_response captured.
	if err := s.Update(id, Update{Status: StatusSuccess, Response: "raw model text"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, _ = s.Get(id)
	if rec.Status != StatusSuccess {
		t.Errorf("expected success, got %q", rec.Status)
	}
	if rec.PromptTokens != 10 || rec.CompletionTokens != 5 || rec.TotalTokens != 15 {
		t.Errorf("expected usage preserved, got %d/%d/%d", rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens)
	}
}

func TestMemoryStore_UpdateUnknownID(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Update("missing", Update{Status: StatusSuccess}); err == nil {
		t.Fatal("expected an error for an unknown id")
	}
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	for i := int64(1); i <= 3; i++ {
		if _, err := s.Create(Record{PostID: i, ModelName: "m"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	records := s.List()
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].PostID != 3 || records[2].PostID != 1 {
		t.Errorf("expected newest first, got order %d, %d, %d",
			records[0].PostID, records[1].PostID, records[2].PostID)
	}
}

func TestRecord_Summary(t *testing.T) {
	rec := Record{
		ID:            "abc",
		PostID:        9,
		ModelName:     "m",
		Status:        StatusSuccess,
		Prompt:        "long prompt text",
		Response:      "long response text",
		RetryAttempts: 1,
		TotalTokens:   33,
	}

	sum := rec.Summary()
	if sum.ID != "abc" || sum.PostID != 9 || sum.Status != StatusSuccess || sum.TotalTokens != 33 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}
