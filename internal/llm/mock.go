package llm

import "context"

// mockContent keeps both boundaries unchanged; useful for demos and smoke
// tests without a gateway.
const mockContent = `{"refined_start_segment_seq": null, "refined_start_phrase": null, "refined_end_segment_seq": null, "refined_end_phrase": null, "start_adjustment_reason": "mock response", "end_adjustment_reason": "mock response"}`

// Mock is a deterministic Client used when USE_MOCK_LLM=true and in tests.
// Zero value returns a canned no-change payload with finish reason "stop".
type Mock struct {
	ModelName    string
	Content      string
	FinishReason string
	Usage        Usage
	Err          error

	// Prompts records every prompt received, for assertions.
	Prompts []string
}

var _ Client = (*Mock)(nil)

// NewMock builds a mock returning the canned payload under the given model
// name ("mock" when empty).
func NewMock(model string) *Mock {
	if model == "" {
		model = "mock"
	}
	return &Mock{ModelName: model}
}

func (m *Mock) Model() string {
	if m.ModelName == "" {
		return "mock"
	}
	return m.ModelName
}

func (m *Mock) Invoke(_ context.Context, prompt string) (Response, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return Response{}, m.Err
	}
	content := m.Content
	if content == "" {
		content = mockContent
	}
	finish := m.FinishReason
	if finish == "" {
		finish = "stop"
	}
	return Response{Content: content, FinishReason: finish, Usage: m.Usage}, nil
}
