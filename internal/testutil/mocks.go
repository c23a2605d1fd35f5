package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/kyleking/askdb/internal/llm"
)

// MockModel implements llm.Service with testify expectations
type MockModel struct {
	mock.Mock
}

// NewMockModel creates a model double; queue answers with Reply or Fail
func NewMockModel() *MockModel {
	return &MockModel{}
}

// Complete records the call and returns the next queued answer
func (m *MockModel) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	args := m.Called(ctx, req)

	resp, _ := args.Get(0).(*llm.CompletionResponse)

	return resp, args.Error(1)
}

// Configure records the call
func (m *MockModel) Configure(config llm.Config) error {
	return m.Called(config).Error(0)
}

// Reply queues one successful completion per text, answered in order
func (m *MockModel) Reply(texts ...string) *MockModel {
	for _, text := range texts {
		m.On("Complete", mock.Anything, mock.Anything).
			Return(&llm.CompletionResponse{Text: text, Provider: "mock", Model: "mock"}, nil).
			Once()
	}

	return m
}

// Fail queues one failing completion
func (m *MockModel) Fail(err error) *MockModel {
	m.On("Complete", mock.Anything, mock.Anything).Return(nil, err).Once()
	return m
}

// Prompts returns the prompts sent so far, in call order
func (m *MockModel) Prompts() []string {
	var prompts []string

	for _, call := range m.Calls {
		if call.Method != "Complete" {
			continue
		}

		if req, ok := call.Arguments.Get(1).(llm.CompletionRequest); ok {
			prompts = append(prompts, req.Prompt)
		}
	}

	return prompts
}
