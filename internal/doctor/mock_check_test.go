package doctor

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCheck is a testify mock of Check with a typed expecter.
type MockCheck struct {
	mock.Mock
}

// NewMockCheck creates a MockCheck whose expectations are asserted at cleanup.
func NewMockCheck(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockCheck {
	m := &MockCheck{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCheck) EXPECT() *MockCheckExpecter {
	return &MockCheckExpecter{mock: &m.Mock}
}

func (m *MockCheck) Name() string {
	return m.Called().String(0)
}

func (m *MockCheck) Category() string {
	return m.Called().String(0)
}

func (m *MockCheck) Run(ctx context.Context) *CheckResult {
	ret := m.Called(ctx)
	r, _ := ret.Get(0).(*CheckResult)
	return r
}

type MockCheckExpecter struct {
	mock *mock.Mock
}

func (e *MockCheckExpecter) Name() *mock.Call {
	return e.mock.On("Name")
}

func (e *MockCheckExpecter) Category() *mock.Call {
	return e.mock.On("Category")
}

func (e *MockCheckExpecter) Run(ctx any) *mock.Call {
	return e.mock.On("Run", ctx)
}

// fixableCheck is a Check that also implements Fixer.
type fixableCheck struct {
	*MockCheck
	canFix bool
}

func (f *fixableCheck) CanFix() bool      { return f.canFix }
func (f *fixableCheck) Fix() []FixResult { return nil }
