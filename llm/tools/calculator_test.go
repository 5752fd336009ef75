package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr string
		want string
	}{
		{"(42*7)/3", "98.0"},
		{"2+3*4", "14"},
		{"10/4", "2.5"},
		{"2**10", "1024"},
		{"2**-1", "0.5"},
		{"-2**2", "-4"},
		{"7//2", "3"},
		{"-7//2", "-4"},
		{"-7%3", "2"},
		{"7.5%2", "1.5"},
		{"sqrt(16)", "4.0"},
		{"round(2.5)", "2"},
		{"round(3.14159, 2)", "3.14"},
		{"max(1, 2.5, 2)", "2.5"},
		{"min(3, 1)", "1"},
		{"abs(-3)", "3"},
		{"0.1+0.2", "0.30000000000000004"},
		{"1e20*10", "1e+21"},
		{"0.00001*1", "1e-05"},
		{" ( 1 + 2 ) * 3 ", "9"},
		{"9223372036854775807+1", "9223372036854775808"},
		{"-9223372036854775808-1", "-9223372036854775809"},
		{"3000000000*4000000000", "12000000000000000000"},
		{"3**35", "50031545098999707"},
		{"2**64//3", "6148914691236517205"},
		{"-(2**64)%7", "5"},
		{"abs(-2**70)", "1180591620717411303424"},
		{"max(2**63, 2**63+1)", "9223372036854775809"},
		{"round(2.675, 2)", "2.67"},
		{"round(0.125, 2)", "0.12"},
		{"round(1250, -2)", "1200"},
		{"round(1350, -2)", "1400"},
		{"round(1e20)", "100000000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, Calculate(tt.expr))
		})
	}
}

func TestCalculate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr string
		want string
	}{
		{"", "Invalid expression"},
		{"2;3", "Invalid expression"},
		{"__import__('os')", "Invalid expression"},
		{"1/0", "Calculation error: division by zero"},
		{"foo(1)", "Calculation error: name 'foo' is not defined"},
		{"x + 1", "Calculation error: name 'x' is not defined"},
		{"sqrt(-1)", "Calculation error: math domain error"},
		{"2 +", "Calculation error: unexpected end of expression"},
		{"(1 + 2", "Calculation error: expected closing parenthesis"},
		{"2**100000", "Calculation error: integer result too large"},
		{"round(1e308*10)", "Calculation error: cannot convert float infinity to integer"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, Calculate(tt.expr))
		})
	}
}

func TestCalculatorTool(t *testing.T) {
	t.Parallel()

	tool := NewCalculatorTool()
	assert.Equal(t, ToolCalculator, tool.Name())

	out, err := tool.Func(context.Background(), json.RawMessage(`{"expression":"6*7"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `"42"`, string(out))

	out, err = tool.Func(context.Background(), json.RawMessage(`not json`))
	require.NoError(t, err)
	assert.JSONEq(t, `"Invalid expression"`, string(out))
}
