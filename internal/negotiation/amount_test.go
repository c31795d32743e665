package negotiation

import "testing"

func TestAmountStepperSnapsBounds(t *testing.T) {
	stepper := NewAmountStepper(2.80, 5.25)
	if stepper.Min != 3.00 {
		t.Errorf("min: got %.2f, want 3.00", stepper.Min)
	}
	if stepper.Max != 5.00 {
		t.Errorf("max: got %.2f, want 5.00", stepper.Max)
	}
}

func TestAmountStepperStepsWithinBounds(t *testing.T) {
	stepper := NewAmountStepper(2.80, 5.25)

	tests := []struct {
		name    string
		op      func(float64) float64
		current float64
		want    float64
	}{
		{"decrease from 3.50", stepper.Decrease, 3.50, 3.00},
		{"decrease from 3.00 stays at min", stepper.Decrease, 3.00, 3.00},
		{"increase from 4.50", stepper.Increase, 4.50, 5.00},
		{"increase from 5.00 stays at max", stepper.Increase, 5.00, 5.00},
		{"increase from unsnapped 3.20", stepper.Increase, 3.20, 3.50},
		{"decrease from unsnapped 3.20", stepper.Decrease, 3.20, 3.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(tt.current); got != tt.want {
				t.Errorf("got %.2f, want %.2f", got, tt.want)
			}
		})
	}
}

func TestAmountStepperInvertedBounds(t *testing.T) {
	// Узкий диапазон без целой половины схлопывается в одну точку
	stepper := NewAmountStepper(3.10, 3.20)
	if stepper.Min != stepper.Max {
		t.Errorf("expected collapsed range, got [%.2f, %.2f]", stepper.Min, stepper.Max)
	}
}

func TestRound2(t *testing.T) {
	if got := Round2(2.456); got != 2.46 {
		t.Errorf("got %v, want 2.46", got)
	}
	if got := Round2(3.0); got != 3.0 {
		t.Errorf("got %v, want 3.0", got)
	}
}
