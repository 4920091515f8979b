package svt

import "fmt"

// OutOfRangeError is returned for coordinates or indices outside their domain
type OutOfRangeError struct {
	What  string
	Value float64
	Min   float64
	Max   float64
	// Level is set for column and row errors
	Level int
}

func (e *OutOfRangeError) Error() string {
	switch e.What {
	case "column", "row":
		return fmt.Sprintf("%s %v out of range [%v, %v] for level %d", e.What, e.Value, e.Min, e.Max, e.Level)
	default:
		return fmt.Sprintf("%s %v out of range [%v, %v]", e.What, e.Value, e.Min, e.Max)
	}
}
