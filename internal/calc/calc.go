// Package calc holds the small functions used to demonstrate unit tests,
// async assertions and spies.
package calc

import (
	"context"
	"fmt"
	"time"
)

// NamesDelay is how long GetNames takes to resolve.
const NamesDelay = 100 * time.Millisecond

// Sum adds a and b.
func Sum(a, b int) int {
	return a + b
}

// Person is a name with an age.
type Person struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// MakePerson builds a Person.
func MakePerson(name string, age int) Person {
	return Person{Name: name, Age: age}
}

// GetNames resolves a fixed list of names after NamesDelay, or fails with the
// context's error if it ends first.
func GetNames(ctx context.Context) ([]string, error) {
	t := time.NewTimer(NamesDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return []string{"harry", "william", "kate"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Multiplier multiplies two numbers.
type Multiplier interface {
	Multiply(a, b int) int
}

// MultiplierFunc adapts a function to Multiplier.
type MultiplierFunc func(a, b int) int

// Multiply calls f.
func (f MultiplierFunc) Multiply(a, b int) int { return f(a, b) }

// Multiply returns a * b.
func Multiply(a, b int) int {
	return a * b
}

// Math is the Multiplier backed by Multiply.
var Math Multiplier = MultiplierFunc(Multiply)

// AnswerMessage formats the product of a and b as computed by m.
func AnswerMessage(m Multiplier, a, b int) string {
	return fmt.Sprintf("The answer is %d", m.Multiply(a, b))
}
