// Package person provides the Person entity used by the sample service.
package person

import (
	"github.com/shopspring/decimal"

	"txkit/internal/core/apperror"
	"txkit/internal/core/id"
)

// Table is the database table holding persons.
const Table = "person"

// Person is a named individual with an age and a salary.
type Person struct {
	ID     id.ID           `db:"id" json:"id"`
	Name   string          `db:"name" json:"name"`
	Age    int             `db:"age" json:"age"`
	Salary decimal.Decimal `db:"salary" json:"salary"`
}

// New creates a Person with a fresh id.
func New(name string, age int, salary decimal.Decimal) *Person {
	return &Person{
		ID:     id.New(),
		Name:   name,
		Age:    age,
		Salary: salary,
	}
}

// Validate checks required fields and ranges.
func (p *Person) Validate() error {
	if p.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if p.Age < 0 {
		return apperror.NewValidation("age must not be negative").
			WithDetail("field", "age").
			WithDetail("value", p.Age)
	}
	if p.Salary.IsNegative() {
		return apperror.NewValidation("salary must not be negative").
			WithDetail("field", "salary")
	}
	return nil
}
