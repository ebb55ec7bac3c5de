package dto

import (
	"github.com/shopspring/decimal"

	"txkit/internal/domain/person"
)

// CreatePersonRequest is the request body for creating a person.
type CreatePersonRequest struct {
	Name   string          `json:"name" binding:"required"`
	Age    int             `json:"age"`
	Salary decimal.Decimal `json:"salary"`
}

// ToEntity converts DTO to domain entity.
func (r *CreatePersonRequest) ToEntity() *person.Person {
	return person.New(r.Name, r.Age, r.Salary)
}

// ImportPersonsRequest is the request body for a bulk import.
type ImportPersonsRequest struct {
	Items []CreatePersonRequest `json:"items" binding:"required,min=1,dive"`
}

// PersonResponse is the response body for a person.
type PersonResponse struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Age    int             `json:"age"`
	Salary decimal.Decimal `json:"salary"`
}

// FromPerson converts domain entity to response DTO.
func FromPerson(p *person.Person) PersonResponse {
	return PersonResponse{
		ID:     p.ID.String(),
		Name:   p.Name,
		Age:    p.Age,
		Salary: p.Salary,
	}
}

// ListResponse is a page of items.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}
