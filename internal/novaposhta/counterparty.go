package novaposhta

import (
	"context"
	"fmt"
)

type refItem struct {
	Ref string `json:"Ref"`
}

func firstRef(method string, items []refItem) (string, error) {
	if len(items) == 0 || items[0].Ref == "" {
		return "", &APIError{Method: method, Messages: []string{"empty response data"}}
	}
	return items[0].Ref, nil
}

// CreateCounterparty registers a private-person recipient and returns its
// ref. Each call creates a new record upstream.
func (c *Client) CreateCounterparty(ctx context.Context, firstName, lastName, email, phone string) (string, error) {
	if firstName == "" || lastName == "" || phone == "" {
		return "", fmt.Errorf("%w: counterparty needs first name, last name and phone", ErrInvalidArgument)
	}

	props := map[string]string{
		"FirstName":            firstName,
		"LastName":             lastName,
		"MiddleName":           "",
		"Email":                email,
		"Phone":                phone,
		"CounterpartyType":     "PrivatePerson",
		"CounterpartyProperty": "Recipient",
	}

	var items []refItem
	if err := c.call(ctx, "CounterpartyGeneral", "save", props, &items); err != nil {
		return "", err
	}
	return firstRef("CounterpartyGeneral.save", items)
}

// CreateCounterpartyContact adds a contact person to an existing
// counterparty and returns the contact ref.
func (c *Client) CreateCounterpartyContact(ctx context.Context, counterpartyRef, firstName, lastName, phone string) (string, error) {
	if counterpartyRef == "" {
		return "", fmt.Errorf("%w: counterparty reference is required", ErrInvalidArgument)
	}

	props := map[string]string{
		"CounterpartyRef": counterpartyRef,
		"FirstName":       firstName,
		"LastName":        lastName,
		"MiddleName":      "",
		"Phone":           phone,
	}

	var items []refItem
	if err := c.call(ctx, "ContactPerson", "save", props, &items); err != nil {
		return "", err
	}
	return firstRef("ContactPerson.save", items)
}
