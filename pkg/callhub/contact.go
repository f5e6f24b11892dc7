package callhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/dialops/callhub-client/pkg/pagination"
	"github.com/dialops/callhub-client/pkg/remote"
)

const contactsPath = "/v1/contacts/"

// Contact maps CallHub field names to values. Every value is a string at
// the wire boundary. Field names must match the account schema exactly;
// unknown names fail validation instead of being dropped.
type Contact map[string]string

// collectFieldNames returns the sorted union of field names used across
// contacts.
func collectFieldNames(contacts []Contact) []string {
	seen := make(map[string]struct{})
	for _, contact := range contacts {
		for name := range contact {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateContact validates the contact's field names against the account
// schema and creates it. Returns the created record as CallHub sent it.
func (c *Client) CreateContact(ctx context.Context, contact Contact) (json.RawMessage, error) {
	if len(contact) == 0 {
		return nil, fmt.Errorf("contact has no fields")
	}

	if _, err := c.resolver.Resolve(ctx, collectFieldNames([]Contact{contact})); err != nil {
		return nil, err
	}

	form := make(url.Values, len(contact))
	for name, value := range contact {
		form.Set(name, value)
	}

	resp, err := c.call(ctx, remote.Descriptor{
		Class:       ClassGeneral,
		Method:      http.MethodPost,
		Path:        contactsPath,
		ContentType: "application/x-www-form-urlencoded",
		Body:        []byte(form.Encode()),
	})
	if err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}

	c.logger.Info().Int("fields", len(contact)).Msg("Contact created")
	return json.RawMessage(resp.Body), nil
}

// Contacts returns an iterator over the account's contacts. limit caps the
// records handed out; 0 walks the whole listing. Each page fetch counts
// against the general rate limit.
func (c *Client) Contacts(limit int) *pagination.Iterator {
	return pagination.NewIterator(c.invoker, c.limits, ClassGeneral, contactsPath, nil, limit)
}

// GetContacts eagerly fetches up to limit contacts; 0 fetches all of them.
func (c *Client) GetContacts(ctx context.Context, limit int) ([]json.RawMessage, error) {
	return pagination.Collect(ctx, c.Contacts(limit))
}
