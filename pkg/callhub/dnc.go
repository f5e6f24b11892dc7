package callhub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dialops/callhub-client/pkg/batch"
	"github.com/dialops/callhub-client/pkg/pagination"
	"github.com/dialops/callhub-client/pkg/remote"
)

const (
	dncListsPath    = "/v1/dnc_lists/"
	dncContactsPath = "/v1/dnc_contacts/"
)

// DNCMembership is one phone number's entry on a do-not-call list.
type DNCMembership struct {
	// ContactID is the id of the dnc contact record holding the entry.
	ContactID int64

	ListID   int64
	ListName string
	Phone    string
}

// dncListRecord is the wire shape of a dnc list. CallHub identifies records
// by resource URL; the numeric id is its last path segment.
type dncListRecord struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// dncContactRecord is the wire shape of a dnc list entry.
type dncContactRecord struct {
	URL         string `json:"url"`
	DNC         string `json:"dnc"`
	PhoneNumber string `json:"phone_number"`
}

// GetDNCLists returns every do-not-call list as id to name.
func (c *Client) GetDNCLists(ctx context.Context) (map[int64]string, error) {
	records, err := pagination.FetchAll(ctx, c.executor, ClassGeneral, dncListsPath, nil, c.concurrency)
	if err != nil {
		return nil, fmt.Errorf("fetch dnc lists: %w", err)
	}
	decoded, err := pagination.Decode[dncListRecord](records)
	if err != nil {
		return nil, fmt.Errorf("fetch dnc lists: %w", err)
	}

	lists := make(map[int64]string, len(decoded))
	for _, record := range decoded {
		id, err := parseRecordID(record.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch dnc lists: %w", err)
		}
		lists[id] = record.Name
	}
	return lists, nil
}

// GetDNCPhones returns every do-not-call entry grouped by phone number. A
// phone appears once per list it is on.
func (c *Client) GetDNCPhones(ctx context.Context) (map[string][]DNCMembership, error) {
	lists, err := c.GetDNCLists(ctx)
	if err != nil {
		return nil, err
	}

	records, err := pagination.FetchAll(ctx, c.executor, ClassGeneral, dncContactsPath, nil, c.concurrency)
	if err != nil {
		return nil, fmt.Errorf("fetch dnc contacts: %w", err)
	}
	decoded, err := pagination.Decode[dncContactRecord](records)
	if err != nil {
		return nil, fmt.Errorf("fetch dnc contacts: %w", err)
	}

	phones := make(map[string][]DNCMembership)
	for _, record := range decoded {
		contactID, err := parseRecordID(record.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch dnc contacts: %w", err)
		}
		listID, err := parseRecordID(record.DNC)
		if err != nil {
			return nil, fmt.Errorf("fetch dnc contacts: %w", err)
		}
		phones[record.PhoneNumber] = append(phones[record.PhoneNumber], DNCMembership{
			ContactID: contactID,
			ListID:    listID,
			ListName:  lists[listID],
			Phone:     record.PhoneNumber,
		})
	}
	return phones, nil
}

// AddDNC puts each phone number on the given do-not-call list. One request
// is issued per phone through the batch executor; result slots align with
// the phones slice, so a single rejected number never hides the rest.
func (c *Client) AddDNC(ctx context.Context, phones []string, listID int64) (*batch.Result, error) {
	if len(phones) == 0 {
		return nil, fmt.Errorf("no phone numbers given")
	}
	if listID <= 0 {
		return nil, fmt.Errorf("dnc list id is required")
	}

	descs := make([]remote.Descriptor, len(phones))
	for i, phone := range phones {
		form := url.Values{
			"dnc":          []string{c.dncListURL(listID)},
			"phone_number": []string{phone},
		}
		descs[i] = remote.Descriptor{
			Class:       ClassGeneral,
			Method:      http.MethodPost,
			Path:        dncContactsPath,
			ContentType: "application/x-www-form-urlencoded",
			Body:        []byte(form.Encode()),
		}
	}

	result, err := c.executor.Execute(ctx, descs, c.concurrency)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Int64("list_id", listID).
		Int("phones", len(phones)).
		Int("failed", result.Failed()).
		Msg("DNC add complete")
	return result, nil
}

// RemoveDNC takes each phone number off the given do-not-call list. The
// account's entries are fetched first and one delete is issued per match.
// Result slots align with the returned memberships; a phone with no entry
// on the list produces no request.
func (c *Client) RemoveDNC(ctx context.Context, phones []string, listID int64) (*batch.Result, []DNCMembership, error) {
	if len(phones) == 0 {
		return nil, nil, fmt.Errorf("no phone numbers given")
	}
	if listID <= 0 {
		return nil, nil, fmt.Errorf("dnc list id is required")
	}

	entries, err := c.GetDNCPhones(ctx)
	if err != nil {
		return nil, nil, err
	}

	var matched []DNCMembership
	for _, phone := range phones {
		for _, membership := range entries[phone] {
			if membership.ListID == listID {
				matched = append(matched, membership)
			}
		}
	}
	if len(matched) == 0 {
		return &batch.Result{}, nil, nil
	}

	descs := make([]remote.Descriptor, len(matched))
	for i, membership := range matched {
		descs[i] = remote.Descriptor{
			Class:  ClassGeneral,
			Method: http.MethodDelete,
			Path:   fmt.Sprintf("%s%d/", dncContactsPath, membership.ContactID),
		}
	}

	result, err := c.executor.Execute(ctx, descs, c.concurrency)
	if err != nil {
		return nil, matched, err
	}

	c.logger.Info().
		Int64("list_id", listID).
		Int("removed", result.Succeeded()).
		Int("failed", result.Failed()).
		Msg("DNC remove complete")
	return result, matched, nil
}

// CreateDNCList creates a do-not-call list and returns its id.
func (c *Client) CreateDNCList(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("dnc list name is required")
	}

	form := url.Values{"name": []string{name}}
	resp, err := c.call(ctx, remote.Descriptor{
		Class:       ClassGeneral,
		Method:      http.MethodPost,
		Path:        dncListsPath,
		ContentType: "application/x-www-form-urlencoded",
		Body:        []byte(form.Encode()),
	})
	if err != nil {
		return 0, fmt.Errorf("create dnc list: %w", err)
	}

	var record dncListRecord
	if err := resp.JSON(&record); err != nil {
		return 0, fmt.Errorf("create dnc list: %w", err)
	}
	id, err := parseRecordID(record.URL)
	if err != nil {
		return 0, fmt.Errorf("create dnc list: %w", err)
	}

	c.logger.Info().Int64("list_id", id).Str("name", name).Msg("DNC list created")
	return id, nil
}

// RemoveDNCList deletes a do-not-call list along with its entries.
func (c *Client) RemoveDNCList(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("dnc list id is required")
	}

	if _, err := c.call(ctx, remote.Descriptor{
		Class:  ClassGeneral,
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("%s%d/", dncListsPath, id),
	}); err != nil {
		return fmt.Errorf("remove dnc list %d: %w", id, err)
	}

	c.logger.Info().Int64("list_id", id).Msg("DNC list removed")
	return nil
}

// dncListURL is the absolute resource URL CallHub expects when a payload
// references a dnc list.
func (c *Client) dncListURL(id int64) string {
	return fmt.Sprintf("%s%s%d/", c.baseURL, dncListsPath, id)
}

// parseRecordID extracts the numeric id from a record's resource URL, the
// last path segment.
func parseRecordID(rawURL string) (int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("parse record url %q: %w", rawURL, err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	id, err := strconv.ParseInt(segments[len(segments)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse record id from %q: %w", rawURL, err)
	}
	return id, nil
}
