package callhub

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/dialops/callhub-client/pkg/fields"
	"github.com/dialops/callhub-client/pkg/remote"
)

const bulkCreatePath = "/v1/contacts/bulk_create/"

// bulkSuccessMarker appears in the response message when CallHub has queued
// the import. Any other message means the payload was rejected.
const bulkSuccessMarker = "Import in progress"

// BulkCreate imports contacts into a phonebook through CallHub's bulk
// endpoint. Field names are validated against the account schema before
// anything is sent; unknown names abort with a fields.UnknownFieldError.
//
// The call is gated by the bulk_create cooldown. CallHub queues accepted
// imports and reports completion by email; a response without that signal
// surfaces as a RemoteRejectionError.
func (c *Client) BulkCreate(ctx context.Context, phonebookID int64, contacts []Contact, countryISO string) error {
	if phonebookID <= 0 {
		return fmt.Errorf("phonebook id is required")
	}
	if len(contacts) == 0 {
		return fmt.Errorf("no contacts to import")
	}
	if countryISO == "" {
		return fmt.Errorf("country iso code is required")
	}

	resolved, err := c.resolver.Resolve(ctx, collectFieldNames(contacts))
	if err != nil {
		return err
	}

	csvData, mapping, err := buildCSV(contacts, resolved)
	if err != nil {
		return fmt.Errorf("build bulk payload: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, field := range [][2]string{
		{"phonebook_id", strconv.FormatInt(phonebookID, 10)},
		{"country_choice", "custom"},
		{"country_ISO", countryISO},
		{"mapping", mapping},
	} {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return fmt.Errorf("build bulk payload: %w", err)
		}
	}
	part, err := writer.CreateFormFile("contacts_csv", "contacts.csv")
	if err != nil {
		return fmt.Errorf("build bulk payload: %w", err)
	}
	if _, err := part.Write(csvData); err != nil {
		return fmt.Errorf("build bulk payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("build bulk payload: %w", err)
	}

	result, err := c.executor.Execute(ctx, []remote.Descriptor{{
		Class:       ClassBulkCreate,
		Method:      http.MethodPost,
		Path:        bulkCreatePath,
		ContentType: writer.FormDataContentType(),
		Body:        buf.Bytes(),
	}}, 1)
	if err != nil {
		return err
	}
	if err := result.Outcomes[0].Err; err != nil {
		return fmt.Errorf("bulk create: %w", err)
	}

	var reply struct {
		Message string `json:"message"`
	}
	if err := result.Outcomes[0].Response.JSON(&reply); err != nil {
		return fmt.Errorf("bulk create: %w", err)
	}
	if !strings.Contains(reply.Message, bulkSuccessMarker) {
		return &RemoteRejectionError{Message: reply.Message}
	}

	c.logger.Info().
		Int64("phonebook_id", phonebookID).
		Int("contacts", len(contacts)).
		Msg("Bulk import queued")
	return nil
}

// buildCSV renders contacts as CSV rows with one column per resolved field,
// columns ordered by field name, plus the JSON column-to-field-id mapping
// CallHub's importer expects.
func buildCSV(contacts []Contact, resolved map[string]fields.Field) ([]byte, string, error) {
	names := make([]string, 0, len(resolved))
	for name := range resolved {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	row := make([]string, len(names))
	for _, contact := range contacts {
		for i, name := range names {
			row[i] = contact[name]
		}
		if err := writer.Write(row); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}

	mapping := make(map[string]string, len(names))
	for i, name := range names {
		mapping[strconv.Itoa(i)] = strconv.FormatInt(resolved[name].ID, 10)
	}
	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return nil, "", err
	}

	return buf.Bytes(), string(mappingJSON), nil
}
