package contactstore

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"goride/internal/models"
	"goride/pkg/storage"
)

// ContactStore retrieves a campaign's contact list. Ownership of list
// upload/schema validation belongs to an out-of-scope external
// collaborator (§4.12); this is the read side the Campaign Worker uses
// to resume from a cursor.
type ContactStore interface {
	Load(ctx context.Context, listID string) ([]models.ContactRow, error)
}

// s3ContactStore reads a listID's contact rows out of object storage,
// adapting the teacher's StorageProvider.Download for campaign contact
// lists instead of ride-sharing media uploads.
type s3ContactStore struct {
	storage storage.StorageProvider
	bucket  string
}

// NewS3ContactStore builds a ContactStore backed by the given
// StorageProvider. Rows are read from the key "contact-lists/<listID>.csv"
// and parsed as newline-delimited JSON when the object's content type
// contains "json", otherwise as CSV with a header row.
func NewS3ContactStore(provider storage.StorageProvider) ContactStore {
	return &s3ContactStore{storage: provider}
}

func (s *s3ContactStore) Load(ctx context.Context, listID string) ([]models.ContactRow, error) {
	resp, err := s.storage.Download(ctx, objectKey(listID))
	if err != nil {
		return nil, fmt.Errorf("contactstore: failed to download list %s: %w", listID, err)
	}
	defer resp.Reader.Close()

	if strings.Contains(resp.ContentType, "json") {
		return parseNDJSON(resp.Reader)
	}
	return parseCSV(resp.Reader)
}

func objectKey(listID string) string {
	return fmt.Sprintf("contact-lists/%s.csv", listID)
}

func parseCSV(r io.Reader) ([]models.ContactRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("contactstore: failed to read csv header: %w", err)
	}

	var rows []models.ContactRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("contactstore: failed to read csv row: %w", err)
		}

		row := make(models.ContactRow, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func parseNDJSON(r io.Reader) ([]models.ContactRow, error) {
	decoder := json.NewDecoder(r)

	var rows []models.ContactRow
	for decoder.More() {
		var row models.ContactRow
		if err := decoder.Decode(&row); err != nil {
			return nil, fmt.Errorf("contactstore: failed to decode json row: %w", err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}
