package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/acme/campaign-console/internal/config"
	"github.com/acme/campaign-console/internal/domain"
	apperrors "github.com/acme/campaign-console/pkg/errors"
)

// Ingestion failure sentinels. All wrap ErrValidation: these are
// synchronous, user-correctable errors that never reach the orchestrator.
var (
	ErrFileTooLarge       = fmt.Errorf("%w: file exceeds the size limit", apperrors.ErrValidation)
	ErrUnsupportedType    = fmt.Errorf("%w: unsupported file type", apperrors.ErrValidation)
	ErrEmptyFile          = fmt.Errorf("%w: file contains no contact rows", apperrors.ErrValidation)
	ErrMissingPhoneColumn = fmt.Errorf("%w: no phone column found", apperrors.ErrValidation)
	ErrPhoneRequired      = fmt.Errorf("%w: phone is required", apperrors.ErrValidation)
)

// Column-role synonyms, matched case-insensitively after trimming.
var (
	phoneSynonyms   = []string{"phone", "mobile", "phone_number", "contact", "tel"}
	nameSynonyms    = []string{"name", "full_name", "fullname", "contact_name"}
	emailSynonyms   = []string{"email", "email_address", "mail"}
	companySynonyms = []string{"company", "organization", "organisation", "business"}
)

var acceptedExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".xls":  true,
}

// Service normalizes uploaded contact files and manual rows into contact
// batches. Row-level phone invalidity is never an error here: invalid
// rows stay in the batch for user correction and are excluded downstream
// by the validity predicate.
type Service struct {
	maxFileBytes       int64
	maxRows            int
	defaultCountryCode string
}

// NewService constructs the service from config.
func NewService(cfg config.IngestionConfig) *Service {
	maxBytes := cfg.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 10000
	}
	country := cfg.DefaultCountryCode
	if country == "" {
		country = "91"
	}
	return &Service{
		maxFileBytes:       maxBytes,
		maxRows:            maxRows,
		defaultCountryCode: country,
	}
}

// IngestFile parses an uploaded tabular file into a contact batch.
// Size and extension are rejected before any parsing happens.
func (s *Service) IngestFile(filename string, size int64, r io.Reader) ([]domain.Contact, error) {
	if size > s.maxFileBytes {
		return nil, ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !acceptedExtensions[ext] {
		return nil, ErrUnsupportedType
	}

	var (
		rows [][]string
		err  error
	)
	if ext == ".csv" {
		rows, err = readCSV(r)
	} else {
		rows, err = readSpreadsheet(r)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) < 2 {
		return nil, ErrEmptyFile
	}

	columns := detectColumns(rows[0])
	if columns.phone < 0 {
		return nil, ErrMissingPhoneColumn
	}

	data := rows[1:]
	if len(data) > s.maxRows {
		// Overflow rows are dropped, not errored.
		data = data[:s.maxRows]
	}

	contacts := make([]domain.Contact, 0, len(data))
	for _, row := range data {
		contact := domain.Contact{
			Phone:   domain.NormalizePhone(cell(row, columns.phone), s.defaultCountryCode),
			Name:    strings.TrimSpace(cell(row, columns.name)),
			Email:   strings.TrimSpace(cell(row, columns.email)),
			Company: strings.TrimSpace(cell(row, columns.company)),
		}
		contacts = append(contacts, contact)
	}

	return contacts, nil
}

// ManualContact builds a single contact from free-text fields, normalizing
// the phone the same way the file path does.
func (s *Service) ManualContact(phone, name, email, company string) (domain.Contact, error) {
	if strings.TrimSpace(phone) == "" {
		return domain.Contact{}, ErrPhoneRequired
	}
	return domain.Contact{
		Phone:   domain.NormalizePhone(phone, s.defaultCountryCode),
		Name:    strings.TrimSpace(name),
		Email:   strings.TrimSpace(email),
		Company: strings.TrimSpace(company),
	}, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed csv: %v", apperrors.ErrValidation, err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func readSpreadsheet(r io.Reader) ([][]string, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable spreadsheet: %v", apperrors.ErrValidation, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable spreadsheet: %v", apperrors.ErrValidation, err)
	}
	return rows, nil
}

type columnRoles struct {
	phone   int
	name    int
	email   int
	company int
}

// detectColumns maps header cells to contact fields by synonym matching.
// The first match per role wins; absent optional roles stay at -1.
func detectColumns(header []string) columnRoles {
	roles := columnRoles{phone: -1, name: -1, email: -1, company: -1}
	for i, raw := range header {
		h := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case roles.phone < 0 && matches(h, phoneSynonyms):
			roles.phone = i
		case roles.name < 0 && matches(h, nameSynonyms):
			roles.name = i
		case roles.email < 0 && matches(h, emailSynonyms):
			roles.email = i
		case roles.company < 0 && matches(h, companySynonyms):
			roles.company = i
		}
	}
	return roles
}

func matches(header string, synonyms []string) bool {
	for _, s := range synonyms {
		if header == s {
			return true
		}
	}
	return false
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
