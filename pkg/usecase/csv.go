package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	columnUserID    = "user_id"
	columnUserGroup = "user_group"
)

// CSVColumns is the column set of exports, imports and the import template
func CSVColumns() []string {
	return []string{
		columnUserID,
		types.UserFieldEmail.String(),
		columnUserGroup,
		types.UserFieldAlias.String(),
		types.UserFieldName.String(),
		types.UserFieldLastname.String(),
		types.UserFieldFullName.String(),
		types.UserFieldJobTitle.String(),
		types.UserFieldStreetAddress.String(),
		types.UserFieldCity.String(),
		types.UserFieldState.String(),
		types.UserFieldZipCode.String(),
		types.UserFieldOrgUnit.String(),
		types.UserFieldEmployeeNumber.String(),
		types.UserFieldEmployeeType.String(),
		types.UserFieldPreferredLanguage.String(),
		types.UserFieldPhoneNumber.String(),
		types.UserFieldManager.String(),
	}
}

// ImportResult summarises a CSV import
type ImportResult struct {
	// Imported maps each created user to its temporary password
	Imported map[types.UserID]string `masq:"secret"`
	// Updated existed and had differing values applied
	Updated []types.UserID
	// Skipped existed and were already up to date
	Skipped []types.UserID
	// NotImported could not be created or updated
	NotImported []types.UserID
}

// Changed reports whether the import created or updated anybody
func (r *ImportResult) Changed() bool {
	return len(r.Imported) > 0 || len(r.Updated) > 0
}

// CSVUseCase moves identity users in and out of CSV files
type CSVUseCase struct {
	identity interfaces.IdentitySource
	notifier interfaces.Notifier
}

func NewCSVUseCase(identity interfaces.IdentitySource, notifier interfaces.Notifier) *CSVUseCase {
	return &CSVUseCase{
		identity: identity,
		notifier: notifier,
	}
}

// WriteTemplate writes the header-only import template
func (uc *CSVUseCase) WriteTemplate(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVColumns()); err != nil {
		return goerr.Wrap(err, "failed to write CSV header")
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return goerr.Wrap(err, "failed to flush CSV template")
	}
	return nil
}

// Export writes every identity user and returns the number of rows
func (uc *CSVUseCase) Export(ctx context.Context, w io.Writer) (int, error) {
	users, ok := uc.identity.FetchAll(ctx, false)
	if !ok {
		return 0, goerr.Wrap(ErrIdentityUnavailable, "failed to list identity users")
	}

	groups := uc.identity.Groups()
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVColumns()); err != nil {
		return 0, goerr.Wrap(err, "failed to write CSV header")
	}

	for _, id := range users.IDs() {
		user := users[id]
		row := make([]string, 0, len(CSVColumns()))
		for _, column := range CSVColumns() {
			switch column {
			case columnUserID:
				row = append(row, id.String())
			case columnUserGroup:
				row = append(row, managedGroup(user, groups))
			case types.UserFieldAlias.String():
				row = append(row, user.PrimaryAlias())
			default:
				row = append(row, user.Get(types.UserField(column)))
			}
		}
		if err := writer.Write(row); err != nil {
			return 0, goerr.Wrap(err, "failed to write CSV row", goerr.V(UserIDKey, id))
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, goerr.Wrap(err, "failed to flush CSV export")
	}

	logging.From(ctx).Info("identity users exported", "users", len(users))
	return len(users), nil
}

// Import creates the users of r that do not exist yet and updates the
// differing non-empty values of those that do. New users are mailed their
// temporary password.
func (uc *CSVUseCase) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	logger := logging.From(ctx)

	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Imported: map[types.UserID]string{}}
	for _, row := range rows {
		id := types.NewUserID(row[columnUserID])
		if id == "" {
			logger.Warn("CSV row without user ID skipped")
			continue
		}

		current, exists := uc.identity.FetchOne(ctx, id)
		if !exists {
			uc.create(ctx, id, row, result)
			continue
		}

		update := importUpdate(current, row)
		if update.IsEmpty() {
			logger.Info("user is up to date, nothing to update", UserIDKey, id)
			result.Skipped = append(result.Skipped, id)
			continue
		}

		switch outcome := uc.identity.Update(ctx, id, update, false); outcome {
		case types.OutcomeSuccess:
			logger.Debug("user updated from CSV", UserIDKey, id)
			result.Updated = append(result.Updated, id)
		case types.OutcomeUnchanged:
			result.Skipped = append(result.Skipped, id)
		default:
			logger.Warn("user could not be updated from CSV", UserIDKey, id, "outcome", outcome)
			result.NotImported = append(result.NotImported, id)
		}
	}

	if len(result.Updated) > 0 {
		if _, ok := uc.identity.FetchAll(ctx, true); !ok {
			logger.Warn("identity cache could not be refreshed after import")
		}
	}

	if result.Changed() {
		logger.Info("users imported from CSV", "imported", len(result.Imported), "updated", len(result.Updated))
	} else {
		logger.Info("no user was modified from CSV data")
	}
	return result, nil
}

func (uc *CSVUseCase) create(ctx context.Context, id types.UserID, row map[string]string, result *ImportResult) {
	logger := logging.From(ctx).With(UserIDKey, id)

	user, password, outcome := uc.identity.Create(ctx, &model.NewUser{
		UserID:            id,
		Email:             row[types.UserFieldEmail.String()],
		Name:              row[types.UserFieldName.String()],
		Lastname:          row[types.UserFieldLastname.String()],
		Group:             row[columnUserGroup],
		FullName:          row[types.UserFieldFullName.String()],
		Alias:             row[types.UserFieldAlias.String()],
		JobTitle:          row[types.UserFieldJobTitle.String()],
		StreetAddress:     row[types.UserFieldStreetAddress.String()],
		City:              row[types.UserFieldCity.String()],
		State:             row[types.UserFieldState.String()],
		ZipCode:           row[types.UserFieldZipCode.String()],
		OrgUnit:           row[types.UserFieldOrgUnit.String()],
		EmployeeNumber:    row[types.UserFieldEmployeeNumber.String()],
		EmployeeType:      row[types.UserFieldEmployeeType.String()],
		PreferredLanguage: row[types.UserFieldPreferredLanguage.String()],
		PhoneNumber:       row[types.UserFieldPhoneNumber.String()],
		Manager:           row[types.UserFieldManager.String()],
	})
	if !outcome.OK() {
		logger.Warn("user not imported", "outcome", outcome)
		result.NotImported = append(result.NotImported, id)
		return
	}

	result.Imported[id] = password
	logger.Debug("user imported")

	if !uc.notifier.NotifyNewAccount(ctx, id, user, password) {
		logger.Warn("new account notice was not sent")
	}
}

// importUpdate stages the non-empty values of row that differ from current.
// Aliases are never updated from a file.
func importUpdate(current *model.UserRecord, row map[string]string) *model.UserUpdate {
	update := &model.UserUpdate{Fields: model.UserDiff{}}
	for _, field := range types.ComparableUserFields() {
		value := row[field.String()]
		if value != "" && value != current.Get(field) {
			update.Fields[field] = value
		}
	}
	if group := row[columnUserGroup]; group != "" && !current.IsMemberOf(group) {
		update.Group = group
	}
	return update
}

func managedGroup(user *model.UserRecord, groups []string) string {
	for _, g := range user.MemberOf {
		if slices.Contains(groups, g) {
			return g
		}
	}
	return ""
}

// readRows decodes r into one map per row keyed by column. A leading byte
// order mark is dropped and cells are trimmed and NFC normalized.
func readRows(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, goerr.Wrap(ErrInvalidCSVHeader, "CSV file is empty")
		}
		return nil, goerr.Wrap(err, "failed to read CSV header")
	}

	known := CSVColumns()
	for i, column := range header {
		header[i] = strings.ToLower(strings.TrimSpace(column))
		if !slices.Contains(known, header[i]) {
			return nil, goerr.Wrap(ErrInvalidCSVHeader, "unknown column", goerr.V(ColumnKey, column))
		}
	}
	if !slices.Contains(header, columnUserID) {
		return nil, goerr.Wrap(ErrInvalidCSVHeader, "user_id column is required")
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read CSV row", goerr.V("line", len(rows)+2))
		}

		row := make(map[string]string, len(header))
		for i, column := range header {
			if i < len(record) {
				row[column] = norm.NFC.String(strings.TrimSpace(record[i]))
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
