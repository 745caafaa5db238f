package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/heraerp/hera-api/internal/guard"
	pkgdb "github.com/heraerp/hera-api/pkg/db"
	"github.com/heraerp/hera-api/pkg/db/models"
	"github.com/heraerp/hera-api/pkg/enums"
	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/guardrails"
	"github.com/heraerp/hera-api/pkg/logger"
	"github.com/heraerp/hera-api/pkg/outbox"
	"github.com/heraerp/hera-api/pkg/outbox/payloads"
	"github.com/heraerp/hera-api/pkg/pagination"
)

const (
	opCreate   = "transactions.create"
	opValidate = "transactions.validate"

	// MaxLines bounds a single transaction.
	MaxLines = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes universal transaction operations.
type Service interface {
	Create(ctx context.Context, gctx guardrails.Context, input CreateInput) (*TransactionDTO, error)
	Validate(ctx context.Context, gctx guardrails.Context, input CreateInput) (*ValidationReport, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*TransactionDTO, error)
	List(ctx context.Context, orgID uuid.UUID, filter ListFilter) (*TransactionList, error)
}

type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Guard  guard.Checker
	Outbox outbox.Emitter
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	repo   Repository
	tx     txRunner
	guard  guard.Checker
	outbox outbox.Emitter
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("guard required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		guard:  params.Guard,
		outbox: params.Outbox,
		logg:   params.Logger,
		now:    now,
	}, nil
}

// Create runs the guardrails and writes the header, its lines and a
// transaction_posted event in one database transaction.
func (s *service) Create(ctx context.Context, gctx guardrails.Context, input CreateInput) (*TransactionDTO, error) {
	input = input.withLineData()
	scope, err := s.check(ctx, opCreate, gctx, input)
	if err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = enums.TransactionStatusPosted
	}
	txnDate := input.TransactionDate
	if txnDate.IsZero() {
		txnDate = s.now()
	}
	metadata := input.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}

	header := &models.UniversalTransaction{
		ID:                      uuid.New(),
		OrganizationID:          scope.OrganizationID,
		TransactionType:         strings.TrimSpace(input.TransactionType),
		TransactionCode:         input.TransactionCode,
		TransactionDate:         txnDate.UTC(),
		SourceEntityID:          input.SourceEntityID,
		TargetEntityID:          input.TargetEntityID,
		TotalAmount:             totalAmount(input.Lines),
		TransactionCurrencyCode: input.TransactionCurrencyCode,
		SmartCode:               input.SmartCode,
		TransactionStatus:       status,
		Metadata:                metadata,
		CreatedBy:               scope.CreatedBy(),
	}

	lines := make([]models.UniversalTransactionLine, 0, len(input.Lines))
	for i, line := range input.Lines {
		row, err := buildLine(header, i, line)
		if err != nil {
			return nil, err
		}
		lines = append(lines, row)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.checkReferencedEntities(ctx, repo, scope.OrganizationID, input); err != nil {
			return err
		}
		if err := repo.CreateHeader(ctx, header); err != nil {
			if pkgdb.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "transaction_code already used")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert transaction")
		}
		if err := repo.CreateLines(ctx, lines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert transaction lines")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:      enums.EventTransactionPosted,
			AggregateType:  enums.AggregateTransaction,
			AggregateID:    header.ID,
			OrganizationID: scope.OrganizationID,
			SmartCode:      header.SmartCode,
			Actor:          scope.Actor(),
			Data:           postedEvent(header, lines, input.Lines),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"transaction_id":   header.ID.String(),
			"transaction_type": header.TransactionType,
			"smart_code":       header.SmartCode,
			"line_count":       len(lines),
			"total_amount":     header.TotalAmount.String(),
		})
		s.logg.Info(logCtx, "transaction posted")
	}

	dto := transactionToDTO(header, lines)
	return &dto, nil
}

// Validate runs the same checks as Create without writing anything.
func (s *service) Validate(ctx context.Context, gctx guardrails.Context, input CreateInput) (*ValidationReport, error) {
	input = input.withLineData()
	if _, err := s.check(ctx, opValidate, gctx, input); err != nil {
		return nil, err
	}

	report := &ValidationReport{
		Valid:       true,
		LineCount:   len(input.Lines),
		TotalAmount: totalAmount(input.Lines),
	}
	seen := map[string]bool{}
	for _, line := range guardrailLines(input.Lines) {
		if !line.IsGL() {
			continue
		}
		report.GLLineCount++
		currency := line.CurrencyCode()
		if !seen[currency] {
			seen[currency] = true
			report.Currencies = append(report.Currencies, currency)
		}
	}
	return report, nil
}

func (s *service) Get(ctx context.Context, orgID, id uuid.UUID) (*TransactionDTO, error) {
	if orgID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "organization context missing")
	}
	header, err := s.repo.FindTransaction(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	lines, err := s.repo.FindLines(ctx, orgID, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction lines")
	}
	dto := transactionToDTO(header, lines)
	return &dto, nil
}

func (s *service) List(ctx context.Context, orgID uuid.UUID, filter ListFilter) (*TransactionList, error) {
	if orgID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "organization context missing")
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction status")
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}
	if _, err := pagination.ParseCursor(filter.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListTransactions(ctx, orgID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	list := &TransactionList{Transactions: make([]TransactionDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		list.Transactions = append(list.Transactions, transactionToDTO(&rows[i], nil))
	}
	return list, nil
}

// check runs the guardrails first so their reason wins over shape errors,
// then the structural checks the guardrails do not cover.
func (s *service) check(ctx context.Context, op string, gctx guardrails.Context, input CreateInput) (guard.Scope, error) {
	gctx.SmartCode = input.SmartCode
	if err := s.guard.Check(ctx, guard.Request{
		Operation: op,
		Context:   gctx,
		Payload: guardrails.Payload{
			OrganizationID: input.OrganizationID,
			Lines:          guardrailLines(input.Lines),
		},
		RequireSmartCode: true,
	}); err != nil {
		return guard.Scope{}, err
	}
	scope, err := guard.ScopeFrom(gctx)
	if err != nil {
		return guard.Scope{}, err
	}
	if err := validateShape(input); err != nil {
		return guard.Scope{}, err
	}
	return scope, nil
}

func validateShape(input CreateInput) error {
	if strings.TrimSpace(input.TransactionType) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction_type is required")
	}
	if input.Status != "" && !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction status")
	}
	if len(input.Lines) > MaxLines {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("a transaction may carry at most %d lines", MaxLines))
	}
	for i, line := range input.Lines {
		lineErr := func(msg string) error {
			return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"line_index": i})
		}
		if line.SmartCode == "" {
			return lineErr("line smart_code is required")
		}
		if strings.TrimSpace(line.LineType) == "" {
			return lineErr("line_type is required")
		}
		switch line.Side {
		case "", guardrails.SideDebit, guardrails.SideCredit:
		default:
			return lineErr("side must be DR or CR")
		}
	}
	return nil
}

func (s *service) checkReferencedEntities(ctx context.Context, repo Repository, orgID uuid.UUID, input CreateInput) error {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	add := func(id *uuid.UUID) {
		if id == nil || *id == uuid.Nil || seen[*id] {
			return
		}
		seen[*id] = true
		ids = append(ids, *id)
	}
	add(input.SourceEntityID)
	add(input.TargetEntityID)
	for _, line := range input.Lines {
		add(line.EntityID)
	}
	if len(ids) == 0 {
		return nil
	}
	count, err := repo.CountEntities(ctx, orgID, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load referenced entities")
	}
	if count != int64(len(ids)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "referenced entity not found in organization")
	}
	return nil
}

func buildLine(header *models.UniversalTransaction, index int, line LineInput) (models.UniversalTransactionLine, error) {
	data := map[string]any{}
	for k, v := range line.LineData {
		data[k] = v
	}
	// side and currency in line_data always mirror the validated line
	delete(data, lineDataSide)
	delete(data, lineDataCurrency)
	if line.Side != "" {
		data[lineDataSide] = line.Side
	}
	if line.Currency != nil && *line.Currency != "" {
		data[lineDataCurrency] = *line.Currency
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return models.UniversalTransactionLine{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "line_data is not serializable").
			WithDetails(map[string]any{"line_index": index})
	}

	quantity := decimal.NewFromInt(1)
	if line.Quantity != nil {
		quantity = *line.Quantity
	}
	unit := line.LineAmount
	if line.UnitAmount != nil {
		unit = *line.UnitAmount
	}

	return models.UniversalTransactionLine{
		ID:                      uuid.New(),
		OrganizationID:          header.OrganizationID,
		TransactionID:           header.ID,
		LineNumber:              index + 1,
		EntityID:                line.EntityID,
		LineType:                strings.TrimSpace(line.LineType),
		Description:             line.Description,
		Quantity:                quantity,
		UnitAmount:              unit,
		LineAmount:              line.LineAmount,
		DiscountAmount:          zeroIfNil(line.DiscountAmount),
		TaxAmount:               zeroIfNil(line.TaxAmount),
		TransactionCurrencyCode: line.TransactionCurrencyCode,
		SmartCode:               line.SmartCode,
		LineData:                raw,
	}, nil
}

func postedEvent(header *models.UniversalTransaction, rows []models.UniversalTransactionLine, inputs []LineInput) payloads.TransactionPostedEvent {
	refs := make([]payloads.TransactionLineRef, 0, len(rows))
	for i, row := range rows {
		refs = append(refs, payloads.TransactionLineRef{
			LineNumber: row.LineNumber,
			SmartCode:  row.SmartCode,
			LineAmount: row.LineAmount,
			Side:       inputs[i].Side,
		})
	}
	return payloads.TransactionPostedEvent{
		TransactionID:   header.ID,
		OrganizationID:  header.OrganizationID,
		TransactionType: header.TransactionType,
		TransactionCode: header.TransactionCode,
		TransactionDate: header.TransactionDate,
		SmartCode:       header.SmartCode,
		Status:          header.TransactionStatus,
		TotalAmount:     header.TotalAmount,
		Currency:        header.TransactionCurrencyCode,
		LineCount:       len(rows),
		Lines:           refs,
	}
}

// totalAmount sums line amounts, leaving out credit lines so a balanced
// journal totals its debits.
func totalAmount(lines []LineInput) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		if line.Side == guardrails.SideCredit {
			continue
		}
		total = total.Add(line.LineAmount)
	}
	return total
}

func zeroIfNil(value *decimal.Decimal) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return *value
}
