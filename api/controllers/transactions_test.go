package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heraerp/hera-api/internal/relationships"
	"github.com/heraerp/hera-api/internal/transactions"
	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/guardrails"
)

type stubTransactionService struct {
	gctx       guardrails.Context
	input      transactions.CreateInput
	listFilter transactions.ListFilter
	txn        *transactions.TransactionDTO
	report     *transactions.ValidationReport
	err        error
}

func (s *stubTransactionService) Create(ctx context.Context, gctx guardrails.Context, input transactions.CreateInput) (*transactions.TransactionDTO, error) {
	s.gctx = gctx
	s.input = input
	return s.txn, s.err
}

func (s *stubTransactionService) Validate(ctx context.Context, gctx guardrails.Context, input transactions.CreateInput) (*transactions.ValidationReport, error) {
	s.gctx = gctx
	s.input = input
	return s.report, s.err
}

func (s *stubTransactionService) Get(ctx context.Context, orgID, id uuid.UUID) (*transactions.TransactionDTO, error) {
	return s.txn, s.err
}

func (s *stubTransactionService) List(ctx context.Context, orgID uuid.UUID, filter transactions.ListFilter) (*transactions.TransactionList, error) {
	s.listFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return &transactions.TransactionList{}, nil
}

const journalBody = `{
	"organization_id": "%ORG%",
	"transaction_type": "journal_entry",
	"smart_code": "HERA.FIN.GL.TXN.JE.v1",
	"lines": [
		{"line_type": "debit", "smart_code": "HERA.FIN.GL.LINE.CASH.v1", "line_amount": "100.00", "side": "DR", "currency": "USD"},
		{"line_type": "credit", "smart_code": "HERA.FIN.GL.LINE.REV.v1", "line_amount": 100, "side": "CR", "currency": "USD"}
	]
}`

func TestTransactionCreateMapsLines(t *testing.T) {
	orgID, userID := uuid.New(), uuid.New()
	svc := &stubTransactionService{txn: &transactions.TransactionDTO{ID: uuid.New()}}
	body := replaceOrg(journalBody, orgID)

	rec := httptest.NewRecorder()
	TransactionCreate(svc, nil).ServeHTTP(rec, tenantRequest(http.MethodPost, "/api/v2/transactions", body, orgID, userID))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.input.Lines) != 2 {
		t.Fatalf("expected 2 lines got %d", len(svc.input.Lines))
	}
	if !svc.input.Lines[1].LineAmount.Equal(decimal.NewFromInt(100)) || svc.input.Lines[1].Side != "CR" {
		t.Fatalf("unexpected credit line %+v", svc.input.Lines[1])
	}
	if svc.input.Lines[0].Currency == nil || *svc.input.Lines[0].Currency != "USD" {
		t.Fatalf("expected currency on line 0")
	}
	if svc.gctx.OrganizationID != orgID.String() {
		t.Fatalf("unexpected guard context %+v", svc.gctx)
	}
}

func TestTransactionCreateReadsSideFromLineData(t *testing.T) {
	orgID := uuid.New()
	svc := &stubTransactionService{txn: &transactions.TransactionDTO{ID: uuid.New()}}
	body := replaceOrg(`{
	"organization_id": "%ORG%",
	"transaction_type": "journal_entry",
	"smart_code": "HERA.FIN.GL.TXN.JE.v1",
	"lines": [
		{"line_type": "debit", "smart_code": "HERA.FIN.GL.LINE.CASH.v1", "line_amount": "100.00", "line_data": {"side": "DR", "currency": "USD"}},
		{"line_type": "credit", "smart_code": "HERA.FIN.GL.LINE.REV.v1", "line_amount": "100.00", "line_data": {"side": "CR"}}
	]
}`, orgID)

	rec := httptest.NewRecorder()
	TransactionCreate(svc, nil).ServeHTTP(rec, tenantRequest(http.MethodPost, "/api/v2/transactions", body, orgID, uuid.New()))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.input.Lines[0].Side != "DR" || svc.input.Lines[1].Side != "CR" {
		t.Fatalf("expected sides from line_data, got %q and %q", svc.input.Lines[0].Side, svc.input.Lines[1].Side)
	}
	if svc.input.Lines[0].Currency == nil || *svc.input.Lines[0].Currency != "USD" {
		t.Fatalf("expected currency from line_data on line 0")
	}
	if svc.input.Lines[1].Currency != nil {
		t.Fatalf("expected no currency on line 1, got %q", *svc.input.Lines[1].Currency)
	}
}

func TestTransactionCreateRequiresLineSmartCode(t *testing.T) {
	body := `{"transaction_type":"journal_entry","lines":[{"line_type":"debit","line_amount":"1"}]}`

	rec := httptest.NewRecorder()
	TransactionCreate(&stubTransactionService{}, nil).ServeHTTP(rec, tenantRequest(http.MethodPost, "/api/v2/transactions", body, uuid.New(), uuid.New()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if got := decodeError(t, rec).Error.Details["lines[0].smart_code"]; got != "is required" {
		t.Fatalf("unexpected line details %v", got)
	}
}

func TestTransactionCreateUnbalanced(t *testing.T) {
	svc := &stubTransactionService{err: pkgerrors.New(pkgerrors.CodeGuardrail, "GL_NOT_BALANCED: debits and credits differ").
		WithDetails(map[string]any{"reason": "GL_NOT_BALANCED", "currency": "USD", "dr": "100", "cr": "90", "diff": "10"})}
	orgID := uuid.New()

	rec := httptest.NewRecorder()
	TransactionCreate(svc, nil).ServeHTTP(rec, tenantRequest(http.MethodPost, "/api/v2/transactions", replaceOrg(journalBody, orgID), orgID, uuid.New()))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
	details := decodeError(t, rec).Error.Details
	if details["reason"] != "GL_NOT_BALANCED" || details["diff"] != "10" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestTransactionCreateOrgMismatchIsForbidden(t *testing.T) {
	svc := &stubTransactionService{err: pkgerrors.New(pkgerrors.CodeForbidden, "ORG_FILTER_MISMATCH: payload organization does not match context")}

	rec := httptest.NewRecorder()
	TransactionCreate(svc, nil).ServeHTTP(rec, tenantRequest(http.MethodPost, "/api/v2/transactions", replaceOrg(journalBody, uuid.New()), uuid.New(), uuid.New()))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestTransactionValidateReturnsReport(t *testing.T) {
	orgID := uuid.New()
	svc := &stubTransactionService{report: &transactions.ValidationReport{Valid: true, LineCount: 2, GLLineCount: 2}}

	rec := httptest.NewRecorder()
	TransactionValidate(svc, nil).ServeHTTP(rec, tenantRequest(http.MethodPost, "/api/v2/transactions/validate", replaceOrg(journalBody, orgID), orgID, uuid.New()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTransactionListParsesRange(t *testing.T) {
	svc := &stubTransactionService{}
	req := tenantRequest(http.MethodGet, "/api/v2/transactions?from=2024-01-01&to=2024-02-01&transaction_type=sale&status=posted", "", uuid.New(), uuid.New())

	rec := httptest.NewRecorder()
	TransactionList(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.listFilter.From == nil || svc.listFilter.To == nil || svc.listFilter.TransactionType != "sale" {
		t.Fatalf("unexpected filter %+v", svc.listFilter)
	}
}

func TestTransactionGetNotFound(t *testing.T) {
	id := uuid.New()
	svc := &stubTransactionService{err: pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")}
	req := withURLParam(tenantRequest(http.MethodGet, "/api/v2/transactions/"+id.String(), "", uuid.New(), uuid.New()), "transactionId", id.String())

	rec := httptest.NewRecorder()
	TransactionGet(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

type stubRelationshipService struct {
	input relationships.CreateInput
	err   error
}

func (s *stubRelationshipService) Create(ctx context.Context, gctx guardrails.Context, input relationships.CreateInput) (*relationships.RelationshipDTO, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &relationships.RelationshipDTO{ID: uuid.New(), FromEntityID: input.FromEntityID, ToEntityID: input.ToEntityID}, nil
}

func (s *stubRelationshipService) ListForEntity(ctx context.Context, orgID, entityID uuid.UUID) ([]relationships.RelationshipDTO, error) {
	return nil, s.err
}

func TestRelationshipCreate(t *testing.T) {
	from, to := uuid.New(), uuid.New()
	svc := &stubRelationshipService{}
	body := `{"from_entity_id":"` + from.String() + `","to_entity_id":"` + to.String() + `","relationship_type":"parent_of","smart_code":"HERA.CRM.REL.PARENT.LINK.v1"}`

	rec := httptest.NewRecorder()
	RelationshipCreate(svc, nil).ServeHTTP(rec, tenantRequest(http.MethodPost, "/api/v2/relationships", body, uuid.New(), uuid.New()))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.input.FromEntityID != from || svc.input.ToEntityID != to {
		t.Fatalf("unexpected input %+v", svc.input)
	}
}

func TestRelationshipCreateRequiresEnds(t *testing.T) {
	rec := httptest.NewRecorder()
	RelationshipCreate(&stubRelationshipService{}, nil).ServeHTTP(rec, tenantRequest(http.MethodPost, "/api/v2/relationships", `{"relationship_type":"parent_of"}`, uuid.New(), uuid.New()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func replaceOrg(body string, orgID uuid.UUID) string {
	return strings.ReplaceAll(body, "%ORG%", orgID.String())
}
