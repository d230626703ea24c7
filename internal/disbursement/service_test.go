package disbursement

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/tally/internal/model"
)

// --- モック ---

type mockDisbursementRepo struct {
	createFn       func(ctx context.Context, d *model.Disbursement) error
	findOneOwnedFn func(ctx context.Context, id, ownerID string) (*model.Disbursement, error)
	findAllOwnedFn func(ctx context.Context, ownerID string, limit, offset int) ([]*model.Disbursement, error)
	countOwnedFn   func(ctx context.Context, ownerID string) (int, error)
	softDeleteFn   func(ctx context.Context, id string) error
}

func (m *mockDisbursementRepo) Create(ctx context.Context, d *model.Disbursement) error {
	if m.createFn != nil {
		return m.createFn(ctx, d)
	}
	return nil
}
func (m *mockDisbursementRepo) FindOneOwned(ctx context.Context, id, ownerID string) (*model.Disbursement, error) {
	if m.findOneOwnedFn != nil {
		return m.findOneOwnedFn(ctx, id, ownerID)
	}
	return nil, nil
}
func (m *mockDisbursementRepo) FindAllOwned(ctx context.Context, ownerID string, limit, offset int) ([]*model.Disbursement, error) {
	if m.findAllOwnedFn != nil {
		return m.findAllOwnedFn(ctx, ownerID, limit, offset)
	}
	return nil, nil
}
func (m *mockDisbursementRepo) CountOwned(ctx context.Context, ownerID string) (int, error) {
	if m.countOwnedFn != nil {
		return m.countOwnedFn(ctx, ownerID)
	}
	return 0, nil
}
func (m *mockDisbursementRepo) FindAffectedForSettlement(ctx context.Context, ids []string, receivingPartyID, sendingPartyID string) ([]*model.Disbursement, error) {
	return nil, nil
}
func (m *mockDisbursementRepo) SoftDelete(ctx context.Context, id string) error {
	if m.softDeleteFn != nil {
		return m.softDeleteFn(ctx, id)
	}
	return nil
}

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return &model.User{ID: id, IsActive: true}, nil
}
func (m *mockUserRepo) FindBySubject(ctx context.Context, subjectID string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) CreateIfAbsent(ctx context.Context, user *model.User) (*model.User, error) {
	return user, nil
}

// passthroughSanitizer はタグ除去を模したサニタイザー。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(raw)
}

type nopCollector struct{}

func (nopCollector) RecordHTTPStatus(statusCode int)            {}
func (nopCollector) RecordRequestLatency(d time.Duration)       {}
func (nopCollector) RecordDisbursementCreated(currency string)  {}
func (nopCollector) RecordSettlementCreated(currency string)    {}
func (nopCollector) RecordReconciliationRejected(reason string) {}
func (nopCollector) RecordPurgedRows(count int)                 {}

func apiErrCode(t *testing.T, err error) string {
	t.Helper()
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("error is not *model.APIError: %v", err)
	}
	return apiErr.Code
}

func newTestService(disbRepo *mockDisbursementRepo) *Service {
	return NewService(disbRepo, &mockUserRepo{}, passthroughSanitizer{}, nopCollector{})
}

// --- Create ---

func TestService_Create_Success(t *testing.T) {
	var created *model.Disbursement
	disbRepo := &mockDisbursementRepo{
		createFn: func(ctx context.Context, d *model.Disbursement) error {
			created = d
			return nil
		},
	}

	svc := newTestService(disbRepo)

	d, err := svc.Create(context.Background(), "alice", CreateInput{
		PayingPartyID:     "alice",
		OnBehalfOfPartyID: "bob",
		Amount:            model.Money{Amount: 3000, Currency: model.CurrencyJPY},
		Comment:           "  夕食代  ",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if created == nil {
		t.Fatal("repository Create was not called")
	}
	if d.OwnerID != "alice" {
		t.Errorf("OwnerID = %s, want alice", d.OwnerID)
	}
	if d.Comment != "夕食代" {
		t.Errorf("Comment = %q, want sanitized comment", d.Comment)
	}
	if d.ID == "" {
		t.Error("ID is empty")
	}
	if d.SettlementID != nil {
		t.Error("new disbursement must not be settled")
	}
}

func TestService_Create_ValidationErrors(t *testing.T) {
	svc := newTestService(&mockDisbursementRepo{})

	valid := CreateInput{
		PayingPartyID:     "alice",
		OnBehalfOfPartyID: "bob",
		Amount:            model.Money{Amount: 3000, Currency: model.CurrencyJPY},
	}

	tests := []struct {
		name   string
		modify func(in CreateInput) CreateInput
	}{
		{"支払者が空", func(in CreateInput) CreateInput {
			in.PayingPartyID = ""
			return in
		}},
		{"受益者が空", func(in CreateInput) CreateInput {
			in.OnBehalfOfPartyID = ""
			return in
		}},
		{"支払者と受益者が同一", func(in CreateInput) CreateInput {
			in.OnBehalfOfPartyID = "alice"
			return in
		}},
		{"ゼロ金額", func(in CreateInput) CreateInput {
			in.Amount.Amount = 0
			return in
		}},
		{"負の金額", func(in CreateInput) CreateInput {
			in.Amount.Amount = -500
			return in
		}},
		{"非対応通貨", func(in CreateInput) CreateInput {
			in.Amount.Currency = "GBP"
			return in
		}},
		{"コメントが長すぎる", func(in CreateInput) CreateInput {
			in.Comment = strings.Repeat("あ", model.MaxCommentLength+1)
			return in
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "alice", tt.modify(valid))
			if err == nil {
				t.Fatal("Create succeeded, want validation error")
			}
			if code := apiErrCode(t, err); code != model.ErrCodeValidation {
				t.Errorf("code = %s, want %s", code, model.ErrCodeValidation)
			}
		})
	}
}

func TestService_Create_UnknownParty(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			if id == "ghost" {
				return nil, nil
			}
			return &model.User{ID: id, IsActive: true}, nil
		},
	}
	svc := NewService(&mockDisbursementRepo{}, userRepo, passthroughSanitizer{}, nopCollector{})

	_, err := svc.Create(context.Background(), "alice", CreateInput{
		PayingPartyID:     "alice",
		OnBehalfOfPartyID: "ghost",
		Amount:            model.Money{Amount: 100, Currency: model.CurrencyJPY},
	})
	if code := apiErrCode(t, err); code != model.ErrCodeValidation {
		t.Errorf("code = %s, want %s", code, model.ErrCodeValidation)
	}
}

// コメント長の検証はサニタイズ後の文字数に対して行われる。
func TestService_Create_CommentLengthAfterSanitize(t *testing.T) {
	svc := newTestService(&mockDisbursementRepo{})

	// 前後の空白はサニタイズで除去され、512文字ちょうどに収まる
	comment := "  " + strings.Repeat("a", model.MaxCommentLength) + "  "
	_, err := svc.Create(context.Background(), "alice", CreateInput{
		PayingPartyID:     "alice",
		OnBehalfOfPartyID: "bob",
		Amount:            model.Money{Amount: 100, Currency: model.CurrencyJPY},
		Comment:           comment,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
}

// --- Get ---

func TestService_Get_Success(t *testing.T) {
	disbRepo := &mockDisbursementRepo{
		findOneOwnedFn: func(ctx context.Context, id, ownerID string) (*model.Disbursement, error) {
			return &model.Disbursement{ID: id, OwnerID: ownerID}, nil
		},
	}

	svc := newTestService(disbRepo)

	d, err := svc.Get(context.Background(), "alice", "d-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if d.ID != "d-1" {
		t.Errorf("ID = %s, want d-1", d.ID)
	}
}

// 他ユーザー所有・存在しない立替はどちらも同一のNotFoundになる。
func TestService_Get_NotFound(t *testing.T) {
	disbRepo := &mockDisbursementRepo{
		findOneOwnedFn: func(ctx context.Context, id, ownerID string) (*model.Disbursement, error) {
			return nil, nil
		},
	}

	svc := newTestService(disbRepo)

	_, err := svc.Get(context.Background(), "alice", "d-404")
	if code := apiErrCode(t, err); code != model.ErrCodeDisbursementNotFound {
		t.Errorf("code = %s, want %s", code, model.ErrCodeDisbursementNotFound)
	}
}

// --- List ---

func TestService_List_ClampsPagination(t *testing.T) {
	var gotLimit, gotOffset int
	disbRepo := &mockDisbursementRepo{
		findAllOwnedFn: func(ctx context.Context, ownerID string, limit, offset int) ([]*model.Disbursement, error) {
			gotLimit, gotOffset = limit, offset
			return nil, nil
		},
		countOwnedFn: func(ctx context.Context, ownerID string) (int, error) {
			return 0, nil
		},
	}

	svc := newTestService(disbRepo)

	tests := []struct {
		name                 string
		limit, offset        int
		wantLimit, wantOffset int
	}{
		{"デフォルト", 0, 0, DefaultListLimit, 0},
		{"上限超過", 1000, 0, MaxListLimit, 0},
		{"負のoffset", 20, -5, 20, 0},
		{"指定どおり", 10, 30, 10, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.List(context.Background(), "alice", tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("List returned error: %v", err)
			}
			if gotLimit != tt.wantLimit || gotOffset != tt.wantOffset {
				t.Errorf("repo got (limit=%d, offset=%d), want (%d, %d)",
					gotLimit, gotOffset, tt.wantLimit, tt.wantOffset)
			}
			if page.Limit != tt.wantLimit || page.Offset != tt.wantOffset {
				t.Errorf("page = (limit=%d, offset=%d), want (%d, %d)",
					page.Limit, page.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestService_List_ReturnsTotal(t *testing.T) {
	disbRepo := &mockDisbursementRepo{
		findAllOwnedFn: func(ctx context.Context, ownerID string, limit, offset int) ([]*model.Disbursement, error) {
			return []*model.Disbursement{{ID: "d-1"}, {ID: "d-2"}}, nil
		},
		countOwnedFn: func(ctx context.Context, ownerID string) (int, error) {
			return 42, nil
		},
	}

	svc := newTestService(disbRepo)

	page, err := svc.List(context.Background(), "alice", 2, 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(page.Disbursements) != 2 {
		t.Errorf("len = %d, want 2", len(page.Disbursements))
	}
	if page.Total != 42 {
		t.Errorf("Total = %d, want 42", page.Total)
	}
}

// --- Delete ---

func TestService_Delete_Success(t *testing.T) {
	deleted := ""
	disbRepo := &mockDisbursementRepo{
		findOneOwnedFn: func(ctx context.Context, id, ownerID string) (*model.Disbursement, error) {
			return &model.Disbursement{ID: id, OwnerID: ownerID}, nil
		},
		softDeleteFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}

	svc := newTestService(disbRepo)

	if err := svc.Delete(context.Background(), "alice", "d-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if deleted != "d-1" {
		t.Errorf("deleted = %q, want d-1", deleted)
	}
}

func TestService_Delete_NotFound(t *testing.T) {
	disbRepo := &mockDisbursementRepo{
		findOneOwnedFn: func(ctx context.Context, id, ownerID string) (*model.Disbursement, error) {
			return nil, nil
		},
	}

	svc := newTestService(disbRepo)

	err := svc.Delete(context.Background(), "alice", "d-404")
	if code := apiErrCode(t, err); code != model.ErrCodeDisbursementNotFound {
		t.Errorf("code = %s, want %s", code, model.ErrCodeDisbursementNotFound)
	}
}

// 精算済みの立替は削除できない。
func TestService_Delete_SettledConflict(t *testing.T) {
	settlementID := "s-1"
	called := false
	disbRepo := &mockDisbursementRepo{
		findOneOwnedFn: func(ctx context.Context, id, ownerID string) (*model.Disbursement, error) {
			return &model.Disbursement{ID: id, OwnerID: ownerID, SettlementID: &settlementID}, nil
		},
		softDeleteFn: func(ctx context.Context, id string) error {
			called = true
			return nil
		},
	}

	svc := newTestService(disbRepo)

	err := svc.Delete(context.Background(), "alice", "d-1")
	if code := apiErrCode(t, err); code != model.ErrCodeDisbursementSettled {
		t.Errorf("code = %s, want %s", code, model.ErrCodeDisbursementSettled)
	}
	if called {
		t.Error("SoftDelete was called for a settled disbursement")
	}
}
